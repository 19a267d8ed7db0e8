package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capscanio/capscan/internal/config"
)

func TestNewClaudeProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClaudeConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     ClaudeConfig{APIKey: "test-key", Model: "claude-sonnet-4-20250514"},
			wantErr: false,
		},
		{
			name:    "missing API key",
			cfg:     ClaudeConfig{Model: "claude-sonnet-4-20250514"},
			wantErr: true,
		},
		{
			name:    "default model when empty",
			cfg:     ClaudeConfig{APIKey: "test-key"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewClaudeProvider(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "claude", provider.Name())
			assert.NotEmpty(t, provider.Model())
		})
	}
}

func TestClaudeProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Messages)

		resp := claudeResponse{
			Model:      req.Model,
			StopReason: "end_turn",
			Content: []contentBlock{
				{Type: "text", Text: `{"name":"stat"}`},
			},
			Usage: claudeUsage{InputTokens: 100, OutputTokens: 20},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewClaudeProvider(ClaudeConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "classify",
		UserPrompt:   "stat",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"stat"}`, resp.Content)
	assert.Equal(t, 120, resp.TotalTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)
}

func TestOpenAIProvider_Complete_JSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		resp := openAIResponse{
			Model: req.Model,
			Choices: []openAIChoice{
				{
					Message:      openAIMessage{Role: "assistant", Content: `{"ok":true}`},
					FinishReason: "stop",
				},
			},
			Usage: openAIUsage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		UserPrompt: "classify this",
		JSONMode:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, 60, resp.TotalTokens)
}

func TestOpenAIProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key","type":"auth"}}`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(OpenAIConfig{APIKey: "bad", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = provider.Complete(context.Background(), CompletionRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LLMConfig
		wantName string
		wantErr  bool
	}{
		{
			name:     "claude",
			cfg:      config.LLMConfig{Provider: "claude", APIKey: "k"},
			wantName: "claude",
		},
		{
			name:     "openai",
			cfg:      config.LLMConfig{Provider: "openai", APIKey: "k"},
			wantName: "openai",
		},
		{
			name:     "defaults to claude",
			cfg:      config.LLMConfig{APIKey: "k"},
			wantName: "claude",
		},
		{
			name:    "unknown provider",
			cfg:     config.LLMConfig{Provider: "bard", APIKey: "k"},
			wantErr: true,
		},
		{
			name:    "missing key",
			cfg:     config.LLMConfig{Provider: "claude"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, provider.Name())
		})
	}
}
