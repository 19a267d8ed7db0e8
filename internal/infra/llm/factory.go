package llm

import (
	"fmt"

	"github.com/capscanio/capscan/internal/config"
)

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "claude", "":
		return NewClaudeProvider(ClaudeConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		})

	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		})

	default:
		return nil, fmt.Errorf("%w: unknown provider: %s", ErrInvalidProvider, cfg.Provider)
	}
}
