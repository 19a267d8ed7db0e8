package infer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capscanio/capscan/internal/infra/llm"
	"github.com/capscanio/capscan/pkg/logger"
)

type fakeInspector struct {
	descriptors map[string]string
	err         error
}

func (f *fakeInspector) List(context.Context) ([]string, error) {
	names := make([]string, 0, len(f.descriptors))
	for name := range f.descriptors {
		names = append(names, name)
	}
	return names, f.err
}

func (f *fakeInspector) Describe(_ context.Context, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	desc, ok := f.descriptors[name]
	if !ok {
		return "", errors.New("unknown resource type")
	}
	return desc, nil
}

type fakeProvider struct {
	content string
	err     error
	calls   int
}

func (f *fakeProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content, Model: "fake-model"}, nil
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func TestService_Infer_Success(t *testing.T) {
	inspector := &fakeInspector{descriptors: map[string]string{
		"port-scan": "Scans ports. Usage: port-scan <host>",
	}}
	provider := &fakeProvider{content: validPayload}

	svc := NewService(inspector, provider, 0, logger.NewNop())
	record, err := svc.Infer(context.Background(), "port-scan")
	require.NoError(t, err)

	assert.Equal(t, "port-scan", record.Name)
	assert.Equal(t, "fake", record.Provider)
	assert.Equal(t, "fake-model", record.Model)
	assert.Equal(t, 1, provider.calls)
}

func TestService_Infer_DescriptionUnavailable(t *testing.T) {
	inspector := &fakeInspector{descriptors: map[string]string{}}
	provider := &fakeProvider{content: validPayload}

	svc := NewService(inspector, provider, 0, logger.NewNop())
	_, err := svc.Infer(context.Background(), "missing-item")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDescriptionUnavailable)
	assert.Zero(t, provider.calls, "classification must not be attempted without a descriptor")
}

func TestService_Infer_ClassificationFailed(t *testing.T) {
	inspector := &fakeInspector{descriptors: map[string]string{"x": "descriptor"}}
	provider := &fakeProvider{err: errors.New("service unavailable")}

	svc := NewService(inspector, provider, 0, logger.NewNop())
	_, err := svc.Infer(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClassificationFailed)
}

func TestService_Infer_InvalidOutput(t *testing.T) {
	inspector := &fakeInspector{descriptors: map[string]string{"x": "descriptor"}}
	provider := &fakeProvider{content: "sorry, I cannot help with that"}

	svc := NewService(inspector, provider, 0, logger.NewNop())
	_, err := svc.Infer(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestBuildClassifyPrompt_TruncatesOversizedDescriptor(t *testing.T) {
	huge := make([]byte, maxDescriptorLen+1000)
	for i := range huge {
		huge[i] = 'a'
	}

	prompt := buildClassifyPrompt("x", string(huge))
	assert.Contains(t, prompt, "[descriptor truncated]")
	assert.Less(t, len(prompt), maxDescriptorLen+200)
}
