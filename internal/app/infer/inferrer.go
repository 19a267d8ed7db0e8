// Package infer turns one discovered resource type into a validated
// capability record: fetch the item's descriptor from the inspected
// system, submit it to the classification service, and strictly validate
// the free-text result. Every failure is typed and terminal for the item
// only, never for the batch that invoked it.
package infer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/capscanio/capscan/internal/infra/inspect"
	"github.com/capscanio/capscan/internal/infra/llm"
	"github.com/capscanio/capscan/internal/metrics"
	"github.com/capscanio/capscan/pkg/domain/capability"
	"github.com/capscanio/capscan/pkg/logger"
)

// Typed per-item failures.
var (
	ErrDescriptionUnavailable = fmt.Errorf("item description unavailable")
	ErrClassificationFailed   = fmt.Errorf("classification failed")
	ErrInvalidOutput          = fmt.Errorf("invalid generative output")
)

// Inferrer produces a capability record for a single item.
type Inferrer interface {
	Infer(ctx context.Context, itemName string) (*capability.Record, error)
}

// Service implements Inferrer against the real inspector and LLM provider.
type Service struct {
	inspector inspect.Inspector
	provider  llm.Provider
	limiter   *rate.Limiter
	logger    *logger.Logger
}

// NewService creates a new inference service. requestsPerMinute bounds
// calls to the classification service; zero disables rate limiting.
func NewService(inspector inspect.Inspector, provider llm.Provider, requestsPerMinute int, log *logger.Logger) *Service {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return &Service{
		inspector: inspector,
		provider:  provider,
		limiter:   limiter,
		logger:    log.With("component", "inferrer"),
	}
}

// Infer classifies one item. The returned record carries a deterministic
// ID derived from the item name, so repeated inference of the same item
// (at-least-once delivery) lands on the same semantic index key.
func (s *Service) Infer(ctx context.Context, itemName string) (*capability.Record, error) {
	start := time.Now()

	descriptor, err := s.inspector.Describe(ctx, itemName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDescriptionUnavailable, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: classifySystemPrompt,
		UserPrompt:   buildClassifyPrompt(itemName, descriptor),
		JSONMode:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	record, err := ParseRecord(itemName, resp.Content)
	if err != nil {
		return nil, err
	}
	record.SetProvenance(s.provider.Name(), resp.Model)

	metrics.ItemDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("classified item",
		"item", itemName,
		"complexity", record.Complexity,
		"confidence", record.Confidence,
		"tokens", resp.TotalTokens,
	)
	return record, nil
}
