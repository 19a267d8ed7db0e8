package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	executorKeyPrefix = "scan:executor:"
	stopKeyPrefix     = "scan:stop:"

	// stopSignalTTL must comfortably exceed the worst-case time a single
	// item can take (describe timeout + rate-limiter wait + provider
	// retries), since the executor only checks the signal at item
	// boundaries. Release deletes the key at run end; the TTL only mops
	// up signals for runs that never happen.
	stopSignalTTL = 24 * time.Hour
)

// ExecutorGuard serializes batch executors per session using a leased
// Redis key, and carries the stop signal between the API and a running
// executor. The lease expires on its own if an executor dies without
// releasing, so a crashed run never blocks a redelivery for long.
type ExecutorGuard struct {
	client *Client
	ttl    time.Duration
}

// NewExecutorGuard creates an ExecutorGuard with the given lease TTL.
func NewExecutorGuard(client *Client, ttl time.Duration) *ExecutorGuard {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ExecutorGuard{client: client, ttl: ttl}
}

// Acquire attempts to take the session's executor slot. Returns false
// when another executor currently holds the lease.
func (g *ExecutorGuard) Acquire(ctx context.Context, sessionID string) (bool, error) {
	ok, err := g.client.Client().SetNX(ctx, executorKeyPrefix+sessionID, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire executor guard: %w", err)
	}
	return ok, nil
}

// Refresh extends the lease while the executor is alive.
func (g *ExecutorGuard) Refresh(ctx context.Context, sessionID string) error {
	ok, err := g.client.Client().Expire(ctx, executorKeyPrefix+sessionID, g.ttl).Result()
	if err != nil {
		return fmt.Errorf("refresh executor guard: %w", err)
	}
	if !ok {
		return errors.New("executor guard lease lost")
	}
	return nil
}

// Release frees the slot and clears any pending stop signal.
func (g *ExecutorGuard) Release(ctx context.Context, sessionID string) error {
	if err := g.client.Client().Del(ctx, executorKeyPrefix+sessionID, stopKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("release executor guard: %w", err)
	}
	return nil
}

// RequestStop asks a running executor to stop at the next item
// boundary. The signal must survive arbitrarily long items, so it
// carries its own long TTL rather than the lease TTL.
func (g *ExecutorGuard) RequestStop(ctx context.Context, sessionID string) error {
	if err := g.client.Client().Set(ctx, stopKeyPrefix+sessionID, "1", stopSignalTTL).Err(); err != nil {
		return fmt.Errorf("request stop: %w", err)
	}
	return nil
}

// StopRequested reports whether a stop has been requested.
func (g *ExecutorGuard) StopRequested(ctx context.Context, sessionID string) (bool, error) {
	err := g.client.Client().Get(ctx, stopKeyPrefix+sessionID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check stop signal: %w", err)
	}
	return true, nil
}
