package scan

import (
	"context"

	"github.com/capscanio/capscan/pkg/domain/capability"
)

// Index is the semantic index the scan persists validated records into.
// Writes are idempotent: records carry deterministic IDs, so at-least-once
// delivery results in one stored record per item.
type Index interface {
	Upsert(ctx context.Context, record *capability.Record) error
}

// Guard serializes batch execution per session and carries the stop
// signal. At most one executor may hold a session's guard at a time.
type Guard interface {
	// Acquire attempts to take the session's executor slot. Returns false
	// when another executor already holds it.
	Acquire(ctx context.Context, sessionID string) (bool, error)

	// Refresh extends the slot's lease while the executor is alive.
	Refresh(ctx context.Context, sessionID string) error

	// Release frees the slot.
	Release(ctx context.Context, sessionID string) error

	// RequestStop asks a running executor to stop at the next item
	// boundary.
	RequestStop(ctx context.Context, sessionID string) error

	// StopRequested reports whether a stop has been requested.
	StopRequested(ctx context.Context, sessionID string) (bool, error)
}

// Enqueuer hands a session off to the background batch executor. Phase
// handlers only ever enqueue and return; they never run the batch inline.
type Enqueuer interface {
	EnqueueScanRun(ctx context.Context, sessionID string) error
}

// Lister enumerates the inspected system's resource types. Used to
// resolve the "scan everything" selection to a concrete item list.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}
