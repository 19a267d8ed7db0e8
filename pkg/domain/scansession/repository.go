package scansession

import (
	"context"
	"time"
)

// Repository defines the persistence interface for scan sessions.
// Implementations persist the full session record and overwrite it
// wholesale on every save; partial updates are not supported.
type Repository interface {
	// Create persists a new session.
	Create(ctx context.Context, session *ScanSession) error

	// Get loads a session by ID. Returns shared.ErrNotFound (wrapped)
	// when the session does not exist or has expired.
	Get(ctx context.Context, id string) (*ScanSession, error)

	// Save overwrites the session record.
	Save(ctx context.Context, session *ScanSession) error

	// Touch refreshes only the session's activity timestamp. Unlike
	// Save it never rewrites the record body, so it is safe to call
	// from the request path while an executor owns the record.
	Touch(ctx context.Context, id string) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// List returns all sessions, most recently active first.
	List(ctx context.Context) ([]*ScanSession, error)

	// ListExpired returns sessions eligible for deletion: completed
	// longer than grace ago, or inactive longer than idleTTL.
	ListExpired(ctx context.Context, now time.Time, grace, idleTTL time.Duration) ([]*ScanSession, error)
}
