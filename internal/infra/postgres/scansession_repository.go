package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/capscanio/capscan/pkg/domain/scansession"
	"github.com/capscanio/capscan/pkg/domain/shared"
)

// ScanSessionRepository implements scansession.Repository using
// PostgreSQL. The whole session is stored as a JSONB document and
// overwritten wholesale on every save; the extracted columns exist only
// for sweeping and listing.
type ScanSessionRepository struct {
	db *DB
}

// NewScanSessionRepository creates a new ScanSessionRepository.
func NewScanSessionRepository(db *DB) *ScanSessionRepository {
	return &ScanSessionRepository{db: db}
}

// Create persists a new session.
func (r *ScanSessionRepository) Create(ctx context.Context, session *scansession.ScanSession) error {
	record, err := toJSONB(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
		INSERT INTO scan_sessions (id, phase, record, started_at, last_activity, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		session.ID.String(),
		string(session.Phase),
		record,
		session.StartedAt,
		session.LastActivity,
		nullTime(session.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "session already exists", shared.ErrConflict)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get loads a session by ID.
func (r *ScanSessionRepository) Get(ctx context.Context, id string) (*scansession.ScanSession, error) {
	query := `SELECT record FROM scan_sessions WHERE id = $1`

	var record []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewDomainError("SESSION_NOT_FOUND", "session not found", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session scansession.ScanSession
	if err := fromJSONB(record, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Save overwrites the session record wholesale.
func (r *ScanSessionRepository) Save(ctx context.Context, session *scansession.ScanSession) error {
	record, err := toJSONB(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
		INSERT INTO scan_sessions (id, phase, record, started_at, last_activity, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			record = EXCLUDED.record,
			last_activity = EXCLUDED.last_activity,
			completed_at = EXCLUDED.completed_at
	`
	_, err = r.db.ExecContext(ctx, query,
		session.ID.String(),
		string(session.Phase),
		record,
		session.StartedAt,
		session.LastActivity,
		nullTime(session.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Touch updates only the activity timestamp, in the column and inside
// the record document. The rest of the record is left untouched so a
// concurrently checkpointing executor never loses its cursor.
func (r *ScanSessionRepository) Touch(ctx context.Context, id string) error {
	query := `
		UPDATE scan_sessions
		SET last_activity = $2,
		    record = jsonb_set(record, '{last_activity}', to_jsonb($2::timestamptz))
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return shared.NewDomainError("SESSION_NOT_FOUND", "session not found", shared.ErrNotFound)
	}
	return nil
}

// Delete removes a session.
func (r *ScanSessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scan_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return shared.NewDomainError("SESSION_NOT_FOUND", "session not found", shared.ErrNotFound)
	}
	return nil
}

// List returns all sessions, most recently active first.
func (r *ScanSessionRepository) List(ctx context.Context) ([]*scansession.ScanSession, error) {
	query := `SELECT record FROM scan_sessions ORDER BY last_activity DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ListExpired returns sessions eligible for deletion: completed longer
// than grace ago, or unfinished and inactive longer than idleTTL.
func (r *ScanSessionRepository) ListExpired(ctx context.Context, now time.Time, grace, idleTTL time.Duration) ([]*scansession.ScanSession, error) {
	query := `
		SELECT record FROM scan_sessions
		WHERE (completed_at IS NOT NULL AND completed_at < $1)
		   OR (completed_at IS NULL AND last_activity < $2)
	`
	rows, err := r.db.QueryContext(ctx, query, now.Add(-grace), now.Add(-idleTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]*scansession.ScanSession, error) {
	var sessions []*scansession.ScanSession
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		var session scansession.ScanSession
		if err := fromJSONB(record, &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}
