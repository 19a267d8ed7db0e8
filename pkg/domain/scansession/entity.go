// Package scansession provides the domain model for resumable capability
// scan sessions. A session is the unit of resumability: it records which
// phase of the scan workflow the caller is in, what was selected for
// scanning, and how far the batch executor has progressed.
package scansession

import (
	"fmt"
	"time"

	"github.com/capscanio/capscan/pkg/domain/shared"
)

// MaxRecentErrors bounds the error ring kept inside the session record.
// The full error log is not retained to keep the persisted record small.
const MaxRecentErrors = 5

// Phase represents the current step of the scan workflow state machine.
type Phase string

const (
	PhaseSelecting  Phase = "selecting"  // Waiting for the caller to choose a scan scope
	PhaseSpecifying Phase = "specifying" // Waiting for an explicit item list
	PhaseScanning   Phase = "scanning"   // Batch executor is (or will be) running
	PhaseComplete   Phase = "complete"   // Terminal; only deletion is permitted
)

// IsValid checks if the phase is a valid phase value.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseSelecting, PhaseSpecifying, PhaseScanning, PhaseComplete:
		return true
	}
	return false
}

// IsTerminal returns true if the phase is the terminal phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete
}

// CanTransitionTo reports whether the state machine allows moving from p
// to next. Transitions are forward-only; selecting may shortcut straight
// to scanning when the caller chooses to scan everything.
func (p Phase) CanTransitionTo(next Phase) bool {
	switch p {
	case PhaseSelecting:
		return next == PhaseSpecifying || next == PhaseScanning
	case PhaseSpecifying:
		return next == PhaseScanning
	case PhaseScanning:
		return next == PhaseComplete
	}
	return false
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Status represents the execution status carried by a progress snapshot.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// IsTerminal returns true if the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusFailed
}

// Selection describes what the session will scan: either everything the
// inspector can discover, or an explicit ordered list of item names.
// It is set once and immutable thereafter.
type Selection struct {
	All   bool     `json:"all"`
	Items []string `json:"items,omitempty"`
}

// IsSet reports whether a selection has been made.
func (s Selection) IsSet() bool {
	return s.All || len(s.Items) > 0
}

// ItemError records a single item's failure during a batch run.
type ItemError struct {
	ItemID    shared.ID `json:"item_id"`
	Item      string    `json:"item"`
	Message   string    `json:"message"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressSnapshot is a value object describing batch progress. It is
// replaced wholesale on every update, never merged field by field.
type ProgressSnapshot struct {
	Status       Status      `json:"status"`
	Current      int         `json:"current"`
	Total        int         `json:"total"`
	Successful   int         `json:"successful"`
	Failed       int         `json:"failed"`
	RecentErrors []ItemError `json:"recent_errors,omitempty"`

	ElapsedSeconds float64 `json:"elapsed_seconds"`
	// EstimatedTimeRemaining is a humanized duration ("45s", "3m", "1.5h").
	// Empty until at least one item has been processed.
	EstimatedTimeRemaining string `json:"estimated_time_remaining,omitempty"`
}

// Validate checks the snapshot's internal invariants.
func (p ProgressSnapshot) Validate() error {
	if p.Current < 0 || p.Total < 0 || p.Current > p.Total {
		return shared.NewDomainError("VALIDATION",
			fmt.Sprintf("invalid progress counters: current=%d total=%d", p.Current, p.Total),
			shared.ErrValidation)
	}
	if p.Successful+p.Failed > p.Current {
		return shared.NewDomainError("VALIDATION",
			fmt.Sprintf("successful+failed (%d) exceeds current (%d)", p.Successful+p.Failed, p.Current),
			shared.ErrValidation)
	}
	if p.Status == StatusCompleted && p.Current != p.Total {
		return shared.NewDomainError("VALIDATION",
			"completed snapshot must have current == total", shared.ErrValidation)
	}
	return nil
}

// Summary describes a finished scan.
type Summary struct {
	TotalScanned     int    `json:"total_scanned"`
	Successful       int    `json:"successful"`
	Failed           int    `json:"failed"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	Stopped          bool   `json:"stopped,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
}

// ScanSession is the durable record of one scan's progress.
type ScanSession struct {
	ID        shared.ID         `json:"id"`
	Phase     Phase             `json:"phase"`
	Selection Selection         `json:"selection"`
	Cursor    int               `json:"cursor"`
	Progress  *ProgressSnapshot `json:"progress,omitempty"`
	Summary   *Summary          `json:"summary,omitempty"`

	StartedAt    time.Time  `json:"started_at"`
	LastActivity time.Time  `json:"last_activity"`
	ScanStarted  *time.Time `json:"scan_started,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// New creates a new session in the selecting phase.
func New() *ScanSession {
	now := time.Now().UTC()
	return &ScanSession{
		ID:           shared.NewID(),
		Phase:        PhaseSelecting,
		StartedAt:    now,
		LastActivity: now,
	}
}

// Touch updates the activity timestamp. Used for housekeeping only.
func (s *ScanSession) Touch() {
	s.LastActivity = time.Now().UTC()
}

// ChooseAll records the "scan everything" choice and moves straight to
// scanning. The selection is resolved to a concrete list by the executor.
func (s *ScanSession) ChooseAll() error {
	if err := s.transition(PhaseScanning); err != nil {
		return err
	}
	if s.Selection.IsSet() {
		return shared.NewDomainError("INVALID_STATE", "selection already set", shared.ErrConflict)
	}
	s.Selection = Selection{All: true}
	now := time.Now().UTC()
	s.ScanStarted = &now
	s.Touch()
	return nil
}

// ChooseSubset moves to the specifying phase to collect an explicit list.
func (s *ScanSession) ChooseSubset() error {
	if err := s.transition(PhaseSpecifying); err != nil {
		return err
	}
	s.Touch()
	return nil
}

// SetItems records an explicit item selection and moves to scanning.
// The list must already be trimmed and deduplicated; an empty list is a
// validation error, never a silently accepted no-op scan.
func (s *ScanSession) SetItems(items []string) error {
	if len(items) == 0 {
		return shared.NewDomainError("VALIDATION", "item list must not be empty", shared.ErrValidation)
	}
	if err := s.transition(PhaseScanning); err != nil {
		return err
	}
	if s.Selection.IsSet() {
		return shared.NewDomainError("INVALID_STATE", "selection already set", shared.ErrConflict)
	}
	s.Selection = Selection{Items: items}
	now := time.Now().UTC()
	s.ScanStarted = &now
	s.Touch()
	return nil
}

// ResolveSelection replaces the "all" sentinel with the concrete item list
// produced by discovery. It is a no-op refinement, not a phase transition.
func (s *ScanSession) ResolveSelection(items []string) error {
	if s.Phase != PhaseScanning {
		return shared.NewDomainError("INVALID_STATE", "can only resolve selection while scanning", shared.ErrConflict)
	}
	if !s.Selection.All {
		return shared.NewDomainError("INVALID_STATE", "selection is already concrete", shared.ErrConflict)
	}
	s.Selection = Selection{Items: items}
	s.Touch()
	return nil
}

// RecordProgress persists a new snapshot and advances the cursor. The
// cursor is monotonically non-decreasing for the session's lifetime.
func (s *ScanSession) RecordProgress(cursor int, snapshot ProgressSnapshot) error {
	if s.Phase != PhaseScanning {
		return shared.NewDomainError("INVALID_STATE", "can only record progress while scanning", shared.ErrConflict)
	}
	if cursor < s.Cursor {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("cursor must not move backwards (have %d, got %d)", s.Cursor, cursor),
			shared.ErrConflict)
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}
	s.Cursor = cursor
	s.Progress = &snapshot
	s.Touch()
	return nil
}

// Complete transitions the session to its terminal phase with a final
// snapshot and summary. No further mutation is permitted afterwards.
func (s *ScanSession) Complete(snapshot ProgressSnapshot, summary Summary) error {
	if err := s.transition(PhaseComplete); err != nil {
		return err
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}
	if !snapshot.Status.IsTerminal() {
		return shared.NewDomainError("VALIDATION", "final snapshot must carry a terminal status", shared.ErrValidation)
	}
	now := time.Now().UTC()
	s.Progress = &snapshot
	s.Summary = &summary
	s.CompletedAt = &now
	s.Touch()
	return nil
}

// Fail terminates the session with a fatal batch error (for example when
// discovery of the item list itself failed). The session still reaches the
// terminal phase so it remains inspectable and cleanable rather than
// dangling in scanning forever.
func (s *ScanSession) Fail(reason string) error {
	snapshot := ProgressSnapshot{Status: StatusFailed}
	if s.Progress != nil {
		snapshot = *s.Progress
		snapshot.Status = StatusFailed
	}
	// A failed run may terminate mid-list.
	snapshot.Total = max(snapshot.Total, snapshot.Current)
	summary := Summary{
		TotalScanned:  snapshot.Current,
		Successful:    snapshot.Successful,
		Failed:        snapshot.Failed,
		FailureReason: reason,
	}
	return s.Complete(snapshot, summary)
}

// IsFinished returns true once the session reached its terminal phase.
func (s *ScanSession) IsFinished() bool {
	return s.Phase.IsTerminal()
}

// ExpiresAt returns the moment the session becomes eligible for deletion:
// a grace period after completion (so one final progress poll still
// succeeds), or an inactivity TTL for sessions that never finish.
func (s *ScanSession) ExpiresAt(grace, idleTTL time.Duration) time.Time {
	if s.CompletedAt != nil {
		return s.CompletedAt.Add(grace)
	}
	return s.LastActivity.Add(idleTTL)
}

func (s *ScanSession) transition(next Phase) error {
	if s.Phase.IsTerminal() {
		return shared.NewDomainError("ALREADY_COMPLETE",
			"session is complete and cannot be mutated", shared.ErrConflict)
	}
	if !s.Phase.CanTransitionTo(next) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("cannot transition from %s to %s", s.Phase, next),
			shared.ErrConflict)
	}
	s.Phase = next
	return nil
}
