package scansession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capscanio/capscan/pkg/domain/shared"
)

func TestPhase_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseSelecting, PhaseSpecifying, true},
		{PhaseSelecting, PhaseScanning, true}, // "scan everything" shortcut
		{PhaseSelecting, PhaseComplete, false},
		{PhaseSpecifying, PhaseScanning, true},
		{PhaseSpecifying, PhaseSelecting, false},
		{PhaseScanning, PhaseComplete, true},
		{PhaseScanning, PhaseSelecting, false},
		{PhaseComplete, PhaseSelecting, false},
		{PhaseComplete, PhaseScanning, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestNew(t *testing.T) {
	s := New()
	assert.False(t, s.ID.IsZero())
	assert.Equal(t, PhaseSelecting, s.Phase)
	assert.False(t, s.Selection.IsSet())
	assert.Zero(t, s.Cursor)
	assert.Nil(t, s.Progress)
}

func TestScanSession_ChooseAll(t *testing.T) {
	s := New()
	require.NoError(t, s.ChooseAll())
	assert.Equal(t, PhaseScanning, s.Phase)
	assert.True(t, s.Selection.All)
	require.NotNil(t, s.ScanStarted)

	// Choosing again is not a valid transition.
	assert.Error(t, s.ChooseAll())

	require.NoError(t, New().ChooseSubset())
}

func TestScanSession_SetItems(t *testing.T) {
	s := New()
	require.NoError(t, s.ChooseSubset())

	err := s.SetItems(nil)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, PhaseSpecifying, s.Phase, "failed transition must not mutate phase")

	require.NoError(t, s.SetItems([]string{"A", "B"}))
	assert.Equal(t, PhaseScanning, s.Phase)
	assert.Equal(t, []string{"A", "B"}, s.Selection.Items)
}

func TestScanSession_ResolveSelection(t *testing.T) {
	s := New()
	require.NoError(t, s.ChooseAll())
	require.NoError(t, s.ResolveSelection([]string{"x", "y", "z"}))
	assert.False(t, s.Selection.All)
	assert.Len(t, s.Selection.Items, 3)

	// Resolving twice is a conflict.
	assert.Error(t, s.ResolveSelection([]string{"x"}))
}

func TestScanSession_CursorMonotonic(t *testing.T) {
	s := New()
	require.NoError(t, s.SetItems([]string{"a", "b", "c"}))

	snap := ProgressSnapshot{Status: StatusRunning, Current: 2, Total: 3, Successful: 2}
	require.NoError(t, s.RecordProgress(2, snap))
	assert.Equal(t, 2, s.Cursor)

	// Cursor must never move backwards.
	err := s.RecordProgress(1, snap)
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))
	assert.Equal(t, 2, s.Cursor)
}

func TestScanSession_NoMutationAfterComplete(t *testing.T) {
	s := New()
	require.NoError(t, s.SetItems([]string{"a"}))

	final := ProgressSnapshot{Status: StatusCompleted, Current: 1, Total: 1, Successful: 1}
	require.NoError(t, s.Complete(final, Summary{TotalScanned: 1, Successful: 1}))
	assert.True(t, s.IsFinished())
	require.NotNil(t, s.CompletedAt)

	assert.Error(t, s.RecordProgress(2, ProgressSnapshot{Status: StatusRunning, Current: 1, Total: 1}))
	assert.Error(t, s.Complete(final, Summary{}))
	assert.Error(t, s.ChooseAll())
}

func TestScanSession_Fail(t *testing.T) {
	s := New()
	require.NoError(t, s.ChooseAll())
	require.NoError(t, s.Fail("discovery unreachable"))

	assert.Equal(t, PhaseComplete, s.Phase)
	require.NotNil(t, s.Progress)
	assert.Equal(t, StatusFailed, s.Progress.Status)
	require.NotNil(t, s.Summary)
	assert.Equal(t, "discovery unreachable", s.Summary.FailureReason)
}

func TestProgressSnapshot_Validate(t *testing.T) {
	tests := []struct {
		name    string
		snap    ProgressSnapshot
		wantErr bool
	}{
		{"valid", ProgressSnapshot{Status: StatusRunning, Current: 2, Total: 5, Successful: 1, Failed: 1}, false},
		{"current exceeds total", ProgressSnapshot{Status: StatusRunning, Current: 6, Total: 5}, true},
		{"counts exceed current", ProgressSnapshot{Status: StatusRunning, Current: 2, Total: 5, Successful: 2, Failed: 1}, true},
		{"completed but partial", ProgressSnapshot{Status: StatusCompleted, Current: 3, Total: 5}, true},
		{"completed full", ProgressSnapshot{Status: StatusCompleted, Current: 5, Total: 5, Successful: 5}, false},
		{"negative current", ProgressSnapshot{Status: StatusRunning, Current: -1, Total: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScanSession_ExpiresAt(t *testing.T) {
	s := New()
	grace := 60 * time.Second
	idle := time.Hour

	assert.Equal(t, s.LastActivity.Add(idle), s.ExpiresAt(grace, idle))

	done := time.Now().UTC()
	s.CompletedAt = &done
	assert.Equal(t, done.Add(grace), s.ExpiresAt(grace, idle))
}
