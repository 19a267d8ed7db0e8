package scan

import (
	"fmt"

	"github.com/capscanio/capscan/pkg/domain/scansession"
)

// === Step protocol types ===

// StepRequest is the single request shape for the step endpoint. Which
// fields are meaningful depends on the session's current phase.
type StepRequest struct {
	SessionID string   `json:"session_id,omitempty" validate:"omitempty,uuid"`
	Phase     string   `json:"phase,omitempty" validate:"omitempty,scan_phase"`
	Scope     string   `json:"scope,omitempty" validate:"omitempty,scan_scope"`
	Items     []string `json:"items,omitempty" validate:"omitempty,dive,min=1"`
	Action    string   `json:"action,omitempty" validate:"omitempty,scan_action"`
}

// Option is one selectable answer at a pause point.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// NextCall tells the caller exactly what the next step request must
// contain: the phase to declare and the fields to fill in.
type NextCall struct {
	Phase  string   `json:"phase"`
	Fields []string `json:"fields"`
}

// StepResponse is returned by every step call. Exactly one of the
// pause-point, scan-started, progress or completion groups is populated.
type StepResponse struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`

	// Pause point: a question plus the shape of the required follow-up.
	Question         string    `json:"question,omitempty"`
	Options          []Option  `json:"options,omitempty"`
	RequiredNextCall *NextCall `json:"required_next_call,omitempty"`

	// Scan started or stop acknowledged.
	Status        string    `json:"status,omitempty"`
	CheckProgress *NextCall `json:"check_progress,omitempty"`

	// Progress read while scanning.
	Progress *scansession.ProgressSnapshot `json:"progress,omitempty"`

	// Completion.
	Summary *scansession.Summary `json:"summary,omitempty"`
	Stopped bool                 `json:"stopped,omitempty"`
}

func selectingResponse(s *scansession.ScanSession) *StepResponse {
	return &StepResponse{
		SessionID: s.ID.String(),
		Phase:     string(s.Phase),
		Question:  "Scan all capability types, or a specific subset?",
		Options: []Option{
			{Value: "all", Label: "Scan everything the system exposes"},
			{Value: "specific", Label: "Scan a list of named types"},
		},
		RequiredNextCall: &NextCall{
			Phase:  string(scansession.PhaseSelecting),
			Fields: []string{"scope"},
		},
	}
}

func specifyingResponse(s *scansession.ScanSession) *StepResponse {
	return &StepResponse{
		SessionID: s.ID.String(),
		Phase:     string(s.Phase),
		Question:  "Which capability types should be scanned?",
		RequiredNextCall: &NextCall{
			Phase:  string(scansession.PhaseSpecifying),
			Fields: []string{"items"},
		},
	}
}

func startedResponse(s *scansession.ScanSession) *StepResponse {
	return &StepResponse{
		SessionID: s.ID.String(),
		Phase:     string(s.Phase),
		Status:    "scan_started",
		CheckProgress: &NextCall{
			Phase:  string(scansession.PhaseScanning),
			Fields: []string{"action"},
		},
	}
}

func progressResponse(s *scansession.ScanSession) *StepResponse {
	resp := &StepResponse{
		SessionID: s.ID.String(),
		Phase:     string(s.Phase),
	}
	if s.Progress != nil {
		snapshot := *s.Progress
		resp.Progress = &snapshot
	} else {
		resp.Progress = &scansession.ProgressSnapshot{Status: scansession.StatusRunning}
	}
	return resp
}

func stoppingResponse(s *scansession.ScanSession) *StepResponse {
	resp := progressResponse(s)
	resp.Status = "stopping"
	return resp
}

func completionResponse(s *scansession.ScanSession) *StepResponse {
	resp := &StepResponse{
		SessionID: s.ID.String(),
		Phase:     string(s.Phase),
	}
	if s.Summary != nil {
		summary := *s.Summary
		resp.Summary = &summary
		resp.Stopped = summary.Stopped
		if summary.Stopped {
			resp.Status = fmt.Sprintf("stopped after %d of %d items", summary.TotalScanned, summary.TotalScanned+remainingOf(s))
		} else {
			resp.Status = "complete"
		}
	} else {
		resp.Status = "complete"
	}
	return resp
}

func remainingOf(s *scansession.ScanSession) int {
	if s.Progress == nil {
		return 0
	}
	remaining := s.Progress.Total - s.Progress.Current
	if remaining < 0 {
		return 0
	}
	return remaining
}
