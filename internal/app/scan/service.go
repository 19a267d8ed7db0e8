// Package scan implements the resumable capability scan workflow: a
// step-based session state machine plus the background batch executor
// that walks the selected items, classifies each one and persists the
// results to the semantic index.
package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/capscanio/capscan/internal/metrics"
	"github.com/capscanio/capscan/pkg/domain/scansession"
	"github.com/capscanio/capscan/pkg/domain/shared"
	"github.com/capscanio/capscan/pkg/logger"
)

// Scope and action values accepted by the step endpoint.
const (
	ScopeAll      = "all"
	ScopeSpecific = "specific"

	ActionStatus = "status"
	ActionStop   = "stop"
)

// Service routes step calls to the handler for the session's current
// phase. Handlers perform at most one phase transition per call and
// never run batch work inline; entering the scanning phase only
// enqueues a run for the background executor.
type Service struct {
	sessions scansession.Repository
	guard    Guard
	enqueuer Enqueuer
	log      *logger.Logger
}

// NewService creates the step router.
func NewService(sessions scansession.Repository, guard Guard, enqueuer Enqueuer, log *logger.Logger) *Service {
	return &Service{
		sessions: sessions,
		guard:    guard,
		enqueuer: enqueuer,
		log:      log,
	}
}

// Step advances (or reads) a session. A request without a session ID
// creates a fresh session and returns the first pause point.
func (s *Service) Step(ctx context.Context, req StepRequest) (*StepResponse, error) {
	if req.SessionID == "" {
		return s.createSession(ctx)
	}

	session, err := s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("SESSION_NOT_FOUND",
				fmt.Sprintf("session %s does not exist or has expired", req.SessionID),
				shared.ErrNotFound)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	// The caller must declare the phase it believes the session is in.
	// A mismatch means the caller's view is stale; the session is not
	// mutated and the response names the expected phase.
	if req.Phase != "" && scansession.Phase(req.Phase) != session.Phase {
		return nil, shared.NewDomainError("PHASE_MISMATCH",
			fmt.Sprintf("session is in phase %q, not %q; repeat the call for phase %q",
				session.Phase, req.Phase, session.Phase),
			shared.ErrValidation)
	}

	switch session.Phase {
	case scansession.PhaseSelecting:
		return s.handleSelecting(ctx, session, req)
	case scansession.PhaseSpecifying:
		return s.handleSpecifying(ctx, session, req)
	case scansession.PhaseScanning:
		return s.handleScanning(ctx, session, req)
	case scansession.PhaseComplete:
		return completionResponse(session), nil
	default:
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("session %s is in unknown phase %q", session.ID, session.Phase),
			shared.ErrInternal)
	}
}

// Progress returns the current progress view of a session without
// advancing the workflow. Finished sessions return the completion view.
func (s *Service) Progress(ctx context.Context, sessionID string) (*StepResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("SESSION_NOT_FOUND",
				fmt.Sprintf("session %s does not exist or has expired", sessionID),
				shared.ErrNotFound)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.IsFinished() {
		return completionResponse(session), nil
	}
	return progressResponse(session), nil
}

func (s *Service) createSession(ctx context.Context) (*StepResponse, error) {
	session := scansession.New()
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("scan session created", "session_id", session.ID.String())
	return selectingResponse(session), nil
}

func (s *Service) handleSelecting(ctx context.Context, session *scansession.ScanSession, req StepRequest) (*StepResponse, error) {
	switch req.Scope {
	case "":
		// Re-read of the pause point; no transition.
		s.touch(ctx, session)
		return selectingResponse(session), nil

	case ScopeAll:
		if err := session.ChooseAll(); err != nil {
			return nil, err
		}
		return s.startScan(ctx, session)

	case ScopeSpecific:
		if err := session.ChooseSubset(); err != nil {
			return nil, err
		}
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		return specifyingResponse(session), nil

	default:
		return nil, shared.NewDomainError("VALIDATION",
			fmt.Sprintf("scope must be %q or %q", ScopeAll, ScopeSpecific),
			shared.ErrValidation)
	}
}

func (s *Service) handleSpecifying(ctx context.Context, session *scansession.ScanSession, req StepRequest) (*StepResponse, error) {
	if len(req.Items) == 0 {
		// Re-read of the pause point.
		s.touch(ctx, session)
		return specifyingResponse(session), nil
	}

	items := normalizeItems(req.Items)
	if err := session.SetItems(items); err != nil {
		return nil, err
	}
	return s.startScan(ctx, session)
}

func (s *Service) handleScanning(ctx context.Context, session *scansession.ScanSession, req StepRequest) (*StepResponse, error) {
	s.touch(ctx, session)

	switch req.Action {
	case ActionStop:
		if err := s.guard.RequestStop(ctx, session.ID.String()); err != nil {
			return nil, fmt.Errorf("request stop: %w", err)
		}
		s.log.Info("scan stop requested", "session_id", session.ID.String())
		return stoppingResponse(session), nil

	case "", ActionStatus:
		return progressResponse(session), nil

	default:
		return nil, shared.NewDomainError("VALIDATION",
			fmt.Sprintf("action must be %q or %q", ActionStatus, ActionStop),
			shared.ErrValidation)
	}
}

// startScan persists the transition into scanning and hands the session
// to the background executor. The response is returned immediately; the
// batch runs detached.
func (s *Service) startScan(ctx context.Context, session *scansession.ScanSession) (*StepResponse, error) {
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	if err := s.enqueuer.EnqueueScanRun(ctx, session.ID.String()); err != nil {
		// The session already reached scanning; mark it failed so it
		// does not dangle waiting for an executor that will never come.
		if failErr := session.Fail(fmt.Sprintf("failed to schedule scan: %v", err)); failErr == nil {
			if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
				s.log.Error("failed to persist session failure", "session_id", session.ID.String(), "error", saveErr)
			}
		}
		return nil, fmt.Errorf("enqueue scan run: %w", err)
	}

	metrics.ScansStartedTotal.Inc()
	s.log.Info("scan enqueued",
		"session_id", session.ID.String(),
		"scope_all", session.Selection.All,
		"items", len(session.Selection.Items))
	return startedResponse(session), nil
}

// touch refreshes the session's activity timestamp. It deliberately
// goes through Repository.Touch rather than Save: during the scanning
// phase the executor owns the record, and a wholesale write from the
// request path would overwrite its checkpointed cursor with whatever
// stale copy this call loaded. Failures only cost housekeeping
// accuracy, so they are logged rather than surfaced.
func (s *Service) touch(ctx context.Context, session *scansession.ScanSession) {
	if err := s.sessions.Touch(ctx, session.ID.String()); err != nil {
		s.log.Warn("failed to refresh session activity", "session_id", session.ID.String(), "error", err)
	}
}

// normalizeItems trims whitespace and drops blanks and duplicates while
// preserving first-seen order.
func normalizeItems(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
