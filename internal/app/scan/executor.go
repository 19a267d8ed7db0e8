package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/capscanio/capscan/internal/app/infer"
	"github.com/capscanio/capscan/internal/metrics"
	"github.com/capscanio/capscan/pkg/domain/capability"
	"github.com/capscanio/capscan/pkg/domain/scansession"
	"github.com/capscanio/capscan/pkg/logger"
)

// maxSaveFailures bounds consecutive progress persistence failures
// before the run aborts. Without a persisted cursor the run cannot be
// resumed correctly, so losing persistence is fatal rather than silent.
const maxSaveFailures = 3

// errGuardRefresh marks a run aborted because the executor lease could
// not be refreshed. A lost lease may already belong to a redelivered
// executor, so the aborting run must not release the guard.
var errGuardRefresh = errors.New("executor guard refresh failed")

// Executor runs the batch pass of a scan session: it resolves the
// selection, walks the item list from the persisted cursor, classifies
// each item, writes results to the semantic index and checkpoints
// progress after every item. The run is resumable: if it dies after
// item k, the next delivery resumes at k+1.
type Executor struct {
	sessions scansession.Repository
	guard    Guard
	lister   Lister
	inferrer infer.Inferrer
	index    Index
	log      *logger.Logger
}

// NewExecutor creates a batch executor.
func NewExecutor(sessions scansession.Repository, guard Guard, lister Lister, inferrer infer.Inferrer, index Index, log *logger.Logger) *Executor {
	return &Executor{
		sessions: sessions,
		guard:    guard,
		lister:   lister,
		inferrer: inferrer,
		index:    index,
		log:      log,
	}
}

// Run executes one batch pass for the session. A session whose guard is
// already held, or that has already finished, is a no-op: duplicate
// deliveries never produce a second concurrent pass.
func (e *Executor) Run(ctx context.Context, sessionID string) (runErr error) {
	acquired, err := e.guard.Acquire(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("acquire executor guard: %w", err)
	}
	if !acquired {
		e.log.Info("executor already running for session, skipping", "session_id", sessionID)
		return nil
	}
	defer func() {
		if errors.Is(runErr, errGuardRefresh) {
			// The lease may now be held by a newer executor; deleting it
			// here would let a third run in alongside that one.
			return
		}
		if err := e.guard.Release(context.WithoutCancel(ctx), sessionID); err != nil {
			e.log.Warn("failed to release executor guard", "session_id", sessionID, "error", err)
		}
	}()

	metrics.ScansInProgress.Inc()
	defer metrics.ScansInProgress.Dec()

	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session.IsFinished() {
		e.log.Info("session already finished, skipping", "session_id", sessionID)
		return nil
	}
	if session.Phase != scansession.PhaseScanning {
		return fmt.Errorf("session %s is in phase %s, expected %s", sessionID, session.Phase, scansession.PhaseScanning)
	}

	if session.Selection.All {
		if err := e.resolveSelection(ctx, session); err != nil {
			return err
		}
	}

	return e.runBatch(ctx, session)
}

// resolveSelection turns the "scan everything" choice into a concrete
// item list. Discovery failure here is fatal for the whole scan: the
// session fails loudly instead of silently scanning zero items.
func (e *Executor) resolveSelection(ctx context.Context, session *scansession.ScanSession) error {
	items, err := e.lister.List(ctx)
	if err != nil {
		e.log.Error("selection resolution failed", "session_id", session.ID.String(), "error", err)
		reason := fmt.Sprintf("selection resolution failed: %v", err)
		if failErr := session.Fail(reason); failErr != nil {
			return fmt.Errorf("mark session failed: %w", failErr)
		}
		if saveErr := e.sessions.Save(ctx, session); saveErr != nil {
			return fmt.Errorf("persist session failure: %w", saveErr)
		}
		metrics.ScansFinishedTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("resolve selection: %w", err)
	}

	if err := session.ResolveSelection(normalizeItems(items)); err != nil {
		return fmt.Errorf("resolve selection: %w", err)
	}
	if err := e.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("save resolved selection: %w", err)
	}
	e.log.Info("selection resolved", "session_id", session.ID.String(), "items", len(session.Selection.Items))
	return nil
}

func (e *Executor) runBatch(ctx context.Context, session *scansession.ScanSession) error {
	sessionID := session.ID.String()
	items := session.Selection.Items
	total := len(items)

	start := time.Now().UTC()
	if session.ScanStarted != nil {
		start = *session.ScanStarted
	}

	// Carry counters forward when resuming a partially completed run.
	successful, failed := 0, 0
	var recent []scansession.ItemError
	if session.Progress != nil {
		successful = session.Progress.Successful
		failed = session.Progress.Failed
		recent = session.Progress.RecentErrors
	}

	log := e.log.With("session_id", sessionID)
	log.Info("batch run starting", "cursor", session.Cursor, "total", total)

	stopped := false
	saveFailures := 0

	for i := session.Cursor; i < total; i++ {
		if err := ctx.Err(); err != nil {
			// Shutdown mid-run. The cursor is already persisted, so a
			// redelivery resumes exactly where this run left off.
			log.Info("batch run interrupted", "cursor", session.Cursor)
			return err
		}

		if stop, err := e.guard.StopRequested(ctx, sessionID); err != nil {
			log.Warn("failed to check stop signal", "error", err)
		} else if stop {
			stopped = true
			break
		}

		// A lease that cannot be refreshed may already have expired and
		// been acquired by a redelivered task; continuing would mean two
		// executors writing the same record. The cursor is persisted, so
		// aborting here loses nothing.
		if err := e.guard.Refresh(ctx, sessionID); err != nil {
			log.Warn("executor guard refresh failed, aborting run", "cursor", session.Cursor, "error", err)
			return fmt.Errorf("%w for session %s: %v", errGuardRefresh, sessionID, err)
		}

		item := items[i]
		itemStart := time.Now()
		record, err := e.inferrer.Infer(ctx, item)
		if err == nil {
			if writeErr := e.index.Upsert(ctx, record); writeErr != nil {
				metrics.IndexWritesTotal.WithLabelValues("failed").Inc()
				err = fmt.Errorf("index write failed: %w", writeErr)
			} else {
				metrics.IndexWritesTotal.WithLabelValues("ok").Inc()
			}
		}

		current := i + 1
		if err != nil {
			failed++
			metrics.ItemsProcessedTotal.WithLabelValues("failed").Inc()
			recent = append(recent, scansession.ItemError{
				ItemID:    capability.RecordID(item),
				Item:      item,
				Message:   err.Error(),
				Index:     i,
				Timestamp: time.Now().UTC(),
			})
			recent = trimErrors(recent)
			log.Warn("item scan failed", "item", item, "index", i, "error", err,
				"duration_ms", time.Since(itemStart).Milliseconds())
		} else {
			successful++
			metrics.ItemsProcessedTotal.WithLabelValues("success").Inc()
			log.Debug("item scanned", "item", item, "index", i,
				"duration_ms", time.Since(itemStart).Milliseconds())
		}

		snapshot := BuildSnapshot(start, time.Now().UTC(), current, total, successful, failed, recent)
		if err := session.RecordProgress(current, snapshot); err != nil {
			return fmt.Errorf("record progress: %w", err)
		}

		if err := e.sessions.Save(ctx, session); err != nil {
			saveFailures++
			log.Warn("failed to persist progress", "attempt", saveFailures, "error", err)
			if saveFailures >= maxSaveFailures {
				return fmt.Errorf("persist progress for session %s: %w", sessionID, err)
			}
			continue
		}
		saveFailures = 0
	}

	return e.finish(ctx, session, start, total, successful, failed, recent, stopped)
}

func (e *Executor) finish(ctx context.Context, session *scansession.ScanSession, start time.Time, total, successful, failed int, recent []scansession.ItemError, stopped bool) error {
	sessionID := session.ID.String()
	processed := session.Cursor

	snapshot := scansession.ProgressSnapshot{
		Status:         scansession.StatusCompleted,
		Current:        processed,
		Total:          total,
		Successful:     successful,
		Failed:         failed,
		RecentErrors:   recent,
		ElapsedSeconds: time.Since(start).Seconds(),
	}
	if stopped {
		snapshot.Status = scansession.StatusStopped
	}

	summary := scansession.Summary{
		TotalScanned:     processed,
		Successful:       successful,
		Failed:           failed,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Stopped:          stopped,
	}

	if err := session.Complete(snapshot, summary); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if err := e.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("persist completed session: %w", err)
	}

	outcome := "completed"
	if stopped {
		outcome = "stopped"
	}
	metrics.ScansFinishedTotal.WithLabelValues(outcome).Inc()
	metrics.ScanDuration.Observe(time.Since(start).Seconds())

	e.log.Info("batch run finished",
		"session_id", sessionID,
		"outcome", outcome,
		"processed", processed,
		"total", total,
		"successful", successful,
		"failed", failed)
	return nil
}
