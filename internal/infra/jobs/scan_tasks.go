// Package jobs provides background job definitions and handlers using Asynq.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/capscanio/capscan/pkg/logger"
)

// Task types for scan jobs
const (
	TypeScanRun = "scan:run"
)

// QueueScan is the queue batch runs are delivered on.
const QueueScan = "scan"

// ScanRunPayload identifies the session whose batch should run.
type ScanRunPayload struct {
	SessionID string `json:"session_id"`
}

// NewScanRunTask creates a batch run task. Retries are kept: a run that
// dies mid-batch is redelivered and resumes from the persisted cursor,
// and an already-finished session makes the redelivery a no-op.
func NewScanRunTask(payload ScanRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scan run payload: %w", err)
	}
	return asynq.NewTask(
		TypeScanRun,
		data,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Hour),
		asynq.Queue(QueueScan),
	), nil
}

// ScanRunner executes the batch pass for a session.
type ScanRunner interface {
	Run(ctx context.Context, sessionID string) error
}

// ScanTaskHandler handles scan batch run tasks.
type ScanTaskHandler struct {
	runner ScanRunner
	logger *logger.Logger
}

// NewScanTaskHandler creates a ScanTaskHandler.
func NewScanTaskHandler(runner ScanRunner, log *logger.Logger) *ScanTaskHandler {
	return &ScanTaskHandler{
		runner: runner,
		logger: log.With("component", "scan_task_handler"),
	}
}

// HandleScanRun processes a scan:run task.
func (h *ScanTaskHandler) HandleScanRun(ctx context.Context, task *asynq.Task) error {
	var payload ScanRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal scan run payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.SessionID == "" {
		return fmt.Errorf("scan run payload missing session id: %w", asynq.SkipRetry)
	}

	h.logger.Info("scan run task received", "session_id", payload.SessionID)

	if err := h.runner.Run(ctx, payload.SessionID); err != nil {
		h.logger.Error("scan run failed", "session_id", payload.SessionID, "error", err)
		return fmt.Errorf("scan run for session %s: %w", payload.SessionID, err)
	}
	return nil
}
