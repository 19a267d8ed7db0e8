package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/capscanio/capscan/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &Client{
		client: client,
		logger: log.With("component", "job_client"),
	}
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueScanRun hands a session to the background batch executor.
func (c *Client) EnqueueScanRun(ctx context.Context, sessionID string) error {
	task, err := NewScanRunTask(ScanRunPayload{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue scan run",
			"session_id", sessionID,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("scan run queued",
		"task_id", info.ID,
		"session_id", sessionID,
		"queue", info.Queue,
	)
	return nil
}
