package scan

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/capscanio/capscan/pkg/domain/scansession"
	"github.com/capscanio/capscan/pkg/logger"
)

// SweeperConfig holds the cleanup sweeper's timing knobs.
type SweeperConfig struct {
	// Interval is how often expired sessions are swept.
	Interval time.Duration
	// CompletionGrace is how long a finished session stays readable so
	// a final progress poll still succeeds.
	CompletionGrace time.Duration
	// IdleTTL is how long an unfinished session survives without
	// activity before it is considered abandoned.
	IdleTTL time.Duration
}

// Sweeper deletes expired scan sessions on a schedule. Sessions expire
// a grace period after completion, or after an inactivity TTL when they
// never finished.
type Sweeper struct {
	sessions scansession.Repository
	cfg      SweeperConfig
	cron     *cron.Cron
	log      *logger.Logger
}

// NewSweeper creates a session cleanup sweeper.
func NewSweeper(sessions scansession.Repository, cfg SweeperConfig, log *logger.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Sweeper{
		sessions: sessions,
		cfg:      cfg,
		cron:     cron.New(),
		log:      log.With("component", "session_sweeper"),
	}
}

// Start begins sweeping in the background.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), s.sweep); err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	s.cron.Start()
	s.log.Info("session sweeper started",
		"interval", s.cfg.Interval,
		"completion_grace", s.cfg.CompletionGrace,
		"idle_ttl", s.cfg.IdleTTL)
	return nil
}

// Stop stops the sweeper and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("session sweeper stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.SweepOnce(ctx); err != nil {
		s.log.Error("session sweep failed", "error", err)
	}
}

// SweepOnce deletes all currently expired sessions. Deletes run
// concurrently; every candidate is attempted even if some fail.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	expired, err := s.sessions.ListExpired(ctx, time.Now().UTC(), s.cfg.CompletionGrace, s.cfg.IdleTTL)
	if err != nil {
		return fmt.Errorf("list expired sessions: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	var deleted atomic.Int64
	var g errgroup.Group
	g.SetLimit(4)
	for _, session := range expired {
		session := session
		g.Go(func() error {
			if err := s.sessions.Delete(ctx, session.ID.String()); err != nil {
				s.log.Warn("failed to delete expired session", "session_id", session.ID.String(), "error", err)
				return err
			}
			deleted.Add(1)
			return nil
		})
	}
	err = g.Wait()

	s.log.Info("expired sessions swept", "deleted", deleted.Load(), "candidates", len(expired))
	return err
}
