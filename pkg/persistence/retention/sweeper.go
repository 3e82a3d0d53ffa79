// Package retention expires terminal execution graphs from the overflow store on a schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweep at the top of every hour.
const DefaultSchedule = "0 * * * *"

// Expirer is implemented by stores that can drop old terminal graphs.
type Expirer interface {
	Expire(ctx context.Context, olderThan time.Duration) (int, error)
}

// Sweeper periodically calls Expire on a store.
type Sweeper struct {
	store     Expirer
	schedule  string
	retention time.Duration
	logger    *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper validates schedule and returns a sweeper that is not started yet.
func NewSweeper(logger *slog.Logger, store Expirer, schedule string, retention time.Duration) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}

	return &Sweeper{
		store:     store,
		schedule:  schedule,
		retention: retention,
		logger:    logger.With("module", "retention_sweeper"),
	}, nil
}

// Start schedules the sweep. The given context bounds every run.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("sweeper already started")
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	id, err := s.cron.AddFunc(s.schedule, func() {
		_, _ = s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add retention job: %w", err)
	}

	s.logger.InfoContext(ctx, "Starting retention sweeper", "id", id, "schedule", s.schedule, "retention", s.retention)
	s.cron.Start()

	return nil
}

// Sweep runs one expiry pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	removed, err := s.store.Expire(ctx, s.retention)
	if err != nil {
		s.logger.ErrorContext(ctx, "Retention sweep failed", "error", err)

		return removed, err
	}

	s.logger.DebugContext(ctx, "Retention sweep finished", "removed", removed)

	return removed, nil
}

// Stop halts the schedule and waits for a running sweep to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
	s.cron = nil
}
