package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dripflow/dripflow/pkg/models"
)

const (
	sweepSchedule = "@every 30s"
	purgeSchedule = "0 3 * * *" // Daily, off-peak

	sweepBatchSize = 100
)

// Sweeper drives time forward for suspended runs: it periodically resumes
// waits whose deadline passed and purges execution log entries past the
// retention window. Timeouts are persisted on the wait descriptor, so a
// restart loses nothing; the next sweep picks up where the dead process
// stopped.
type Sweeper struct {
	engine *Engine
	logger *slog.Logger
	cron   *cron.Cron
}

func NewSweeper(engine *Engine, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		engine: engine,
		logger: logger.With("module", "sweeper"),
		cron:   cron.New(),
	}
}

// Start registers the sweep and purge jobs and starts the scheduler.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(sweepSchedule, func() { s.Sweep(ctx) }); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(purgeSchedule, func() { s.Purge(ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Sweeper started",
		"sweep_schedule", sweepSchedule,
		"purge_schedule", purgeSchedule)

	return nil
}

// Stop halts the scheduler and waits for in-flight jobs.
func (s *Sweeper) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// Sweep resumes every run whose wait deadline has passed. Each resume goes
// through the version guard, so overlapping sweeps (or a sweep racing an
// inbound event) fire each timeout at most once.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired, err := s.engine.persistence.Runs().FindExpiredWaits(ctx, time.Now().UTC(), sweepBatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list expired waits", "error", err)

		return
	}

	for _, run := range expired {
		if err := s.engine.resumeExpired(ctx, run); err != nil {
			s.logger.ErrorContext(ctx, "failed to resume expired wait",
				"run_id", run.ID, "error", err)
		}
	}
}

// Purge removes execution log entries older than the retention window.
func (s *Sweeper) Purge(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-models.ExecutionLogRetention)

	purged, err := s.engine.persistence.ExecutionLog().PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to purge execution log", "error", err)

		return
	}

	if purged > 0 {
		s.logger.InfoContext(ctx, "Purged execution log entries", "count", purged, "cutoff", cutoff)
	}
}
