// Package scheduler runs the conversation journal retention job.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/meteo-agent/internal/store"
)

const purgeTimeout = 30 * time.Second

// Purger is the part of store.LogStore the retention job needs.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ Purger = (store.LogStore)(nil)

// Scheduler periodically deletes journal entries older than the retention
// period.
type Scheduler struct {
	scheduler *gocron.Scheduler
	purger    Purger
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a new Scheduler. A non-positive retention or interval
// disables the job.
func New(purger Purger, retention, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		purger:    purger,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the purge job and starts the underlying scheduler. The
// first purge runs immediately.
func (s *Scheduler) Start() error {
	if s.purger == nil || s.retention <= 0 || s.interval <= 0 {
		s.logger.Info("scheduler: retention purge disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()

		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduler: retention purge failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce deletes entries older than now minus the retention period.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("scheduler: retention purge completed", "removed", n, "cutoff", cutoff)
	return n, nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
