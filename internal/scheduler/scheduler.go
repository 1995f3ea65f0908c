// Package scheduler runs tasks on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

// Scheduler triggers tasks on standard five-field cron specs or descriptors
// such as "@monthly".
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), logger: logger}
}

// Schedule registers task under name. Runs of the same task never overlap: a
// firing that finds the previous run still busy is skipped.
func (s *Scheduler) Schedule(ctx context.Context, spec, name string, task Task) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		start := time.Now()
		s.logger.Info("scheduled task started", "task", name)
		if err := task(ctx); err != nil {
			s.logger.Error("scheduled task failed", "task", name, "error", err, "duration", time.Since(start))
			return
		}
		s.logger.Info("scheduled task finished", "task", name, "duration", time.Since(start))
	}))

	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Start begins firing scheduled tasks in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("scheduler started", "next_run", e.Next)
	}
}

// Stop prevents new firings and waits for running tasks until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for scheduled tasks: %w", ctx.Err())
	}
}
