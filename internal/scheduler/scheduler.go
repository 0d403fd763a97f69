// Package scheduler runs periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job is a task run every Interval. Runs of the same job never overlap.
type Job struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        func(ctx context.Context)
}

// Scheduler owns the ticker loops of a set of jobs.
type Scheduler struct {
	jobs []Job
	wg   sync.WaitGroup
}

// New creates a scheduler for jobs.
func New(jobs ...Job) (*Scheduler, error) {
	for _, j := range jobs {
		if j.Interval <= 0 {
			return nil, fmt.Errorf("job %q: interval must be > 0", j.Name)
		}
		if j.Run == nil {
			return nil, fmt.Errorf("job %q: run func is nil", j.Name)
		}
	}
	return &Scheduler{jobs: jobs}, nil
}

// Start launches one loop per job. Loops stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
}

// Wait blocks until every loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	slog.Info("Job started", "job", j.Name, "interval", j.Interval)

	if j.RunOnStart {
		runOnce(ctx, j)
	}

	for {
		select {
		case <-ticker.C:
			runOnce(ctx, j)
		case <-ctx.Done():
			slog.Info("Job shutting down", "job", j.Name, "reason", ctx.Err())
			return
		}
	}
}

func runOnce(ctx context.Context, j Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Job panicked", "job", j.Name, "panic", r)
		}
	}()

	start := time.Now()
	j.Run(ctx)
	slog.Debug("Job finished", "job", j.Name, "duration", time.Since(start))
}
