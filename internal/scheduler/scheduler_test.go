package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJobsUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	s, err := New(Job{
		Name:       "count",
		Interval:   5 * time.Millisecond,
		RunOnStart: true,
		Run:        func(context.Context) { runs.Add(1) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	s.Wait()

	if n := runs.Load(); n < 3 {
		t.Fatalf("runs = %d, want at least 3", n)
	}
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != after {
		t.Error("job ran after shutdown")
	}
}

func TestSchedulerSurvivesPanics(t *testing.T) {
	var runs atomic.Int32
	s, err := New(Job{
		Name:     "flaky",
		Interval: 2 * time.Millisecond,
		Run: func(context.Context) {
			if runs.Add(1) == 1 {
				panic("boom")
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	s.Wait()

	if runs.Load() < 2 {
		t.Fatal("expected the job to keep running after a panic")
	}
}

func TestNewRejectsBadJobs(t *testing.T) {
	if _, err := New(Job{Name: "zero", Run: func(context.Context) {}}); err == nil {
		t.Error("expected error for zero interval")
	}
	if _, err := New(Job{Name: "nil", Interval: time.Second}); err == nil {
		t.Error("expected error for nil run")
	}
}
