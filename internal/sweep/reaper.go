package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
)

// ReaperStore is the store surface the inactivity reaper uses.
type ReaperStore interface {
	ListInactiveSessions(ctx context.Context, cutoff time.Time) ([]*domain.Session, error)
	AnswerIfStale(ctx context.Context, id, version int64, cutoff, now time.Time) (bool, error)
}

// ReapReport summarises one reaper run.
type ReapReport struct {
	Answered int
	Skipped  int
	Failed   int
}

// Reaper moves in_progress sessions with no user activity for longer than
// the threshold to answered and tells the user.
type Reaper struct {
	store     ReaperStore
	sender    messenger.Sender
	threshold time.Duration
	now       func() time.Time
}

// NewReaper creates a reaper. sender reaches users, not operators.
func NewReaper(store ReaperStore, sender messenger.Sender, threshold time.Duration) *Reaper {
	return &Reaper{store: store, sender: sender, threshold: threshold, now: time.Now}
}

// Tick runs the reaper and logs the outcome.
func (r *Reaper) Tick(ctx context.Context) {
	rep := r.Run(ctx)
	if rep.Answered+rep.Skipped+rep.Failed > 0 {
		slog.Info("Inactivity reaper finished",
			"answered", rep.Answered, "skipped", rep.Skipped, "failed", rep.Failed)
	}
}

// Run reaps every session idle past the threshold.
func (r *Reaper) Run(ctx context.Context) ReapReport {
	var rep ReapReport
	now := r.now()
	cutoff := now.Add(-r.threshold)

	sessions, err := r.store.ListInactiveSessions(ctx, cutoff)
	if err != nil {
		slog.Error("Inactivity reaper failed to list sessions", "error", err)
		return rep
	}

	for _, s := range sessions {
		if ctx.Err() != nil {
			return rep
		}

		// The guarded update skips sessions the user revived since the query.
		ok, err := r.store.AnswerIfStale(ctx, s.ID, s.Version, cutoff, now)
		if err != nil {
			rep.Failed++
			slog.Error("Failed to answer inactive session", "error", err, "session_id", s.ID, "user_id", s.UserID)
			continue
		}
		if !ok {
			rep.Skipped++
			continue
		}
		rep.Answered++

		if err := messenger.SendText(ctx, r.sender, s.UserID, r.notice()); err != nil {
			slog.Warn("Failed to send inactivity notice", "error", err, "user_id", s.UserID)
		}
	}
	return rep
}

func (r *Reaper) notice() string {
	return fmt.Sprintf("👋 Hello! There has been no activity in your request for more than %.0f hours, "+
		"so we consider it resolved. If you have new questions, just write to us again.", r.threshold.Hours())
}
