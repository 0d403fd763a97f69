package sweep

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
)

func TestReaperAnswersOnlyStaleInProgress(t *testing.T) {
	repo := newStore(t)
	ctx := context.Background()
	old := time.Now().Add(-13 * time.Hour)

	startSession(t, repo, 1, "stale", old)
	startSession(t, repo, 2, "fresh", time.Now().Add(-time.Hour))
	if _, err := repo.UpsertPendingSession(ctx, 3, "pending", old); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	closed := startSession(t, repo, 4, "closed", old)
	open, _ := repo.GetOpenSession(ctx, 4)
	if err := repo.UpdateSessionStatus(ctx, closed.ID, open.Version, domain.StatusClosed, old); err != nil {
		t.Fatalf("close: %v", err)
	}

	sender := &fakeSender{}
	reaper := NewReaper(repo, sender, 12*time.Hour)

	rep := reaper.Run(ctx)
	if rep.Answered != 1 {
		t.Fatalf("report = %+v, want one answered", rep)
	}
	if len(sender.sent) != 1 || sender.sent[0].ChatID != 1 {
		t.Fatalf("expected a notice to user 1, got %+v", sender.sent)
	}
	if !strings.Contains(sender.sent[0].Text, "12 hours") {
		t.Errorf("notice = %q", sender.sent[0].Text)
	}

	for userID, want := range map[int64]domain.Status{
		1: domain.StatusAnswered,
		2: domain.StatusInProgress,
		3: domain.StatusPending,
	} {
		sess, err := repo.GetOpenSession(ctx, userID)
		if err != nil || sess == nil {
			t.Fatalf("user %d: %v, %v", userID, sess, err)
		}
		if sess.Status != want {
			t.Errorf("user %d status = %s, want %s", userID, sess.Status, want)
		}
	}
	if sess, _ := repo.GetOpenSession(ctx, 4); sess != nil {
		t.Errorf("closed session touched: %+v", sess)
	}

	if rep := reaper.Run(ctx); rep.Answered != 0 {
		t.Errorf("second run answered again: %+v", rep)
	}
}

func TestReaperContinuesWhenNoticeFails(t *testing.T) {
	repo := newStore(t)
	old := time.Now().Add(-24 * time.Hour)
	startSession(t, repo, 10, "a", old)
	startSession(t, repo, 11, "b", old)

	sender := &fakeSender{fail: map[int64]bool{10: true}}
	rep := NewReaper(repo, sender, 12*time.Hour).Run(context.Background())

	if rep.Answered != 2 {
		t.Fatalf("report = %+v, want both answered", rep)
	}
	if len(sender.sent) != 1 || sender.sent[0].ChatID != 11 {
		t.Errorf("unexpected notices %+v", sender.sent)
	}
}
