package sweep

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
	"github.com/64envy64/cargo-bot/internal/operator"
	"github.com/64envy64/cargo-bot/internal/store"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []operator.Alert
	failOn map[int64]bool
}

func (f *fakeNotifier) Notify(_ context.Context, a operator.Alert) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[a.UserID] {
		return 0, 2
	}
	f.alerts = append(f.alerts, a)
	return 2, 0
}

type fakeDirectory struct {
	names map[int64]string
}

func (f *fakeDirectory) DisplayName(_ context.Context, userID int64) (string, error) {
	name, ok := f.names[userID]
	if !ok {
		return "", errors.New("chat not found")
	}
	return name, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []messenger.Message
	fail map[int64]bool
}

func (f *fakeSender) Send(_ context.Context, msg messenger.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[msg.ChatID] {
		return errors.New("blocked by user")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func startSession(t *testing.T, repo *store.SQLiteStore, userID int64, msg string, at time.Time) *domain.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := repo.UpsertPendingSession(ctx, userID, msg, at)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.UpdateSessionStatus(ctx, sess.ID, sess.Version, domain.StatusInProgress, at); err != nil {
		t.Fatalf("start: %v", err)
	}
	return sess
}

func TestNewRequestAnnouncedOnce(t *testing.T) {
	repo := newStore(t)
	ctx := context.Background()
	notifier := &fakeNotifier{}
	sweep := NewNotifications(repo, &fakeDirectory{names: map[int64]string{77: "bob"}}, notifier, time.Minute)

	if _, err := repo.UpsertPendingSession(ctx, 77, "my order is late", time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	r := sweep.Run(ctx)
	if r.New != 1 {
		t.Fatalf("New = %d, want 1", r.New)
	}
	if len(notifier.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(notifier.alerts))
	}
	a := notifier.alerts[0]
	if a.Kind != operator.AlertNewRequest || a.UserID != 77 || a.Username != "bob" || a.Message != "my order is late" {
		t.Errorf("unexpected alert %+v", a)
	}

	if r := sweep.Run(ctx); r.New != 0 {
		t.Errorf("second sweep re-announced: New = %d", r.New)
	}

	if _, err := repo.UpsertPendingSession(ctx, 77, "hello??", time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if r := sweep.Run(ctx); r.New != 1 {
		t.Errorf("refreshed request not announced: New = %d", r.New)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	repo := newStore(t)
	ctx := context.Background()
	notifier := &fakeNotifier{failOn: map[int64]bool{1: true}}
	sweep := NewNotifications(repo, &fakeDirectory{}, notifier, time.Minute)

	for _, id := range []int64{1, 2} {
		if _, err := repo.UpsertPendingSession(ctx, id, "help", time.Now()); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	r := sweep.Run(ctx)
	if r.New != 1 || r.Failed != 1 {
		t.Fatalf("report = %+v, want New=1 Failed=1", r)
	}
	if len(notifier.alerts) != 1 || notifier.alerts[0].UserID != 2 {
		t.Fatalf("expected user 2 to be announced, got %+v", notifier.alerts)
	}
	if notifier.alerts[0].Username != messenger.UnknownUsername {
		t.Errorf("Username = %q, want fallback", notifier.alerts[0].Username)
	}
}

func TestActivityAnnouncedOncePerMessage(t *testing.T) {
	repo := newStore(t)
	ctx := context.Background()
	notifier := &fakeNotifier{}
	sweep := NewNotifications(repo, &fakeDirectory{}, notifier, time.Minute)

	startSession(t, repo, 5, "first", time.Now().Add(-5*time.Second))
	if r := sweep.Run(ctx); r.Active != 0 {
		t.Fatalf("activity before pickup announced: %+v", r)
	}

	if _, err := repo.TouchActivity(ctx, 5, time.Now()); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := repo.SaveInteraction(ctx, &domain.Interaction{
		UserID: 5, Message: "any news?", Type: domain.InteractionText, Success: true,
	}); err != nil {
		t.Fatalf("save interaction: %v", err)
	}

	r := sweep.Run(ctx)
	if r.Active != 1 {
		t.Fatalf("Active = %d, want 1", r.Active)
	}
	if got := notifier.alerts[len(notifier.alerts)-1]; got.Kind != operator.AlertNewActivity || got.Message != "any news?" {
		t.Errorf("unexpected alert %+v", got)
	}
	if r := sweep.Run(ctx); r.Active != 0 {
		t.Errorf("activity announced twice: %+v", r)
	}
}

func TestActivityOutsideWindowIgnored(t *testing.T) {
	repo := newStore(t)
	ctx := context.Background()
	notifier := &fakeNotifier{}
	sweep := NewNotifications(repo, &fakeDirectory{}, notifier, time.Minute)

	old := time.Now().Add(-2 * time.Hour)
	startSession(t, repo, 6, "x", old)
	if _, err := repo.TouchActivity(ctx, 6, old.Add(time.Minute)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if r := sweep.Run(ctx); r.Active != 0 {
		t.Errorf("stale activity announced: %+v", r)
	}
}

func TestClosedSessionsNeverAnnounced(t *testing.T) {
	repo := newStore(t)
	ctx := context.Background()
	notifier := &fakeNotifier{}
	sweep := NewNotifications(repo, &fakeDirectory{}, notifier, time.Minute)

	sess, err := repo.UpsertPendingSession(ctx, 8, "bye", time.Now())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.UpdateSessionStatus(ctx, sess.ID, sess.Version, domain.StatusClosed, time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if r := sweep.Run(ctx); r.New+r.Active != 0 {
		t.Errorf("closed session announced: %+v", r)
	}
}
