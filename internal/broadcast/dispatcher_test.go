package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
)

type fakeSubscribers struct {
	subs []*domain.Subscriber
	err  error
}

func (f *fakeSubscribers) ListActiveSubscribers(context.Context) ([]*domain.Subscriber, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Subscriber
	for _, s := range f.subs {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubscribers) CountSubscribers(context.Context) (int, error) { return len(f.subs), nil }

func (f *fakeSubscribers) CountActiveSubscribers(ctx context.Context) (int, error) {
	active, _ := f.ListActiveSubscribers(ctx)
	return len(active), nil
}

type fakeSender struct {
	mu    sync.Mutex
	fail  map[int64]bool
	sent  []int64
	modes []string
	times []time.Time
}

func (f *fakeSender) Send(_ context.Context, msg messenger.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times = append(f.times, time.Now())
	if f.fail[msg.ChatID] {
		return errors.New("bot was blocked by the user")
	}
	f.sent = append(f.sent, msg.ChatID)
	f.modes = append(f.modes, msg.ParseMode)
	return nil
}

func subscribers(active []int64, inactive ...int64) *fakeSubscribers {
	f := &fakeSubscribers{}
	for _, id := range active {
		f.subs = append(f.subs, &domain.Subscriber{UserID: id, IsActive: true})
	}
	for _, id := range inactive {
		f.subs = append(f.subs, &domain.Subscriber{UserID: id})
	}
	return f
}

func TestDispatchSkipsInactiveSubscribers(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(subscribers([]int64{1, 2, 3}, 4), sender, Config{Workers: 1})

	rep, err := d.Dispatch(context.Background(), "new tariffs")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if rep.Total != 3 || rep.Success != 3 || rep.Failure != 0 {
		t.Errorf("report = %+v", rep)
	}
	if len(sender.sent) != 3 {
		t.Errorf("sent %d messages, want 3", len(sender.sent))
	}
	for _, id := range sender.sent {
		if id == 4 {
			t.Error("inactive subscriber received the broadcast")
		}
	}
	if rep.ID == "" {
		t.Error("expected a broadcast id")
	}
	for _, mode := range sender.modes {
		if mode != messenger.ModeMarkdown {
			t.Errorf("parse mode = %q, want Markdown", mode)
		}
	}
}

func TestDispatchCountsFailures(t *testing.T) {
	sender := &fakeSender{fail: map[int64]bool{2: true, 5: true}}
	d := NewDispatcher(subscribers([]int64{1, 2, 3, 4, 5}), sender, Config{Workers: 3})

	rep, err := d.Dispatch(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if rep.Total != 5 || rep.Success != 3 || rep.Failure != 2 {
		t.Errorf("report = %+v, want 3/2/5", rep)
	}
}

func TestDispatchRespectsDelay(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(subscribers([]int64{1, 2, 3, 4}), sender, Config{Workers: 4, Delay: 20 * time.Millisecond})

	rep, err := d.Dispatch(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if rep.Success != 4 {
		t.Fatalf("report = %+v", rep)
	}
	// Four sends with a burst of one need at least three gaps.
	if rep.Duration < 55*time.Millisecond {
		t.Errorf("broadcast finished in %v, rate cap not applied", rep.Duration)
	}
}

func TestDispatchCancelledCountsRemainingAsFailures(t *testing.T) {
	sender := &fakeSender{}
	ids := make([]int64, 50)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	d := NewDispatcher(subscribers(ids), sender, Config{Workers: 1, Delay: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	rep, err := d.Dispatch(ctx, "hi")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if rep.Success+rep.Failure != rep.Total {
		t.Errorf("counts do not add up: %+v", rep)
	}
	if rep.Failure == 0 {
		t.Errorf("expected cancelled recipients to be failures: %+v", rep)
	}
}

func TestDispatchListError(t *testing.T) {
	d := NewDispatcher(&fakeSubscribers{err: errors.New("db down")}, &fakeSender{}, Config{})
	if _, err := d.Dispatch(context.Background(), "hi"); err == nil {
		t.Fatal("expected error when subscribers cannot be loaded")
	}
}

func TestStats(t *testing.T) {
	d := NewDispatcher(subscribers([]int64{1, 2, 3}, 4), &fakeSender{}, Config{})
	st, err := d.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 4 || st.Active != 3 {
		t.Errorf("stats = %+v, want 4 total 3 active", st)
	}
}
