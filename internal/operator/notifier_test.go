package operator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/64envy64/cargo-bot/internal/messenger"
)

type staticMembers []int64

func (m staticMembers) List() []int64 { return m }

type fakeSender struct {
	mu     sync.Mutex
	fail   map[int64]bool
	sent   []messenger.Message
	called int
}

func (f *fakeSender) Send(_ context.Context, msg messenger.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called++
	if f.fail[msg.ChatID] {
		return errors.New("chat not found")
	}
	f.sent = append(f.sent, msg)
	return nil
}

type recordingFeed struct {
	alerts []Alert
}

func (r *recordingFeed) Publish(a Alert) { r.alerts = append(r.alerts, a) }

func TestNotifyIsolatesFailures(t *testing.T) {
	sender := &fakeSender{fail: map[int64]bool{2: true}}
	feed := &recordingFeed{}
	n := NewNotifier(staticMembers{1, 2, 3}, sender, feed, time.Second)

	sent, failed := n.Notify(context.Background(), Alert{Kind: AlertNewRequest, UserID: 42, Username: "alice", Message: "where is my box"})

	if sent != 2 || failed != 1 {
		t.Errorf("sent=%d failed=%d, want 2 and 1", sent, failed)
	}
	if sender.called != 3 {
		t.Errorf("expected every operator to be tried, got %d calls", sender.called)
	}
	if len(feed.alerts) != 1 {
		t.Errorf("feed got %d alerts, want 1", len(feed.alerts))
	}
	for _, m := range sender.sent {
		if !strings.Contains(m.Text, "@alice") || !strings.Contains(m.Text, "where is my box") {
			t.Errorf("alert text missing details: %q", m.Text)
		}
	}
}

func TestFormatAlertButtons(t *testing.T) {
	msg := FormatAlert(Alert{Kind: AlertNewRequest, UserID: 7})
	if got := msg.Buttons[0][0].Data; got != "reply_7" {
		t.Errorf("reply button = %q", got)
	}
	if got := msg.Buttons[0][1].Data; got != "close_7" {
		t.Errorf("close button = %q", got)
	}

	msg = FormatAlert(Alert{Kind: AlertNewActivity, UserID: 7})
	if !strings.Contains(msg.Text, "open conversation") {
		t.Errorf("activity alert text = %q", msg.Text)
	}
	if got := msg.Buttons[0][1].Data; got != "resolve_7" {
		t.Errorf("resolve button = %q", got)
	}
}
