package operator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/64envy64/cargo-bot/internal/messenger"
)

// AlertKind distinguishes operator alerts.
type AlertKind string

const (
	// AlertNewRequest announces a pending session.
	AlertNewRequest AlertKind = "new_request"
	// AlertNewActivity announces a user message in an in_progress session.
	AlertNewActivity AlertKind = "new_activity"
)

// Alert is one event operators should look at.
type Alert struct {
	Kind      AlertKind `json:"kind"`
	SessionID int64     `json:"session_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Publisher receives a copy of every alert, for example a live feed.
type Publisher interface {
	Publish(a Alert)
}

// Members lists the operators to alert.
type Members interface {
	List() []int64
}

// Notifier fans alerts out to every operator. A failed delivery to one
// operator does not stop delivery to the others.
type Notifier struct {
	members Members
	sender  messenger.Sender
	feed    Publisher
}

// NewNotifier creates a Notifier. feed may be nil.
func NewNotifier(members Members, sender messenger.Sender, feed Publisher, timeout time.Duration) *Notifier {
	return &Notifier{members: members, sender: messenger.WithTimeout(sender, timeout), feed: feed}
}

// Notify delivers a to every operator and reports how many sends succeeded and failed.
func (n *Notifier) Notify(ctx context.Context, a Alert) (sent, failed int) {
	if n.feed != nil {
		n.feed.Publish(a)
	}

	msg := FormatAlert(a)
	for _, opID := range n.members.List() {
		msg.ChatID = opID
		if err := n.sender.Send(ctx, msg); err != nil {
			failed++
			slog.Warn("Failed to notify operator",
				"operator_id", opID, "user_id", a.UserID, "kind", a.Kind, "error", err)
			continue
		}
		sent++
	}
	return sent, failed
}

// FormatAlert renders a as an operator chat message with action buttons.
func FormatAlert(a Alert) messenger.Message {
	user := strconv.FormatInt(a.UserID, 10)
	switch a.Kind {
	case AlertNewActivity:
		return messenger.Message{
			Text: fmt.Sprintf("💬 New message in an open conversation\n\nUser ID: %d\nUsername: @%s\nMessage: %s",
				a.UserID, a.Username, a.Message),
			Buttons: [][]messenger.Button{{
				{Text: "Reply", Data: "reply_" + user},
				{Text: "Mark answered", Data: "resolve_" + user},
			}},
		}
	default:
		return messenger.Message{
			Text: fmt.Sprintf("🔔 New request\n\nUser ID: %d\nUsername: @%s\nMessage: %s",
				a.UserID, a.Username, a.Message),
			Buttons: [][]messenger.Button{{
				{Text: "Reply", Data: "reply_" + user},
				{Text: "Close", Data: "close_" + user},
			}},
		}
	}
}
