// Package sweep contains the periodic jobs of the operator console: the
// notification sweep and the inactivity reaper.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
	"github.com/64envy64/cargo-bot/internal/operator"
)

// NotifyStore is the store surface the notification sweep reads and claims through.
type NotifyStore interface {
	ListUnnotifiedPending(ctx context.Context) ([]*domain.Session, error)
	ClaimPendingNotification(ctx context.Context, id, version int64) (bool, error)
	ListRecentActivity(ctx context.Context, since time.Time) ([]*domain.Session, error)
	ClaimActivityNotification(ctx context.Context, id int64, activity time.Time) (bool, error)
	ListInteractions(ctx context.Context, userID int64, limit int) ([]*domain.Interaction, error)
}

// Notifier delivers an alert to the operators.
type Notifier interface {
	Notify(ctx context.Context, a operator.Alert) (sent, failed int)
}

// Report summarises one notification sweep.
type Report struct {
	New    int
	Active int
	Failed int
}

// Notifications announces new pending sessions and new activity on
// in_progress sessions. Each event is claimed in the store before it is
// sent, so it is announced at most once even if two sweeps overlap.
type Notifications struct {
	store    NotifyStore
	dir      messenger.Directory
	notifier Notifier
	window   time.Duration
	now      func() time.Time
}

// NewNotifications creates the sweep. Activity older than window is never announced.
func NewNotifications(store NotifyStore, dir messenger.Directory, notifier Notifier, window time.Duration) *Notifications {
	return &Notifications{store: store, dir: dir, notifier: notifier, window: window, now: time.Now}
}

// Tick runs one sweep and logs the outcome. It is the scheduler entry point.
func (n *Notifications) Tick(ctx context.Context) {
	r := n.Run(ctx)
	if r.New+r.Active+r.Failed > 0 {
		slog.Info("Notification sweep finished", "new", r.New, "active", r.Active, "failed", r.Failed)
	}
}

// Run performs the new-request pass and then the activity pass.
func (n *Notifications) Run(ctx context.Context) Report {
	var r Report
	n.newRequests(ctx, &r)
	n.activity(ctx, &r)
	return r
}

func (n *Notifications) newRequests(ctx context.Context, r *Report) {
	sessions, err := n.store.ListUnnotifiedPending(ctx)
	if err != nil {
		slog.Error("Notification sweep failed to list pending sessions", "error", err)
		return
	}

	for _, s := range sessions {
		if ctx.Err() != nil {
			return
		}
		claimed, err := n.store.ClaimPendingNotification(ctx, s.ID, s.Version)
		if err != nil {
			r.Failed++
			slog.Error("Failed to claim pending notification", "error", err, "session_id", s.ID, "user_id", s.UserID)
			continue
		}
		if !claimed {
			continue
		}

		alert := operator.Alert{
			Kind:      operator.AlertNewRequest,
			SessionID: s.ID,
			UserID:    s.UserID,
			Username:  n.displayName(ctx, s.UserID),
			Message:   s.LastMessage,
			At:        s.UpdatedAt,
		}
		if n.deliver(ctx, alert) {
			r.New++
		} else {
			r.Failed++
		}
	}
}

func (n *Notifications) activity(ctx context.Context, r *Report) {
	since := n.now().Add(-n.window)
	sessions, err := n.store.ListRecentActivity(ctx, since)
	if err != nil {
		slog.Error("Notification sweep failed to list active sessions", "error", err)
		return
	}

	for _, s := range sessions {
		if ctx.Err() != nil {
			return
		}
		claimed, err := n.store.ClaimActivityNotification(ctx, s.ID, s.LastActivity)
		if err != nil {
			r.Failed++
			slog.Error("Failed to claim activity notification", "error", err, "session_id", s.ID, "user_id", s.UserID)
			continue
		}
		if !claimed {
			continue
		}

		alert := operator.Alert{
			Kind:      operator.AlertNewActivity,
			SessionID: s.ID,
			UserID:    s.UserID,
			Username:  n.displayName(ctx, s.UserID),
			Message:   n.latestMessage(ctx, s),
			At:        s.LastActivity,
		}
		if n.deliver(ctx, alert) {
			r.Active++
		} else {
			r.Failed++
		}
	}
}

func (n *Notifications) deliver(ctx context.Context, a operator.Alert) bool {
	sent, failed := n.notifier.Notify(ctx, a)
	if sent == 0 && failed > 0 {
		slog.Warn("No operator received alert", "kind", a.Kind, "user_id", a.UserID, "failed", failed)
		return false
	}
	return true
}

func (n *Notifications) displayName(ctx context.Context, userID int64) string {
	name, err := n.dir.DisplayName(ctx, userID)
	if err != nil {
		slog.Warn("Failed to resolve display name", "user_id", userID, "error", err)
		return messenger.UnknownUsername
	}
	return name
}

// latestMessage prefers the newest logged user message over last_message,
// which only changes when the session is re-opened.
func (n *Notifications) latestMessage(ctx context.Context, s *domain.Session) string {
	recent, err := n.store.ListInteractions(ctx, s.UserID, 1)
	if err != nil {
		slog.Warn("Failed to load latest interaction", "user_id", s.UserID, "error", err)
		return s.LastMessage
	}
	if len(recent) == 0 || recent[0].Message == "" {
		return s.LastMessage
	}
	return recent[0].Message
}
