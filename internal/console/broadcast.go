package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/64envy64/cargo-bot/internal/broadcast"
	"github.com/64envy64/cargo-bot/internal/messenger"
)

const reportTimeout = 10 * time.Second

var broadcastMenu = [][]messenger.Button{
	{
		{Text: "📝 Create broadcast", Data: callbackBroadcastCreate},
		{Text: "📊 Statistics", Data: callbackBroadcastStats},
	},
}

// BroadcastMenu shows the broadcast actions.
func (h *Handlers) BroadcastMenu(ctx context.Context, u *messenger.Update) error {
	return h.send(ctx, chatOf(u), messenger.Message{
		Text:    "📢 Broadcasts\n\nChoose an action:",
		Buttons: broadcastMenu,
	})
}

// BroadcastCreate waits for the broadcast text.
func (h *Handlers) BroadcastCreate(ctx context.Context, u *messenger.Update) error {
	h.ack(ctx, u, "")
	h.setPending(u.UserID, pendingAction{kind: actionBroadcast})
	return h.send(ctx, chatOf(u), messenger.Message{
		Text:    "📝 Send the broadcast text.\nMarkdown is supported.",
		Buttons: [][]messenger.Button{{{Text: "« Cancel", Data: callbackBroadcastCancel}}},
	})
}

// BroadcastStats shows subscriber counts.
func (h *Handlers) BroadcastStats(ctx context.Context, u *messenger.Update) error {
	h.ack(ctx, u, "")
	st, err := h.deps.Broadcaster.Stats(ctx)
	if err != nil {
		return fmt.Errorf("load broadcast stats: %w", err)
	}
	return h.sendText(ctx, chatOf(u), fmt.Sprintf(
		"📊 Subscribers\n\nTotal: %d\nActive: %d", st.Total, st.Active))
}

// startBroadcast runs the broadcast in the background so the operator bot
// keeps serving updates, then sends the report to the operator.
func (h *Handlers) startBroadcast(ctx context.Context, u *messenger.Update) error {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		h.setPending(u.UserID, pendingAction{kind: actionBroadcast})
		return h.sendText(ctx, chatOf(u), "The broadcast text is empty. Send text or /cancel.")
	}

	if err := h.sendText(ctx, chatOf(u), "⏳ Broadcast started..."); err != nil {
		slog.Warn("Failed to confirm broadcast start", "operator_id", u.UserID, "error", err)
	}

	chatID := chatOf(u)
	operatorID := u.UserID
	h.jobs.Add(1)
	go func() {
		defer h.jobs.Done()
		rep, err := h.deps.Broadcaster.Dispatch(ctx, text)

		reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
		defer cancel()
		if err != nil {
			slog.Error("Broadcast failed", "operator_id", operatorID, "error", err)
			_ = h.sendText(reportCtx, chatID, "❌ The broadcast could not be started.")
			return
		}
		if serr := h.sendText(reportCtx, chatID, FormatReport(rep)); serr != nil {
			slog.Warn("Failed to send broadcast report", "operator_id", operatorID, "error", serr)
		}
	}()
	return nil
}

// FormatReport renders a broadcast report for operators.
func FormatReport(rep broadcast.Report) string {
	if rep.Total == 0 {
		return "❌ There are no active subscribers."
	}
	return fmt.Sprintf("📢 Broadcast finished\n\n✅ Delivered: %d\n❌ Failed: %d\n📊 Total subscribers: %d",
		rep.Success, rep.Failure, rep.Total)
}
