package console

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
)

// Reply keyboard labels.
const (
	labelNew        = "📥 New requests"
	labelInProgress = "🔄 In progress"
	labelAnswered   = "✅ Answered"
	labelUnanswered = "❌ Unanswered"
	labelBroadcast  = "📢 Broadcast"
)

const (
	callbackReply           = "reply_"
	callbackResolve         = "resolve_"
	callbackClose           = "close_"
	callbackBroadcastCreate = "broadcast_create"
	callbackBroadcastStats  = "broadcast_stats"
	callbackBroadcastCancel = "broadcast_cancel"
)

const (
	deniedText  = "⛔️ You do not have access to the operator console."
	failureText = "❌ The action failed. Please try again later."
	helpText    = "👋 Welcome to the operator console!\n\n" +
		"Use the menu buttons or commands:\n" +
		"/pending - new requests\n" +
		"/inprogress - requests in progress\n" +
		"/answered - answered requests\n" +
		"/broadcast - send a broadcast\n" +
		"/stats - subscriber statistics\n" +
		"/ops, /addop <id>, /delop <id> - operator roster\n" +
		"/status - responder health\n" +
		"/cancel - abort the current action"
)

var mainKeyboard = [][]string{
	{labelNew},
	{labelAnswered, labelInProgress, labelUnanswered},
	{labelBroadcast},
}

var viewTitles = map[domain.Status]string{
	domain.StatusPending:    "new",
	domain.StatusInProgress: "in progress",
	domain.StatusAnswered:   "answered",
}

// Start shows the console menu.
func (h *Handlers) Start(ctx context.Context, u *messenger.Update) error {
	return h.send(ctx, chatOf(u), messenger.Message{Text: helpText, Keyboard: mainKeyboard})
}

func (h *Handlers) viewCommand(status domain.Status) func(context.Context, *messenger.Update) error {
	return func(ctx context.Context, u *messenger.Update) error {
		return h.View(ctx, u, status)
	}
}

// View sends one card per session in status. A card that fails to render
// or send is skipped.
func (h *Handlers) View(ctx context.Context, u *messenger.Update, status domain.Status) error {
	sessions, err := h.deps.Store.ListSessionsByStatus(ctx, status)
	if err != nil {
		return fmt.Errorf("list %s sessions: %w", status, err)
	}
	if len(sessions) == 0 {
		return h.sendText(ctx, chatOf(u), fmt.Sprintf("No %s requests.", viewTitles[status]))
	}

	for _, s := range sessions {
		if err := h.send(ctx, chatOf(u), h.card(ctx, s)); err != nil {
			slog.Warn("Failed to send request card", "operator_id", u.UserID, "session_id", s.ID, "error", err)
		}
	}
	return nil
}

func (h *Handlers) card(ctx context.Context, s *domain.Session) messenger.Message {
	name := messenger.UnknownUsername
	if h.deps.Directory != nil {
		if n, err := h.deps.Directory.DisplayName(ctx, s.UserID); err != nil {
			slog.Warn("Failed to resolve username", "user_id", s.UserID, "error", err)
		} else {
			name = n
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📝 Request #%d\n", s.ID)
	fmt.Fprintf(&b, "From: <a href='tg://user?id=%d'>%s</a>\n", s.UserID, html.EscapeString(name))
	fmt.Fprintf(&b, "ID: <code>%d</code>\n", s.UserID)
	fmt.Fprintf(&b, "⏰ Created: %s\n", s.CreatedAt.Local().Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "\nMessage:\n%s\n", html.EscapeString(s.LastMessage))

	history, err := h.deps.Store.ListInteractions(ctx, s.UserID, h.deps.HistoryLimit)
	if err != nil {
		slog.Warn("Failed to load history", "user_id", s.UserID, "error", err)
	}
	if len(history) > 0 {
		b.WriteString("\nRecent history:\n")
		for i := len(history) - 1; i >= 0; i-- {
			in := history[i]
			fmt.Fprintf(&b, "• %s [%s] %s\n  ↳ %s\n",
				in.CreatedAt.Local().Format("02.01 15:04"), in.Type,
				html.EscapeString(truncate(in.Message, 200)), html.EscapeString(truncate(in.Response, 200)))
		}
	}

	return messenger.Message{
		Text:      b.String(),
		ParseMode: messenger.ModeHTML,
		Buttons:   cardButtons(s),
	}
}

func cardButtons(s *domain.Session) [][]messenger.Button {
	id := strconv.FormatInt(s.UserID, 10)
	row := []messenger.Button{{Text: "✍️ Reply", Data: callbackReply + id}}
	if s.Status == domain.StatusInProgress {
		row = append(row, messenger.Button{Text: "✅ Answered", Data: callbackResolve + id})
	}
	return [][]messenger.Button{row, {{Text: "❌ Close", Data: callbackClose + id}}}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Text handles pending reply/broadcast input and the menu keyboard.
func (h *Handlers) Text(ctx context.Context, u *messenger.Update) error {
	if u.Command == "" {
		if a, ok := h.takePending(u.UserID); ok {
			switch a.kind {
			case actionReply:
				return h.deliverReply(ctx, u, a.target)
			case actionBroadcast:
				return h.startBroadcast(ctx, u)
			}
		}
	}

	switch strings.TrimSpace(u.Text) {
	case labelNew, labelUnanswered:
		return h.View(ctx, u, domain.StatusPending)
	case labelInProgress:
		return h.View(ctx, u, domain.StatusInProgress)
	case labelAnswered:
		return h.View(ctx, u, domain.StatusAnswered)
	case labelBroadcast:
		return h.BroadcastMenu(ctx, u)
	}
	return h.Start(ctx, u)
}

// Cancel drops the operator's pending action.
func (h *Handlers) Cancel(ctx context.Context, u *messenger.Update) error {
	h.ack(ctx, u, "")
	if _, ok := h.takePending(u.UserID); !ok {
		return h.sendText(ctx, chatOf(u), "Nothing to cancel.")
	}
	return h.sendText(ctx, chatOf(u), "❎ Cancelled.")
}
