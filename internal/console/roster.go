package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
)

func parseOperatorID(args string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// AddOperator handles /addop <id>.
func (h *Handlers) AddOperator(ctx context.Context, u *messenger.Update) error {
	id, ok := parseOperatorID(u.Args)
	if !ok {
		return h.sendText(ctx, chatOf(u), "Usage: /addop <user id>")
	}
	if err := h.deps.Roster.Add(u.UserID, id); err != nil {
		return h.rosterError(ctx, u, err)
	}
	return h.sendText(ctx, chatOf(u), fmt.Sprintf("✅ User %d is now an operator.", id))
}

// RemoveOperator handles /delop <id>.
func (h *Handlers) RemoveOperator(ctx context.Context, u *messenger.Update) error {
	id, ok := parseOperatorID(u.Args)
	if !ok {
		return h.sendText(ctx, chatOf(u), "Usage: /delop <user id>")
	}
	if err := h.deps.Roster.Remove(u.UserID, id); err != nil {
		return h.rosterError(ctx, u, err)
	}
	return h.sendText(ctx, chatOf(u), fmt.Sprintf("✅ User %d is no longer an operator.", id))
}

// ListOperators handles /ops.
func (h *Handlers) ListOperators(ctx context.Context, u *messenger.Update) error {
	ids := h.deps.Roster.List()
	var b strings.Builder
	b.WriteString("👥 Operators:\n")
	for i, id := range ids {
		marker := ""
		if h.deps.Roster.CanManage(id) {
			marker = " (manager)"
		}
		fmt.Fprintf(&b, "%d. %d%s\n", i+1, id, marker)
	}
	return h.sendText(ctx, chatOf(u), b.String())
}

func (h *Handlers) rosterError(ctx context.Context, u *messenger.Update, err error) error {
	var text string
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		text = "⛔️ Only the first three operators can manage the roster."
	case errors.Is(err, domain.ErrNotFound):
		text = "❌ That user is not an operator."
	case errors.Is(err, domain.ErrInvalidInput):
		text = "❌ " + strings.TrimSuffix(err.Error(), ": "+domain.ErrInvalidInput.Error()) + "."
	default:
		return fmt.Errorf("update roster: %w", err)
	}
	return h.sendText(ctx, chatOf(u), text)
}
