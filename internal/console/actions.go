package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
)

const invalidUserText = "❌ Invalid user ID."

// parseTarget extracts the customer ID from callback data like "reply_42".
func parseTarget(data, prefix string) (int64, bool) {
	raw, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ReplyButton starts the reply flow for a customer.
func (h *Handlers) ReplyButton(ctx context.Context, u *messenger.Update) error {
	h.ack(ctx, u, "")
	userID, ok := parseTarget(u.CallbackData, callbackReply)
	if !ok {
		return h.sendText(ctx, chatOf(u), invalidUserText)
	}

	h.setPending(u.UserID, pendingAction{kind: actionReply, target: userID})
	return h.sendText(ctx, chatOf(u),
		fmt.Sprintf("✍️ Send your reply to user %d.\n/cancel to abort.", userID))
}

func (h *Handlers) deliverReply(ctx context.Context, u *messenger.Update, userID int64) error {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		h.setPending(u.UserID, pendingAction{kind: actionReply, target: userID})
		return h.sendText(ctx, chatOf(u), "The reply is empty. Send text or /cancel.")
	}

	if err := h.deps.Relay.Deliver(ctx, userID, text); err != nil {
		slog.Error("Relay delivery failed", "operator_id", u.UserID, "user_id", userID, "error", err)
		msg := "❌ Failed to deliver the reply. The responder may be unavailable."
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			msg = "❌ The responder rejected the shared secret."
		case errors.Is(err, domain.ErrInvalidInput):
			msg = "❌ The responder rejected the reply as invalid."
		}
		return h.sendText(ctx, chatOf(u), msg)
	}

	if err := h.deps.Sessions.StartReply(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrIllegalTransition) {
			return h.sendText(ctx, chatOf(u),
				fmt.Sprintf("✅ Reply delivered to %d, but the request is closed and was not reopened.", userID))
		}
		return fmt.Errorf("mark session in progress: %w", err)
	}

	slog.Info("Operator replied", "operator_id", u.UserID, "user_id", userID)
	return h.sendText(ctx, chatOf(u), fmt.Sprintf("✅ Reply delivered to user %d.", userID))
}

// ResolveButton marks a customer's request answered.
func (h *Handlers) ResolveButton(ctx context.Context, u *messenger.Update) error {
	return h.transition(ctx, u, callbackResolve, h.deps.Sessions.Resolve, "marked answered")
}

// CloseButton closes a customer's request.
func (h *Handlers) CloseButton(ctx context.Context, u *messenger.Update) error {
	return h.transition(ctx, u, callbackClose, h.deps.Sessions.Close, "closed")
}

func (h *Handlers) transition(ctx context.Context, u *messenger.Update, prefix string,
	apply func(context.Context, int64) error, done string) error {
	h.ack(ctx, u, "")
	userID, ok := parseTarget(u.CallbackData, prefix)
	if !ok {
		return h.sendText(ctx, chatOf(u), invalidUserText)
	}

	err := apply(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrIllegalTransition):
		return h.sendText(ctx, chatOf(u), fmt.Sprintf("⚠️ The request from user %d cannot be %s from its current state.", userID, done))
	case err != nil:
		return fmt.Errorf("%s session for %d: %w", done, userID, err)
	}

	slog.Info("Operator updated request", "operator_id", u.UserID, "user_id", userID, "action", done)
	return h.sendText(ctx, chatOf(u), fmt.Sprintf("✅ Request from user %d %s.", userID, done))
}

// Status reports whether the responder is reachable.
func (h *Handlers) Status(ctx context.Context, u *messenger.Update) error {
	checkCtx, cancel := context.WithTimeout(ctx, h.deps.HealthTimeout)
	defer cancel()

	if err := h.deps.Relay.Healthy(checkCtx); err != nil {
		slog.Warn("Responder health check failed", "error", err)
		return h.sendText(ctx, chatOf(u), "❌ The responder is unreachable. Replies cannot be delivered right now.")
	}
	return h.sendText(ctx, chatOf(u), "✅ The responder is up.")
}
