package responder

import (
	"context"
	"log/slog"

	"github.com/64envy64/cargo-bot/internal/bot"
	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
)

// FallbackReply is sent when a handler fails.
const FallbackReply = "❌ Sorry, something went wrong while processing your request. " +
	"Please contact an operator, we have passed your request on."

// Degrade turns any handler failure into a generic reply and an operator
// hand-off. The original error is still returned for logging.
func (h *Handlers) Degrade() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, u *messenger.Update) error {
			err := next(ctx, u)
			if err == nil {
				return nil
			}

			content := u.Content()
			if content == "" {
				content = "[" + u.Kind() + "]"
			}
			if _, herr := h.sessions.CreateOrRefresh(ctx, u.UserID, content); herr != nil {
				slog.Error("Fallback hand-off failed", "user_id", u.UserID, "error", herr)
			}
			if serr := h.reply(ctx, u, messenger.Message{Text: FallbackReply, Buttons: h.operatorButton()}); serr != nil {
				slog.Error("Fallback reply failed", "user_id", u.UserID, "error", serr)
			}
			h.record(ctx, u.UserID, content, err.Error(), domain.InteractionError, false)
			return err
		}
	}
}
