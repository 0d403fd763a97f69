package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/64envy64/cargo-bot/internal/messenger"
)

// Recover turns a panicking handler into an error.
func Recover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, u *messenger.Update) (err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Handler panicked", "user_id", u.UserID, "panic", r, "stack", string(debug.Stack()))
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(ctx, u)
		}
	}
}

// Logging logs every update with its outcome and duration.
func Logging() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, u *messenger.Update) error {
			start := time.Now()
			err := next(ctx, u)
			attrs := []any{
				"user_id", u.UserID,
				"kind", u.Kind(),
				"duration", time.Since(start),
			}
			if err != nil {
				slog.Error("Update failed", append(attrs, "error", err)...)
				return err
			}
			slog.Info("Update handled", attrs...)
			return nil
		}
	}
}

// RateLimit drops updates from users over their budget. onLimited, if set,
// is called instead of the handler.
func RateLimit(l *RateLimiter, onLimited HandlerFunc) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, u *messenger.Update) error {
			if l.Allow(u.UserID) {
				return next(ctx, u)
			}
			slog.Warn("Rate limit exceeded", "user_id", u.UserID)
			if onLimited != nil {
				return onLimited(ctx, u)
			}
			return nil
		}
	}
}

// Authorize passes only updates from users allowed by isAllowed. Others go
// to onDenied.
func Authorize(isAllowed func(userID int64) bool, onDenied HandlerFunc) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, u *messenger.Update) error {
			if isAllowed(u.UserID) {
				return next(ctx, u)
			}
			slog.Warn("Unauthorized update", "user_id", u.UserID, "kind", u.Kind())
			if onDenied != nil {
				return onDenied(ctx, u)
			}
			return nil
		}
	}
}
