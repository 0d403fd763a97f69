// Package responder implements the customer bot: it answers what it can and
// hands everything else to an operator through the session store.
package responder

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/64envy64/cargo-bot/internal/bot"
	"github.com/64envy64/cargo-bot/internal/classifier"
	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
)

// Sessions is the part of the state machine the responder drives.
type Sessions interface {
	CreateOrRefresh(ctx context.Context, userID int64, message string) (*domain.Session, error)
	TouchActivity(ctx context.Context, userID int64) error
}

// Store holds the interaction log and subscriptions.
type Store interface {
	SaveInteraction(ctx context.Context, in *domain.Interaction) error
	AddSubscriber(ctx context.Context, userID int64, username string) error
	Unsubscribe(ctx context.Context, userID int64) (bool, error)
	IsSubscribed(ctx context.Context, userID int64) (bool, error)
}

// Messenger sends replies and acknowledges button presses.
type Messenger interface {
	messenger.Sender
	messenger.CallbackAnswerer
}

// Handlers serves customer updates.
type Handlers struct {
	sessions    Sessions
	store       Store
	classifier  classifier.Classifier
	msg         Messenger
	operatorURL string

	codes    *expirable.LRU[int64, string]
	awaiting *expirable.LRU[int64, struct{}]
}

// Per-user state kept in memory between updates.
const (
	maxTrackedUsers = 10000
	codeTTL         = 24 * time.Hour
	awaitingCodeTTL = 15 * time.Minute
)

// New creates the customer handlers. operatorURL, when set, is attached to
// hand-off replies as a direct contact button.
func New(sessions Sessions, store Store, c classifier.Classifier, msg Messenger, operatorURL string) *Handlers {
	return &Handlers{
		sessions:    sessions,
		store:       store,
		classifier:  c,
		msg:         msg,
		operatorURL: operatorURL,
		codes:       expirable.NewLRU[int64, string](maxTrackedUsers, nil, codeTTL),
		awaiting:    expirable.NewLRU[int64, struct{}](maxTrackedUsers, nil, awaitingCodeTTL),
	}
}

// Register wires the handlers and the middleware chain into r.
func (h *Handlers) Register(r *bot.Router, limiter *bot.RateLimiter) {
	r.Use(
		bot.Logging(),
		h.Degrade(),
		bot.Recover(),
		bot.RateLimit(limiter, h.rateLimited),
		h.trackActivity(),
	)

	r.Command("start", h.Start)
	r.Command("menu", h.Start)
	r.Command("code", h.Code)
	r.Callback(callbackSubscribe, h.Subscribe)
	r.Callback(callbackUnsubscribe, h.Unsubscribe)
	r.Callback("", h.Menu)
	r.Photo(h.Photo)
	r.Text(h.Text)
}

// trackActivity records every inbound customer message against the open
// session, whichever handler serves it. Button presses are not messages.
func (h *Handlers) trackActivity() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, u *messenger.Update) error {
			if !u.IsCallback() {
				if err := h.sessions.TouchActivity(ctx, u.UserID); err != nil {
					slog.Warn("Failed to record activity", "user_id", u.UserID, "error", err)
				}
			}
			return next(ctx, u)
		}
	}
}

func (h *Handlers) reply(ctx context.Context, u *messenger.Update, msg messenger.Message) error {
	msg.ChatID = u.ChatID
	if msg.ChatID == 0 {
		msg.ChatID = u.UserID
	}
	return h.msg.Send(ctx, msg)
}

func (h *Handlers) record(ctx context.Context, userID int64, message, response string, typ domain.InteractionType, success bool) {
	in := &domain.Interaction{
		UserID:   userID,
		Message:  message,
		Response: response,
		Type:     typ,
		Success:  success,
	}
	if err := h.store.SaveInteraction(ctx, in); err != nil {
		slog.Warn("Failed to save interaction", "user_id", userID, "type", typ, "error", err)
	}
}

func (h *Handlers) operatorButton() [][]messenger.Button {
	if h.operatorURL == "" {
		return nil
	}
	return [][]messenger.Button{{{Text: "👨‍💻 Contact an operator", URL: h.operatorURL}}}
}

func (h *Handlers) rateLimited(ctx context.Context, u *messenger.Update) error {
	if u.IsCallback() {
		h.ack(ctx, u)
	}
	return h.reply(ctx, u, messenger.Message{
		Text: "⏳ Too many requests. Please wait a minute and try again.",
	})
}

func (h *Handlers) ack(ctx context.Context, u *messenger.Update) {
	if err := h.msg.AnswerCallback(ctx, u.CallbackID, ""); err != nil {
		slog.Warn("Failed to answer callback", "user_id", u.UserID, "error", err)
	}
}
