// Package console implements the operator bot: request views, replies
// relayed to customers, broadcasts and roster management.
package console

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/64envy64/cargo-bot/internal/bot"
	"github.com/64envy64/cargo-bot/internal/broadcast"
	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
	"github.com/64envy64/cargo-bot/internal/relay"
)

// Sessions is the part of the state machine operators drive.
type Sessions interface {
	StartReply(ctx context.Context, userID int64) error
	Resolve(ctx context.Context, userID int64) error
	Close(ctx context.Context, userID int64) error
}

// Store is the read side used by the request views.
type Store interface {
	ListSessionsByStatus(ctx context.Context, status domain.Status) ([]*domain.Session, error)
	ListInteractions(ctx context.Context, userID int64, limit int) ([]*domain.Interaction, error)
}

// Broadcaster sends and reports broadcasts.
type Broadcaster interface {
	Dispatch(ctx context.Context, text string) (broadcast.Report, error)
	Stats(ctx context.Context) (broadcast.Stats, error)
}

// Roster is the operator list.
type Roster interface {
	IsOperator(userID int64) bool
	CanManage(userID int64) bool
	List() []int64
	Add(actor, userID int64) error
	Remove(actor, userID int64) error
}

// Messenger talks to operators.
type Messenger interface {
	messenger.Sender
	messenger.CallbackAnswerer
}

// Deps are the collaborators of the console handlers.
type Deps struct {
	Sessions    Sessions
	Store       Store
	Relay       relay.Deliverer
	Broadcaster Broadcaster
	Roster      Roster
	// Messenger is the operator bot.
	Messenger Messenger
	// Directory resolves customer names through the customer bot.
	Directory messenger.Directory

	HistoryLimit  int
	HealthTimeout time.Duration
}

type actionKind int

const (
	actionReply actionKind = iota + 1
	actionBroadcast
)

type pendingAction struct {
	kind   actionKind
	target int64
}

// Handlers serves operator updates.
type Handlers struct {
	deps Deps

	mu      sync.Mutex
	pending map[int64]pendingAction

	jobs sync.WaitGroup
}

// New creates the console handlers.
func New(deps Deps) *Handlers {
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = 5
	}
	if deps.HealthTimeout <= 0 {
		deps.HealthTimeout = 5 * time.Second
	}
	return &Handlers{deps: deps, pending: make(map[int64]pendingAction)}
}

// Register wires the handlers and the middleware chain into r.
func (h *Handlers) Register(r *bot.Router) {
	r.Use(
		bot.Logging(),
		h.reportFailures(),
		bot.Recover(),
		bot.Authorize(h.deps.Roster.IsOperator, h.denied),
	)

	r.Command("start", h.Start)
	r.Command("help", h.Start)
	r.Command("cancel", h.Cancel)
	r.Command("pending", h.viewCommand(domain.StatusPending))
	r.Command("inprogress", h.viewCommand(domain.StatusInProgress))
	r.Command("answered", h.viewCommand(domain.StatusAnswered))
	r.Command("broadcast", h.BroadcastMenu)
	r.Command("stats", h.BroadcastStats)
	r.Command("addop", h.AddOperator)
	r.Command("delop", h.RemoveOperator)
	r.Command("ops", h.ListOperators)
	r.Command("status", h.Status)

	r.Callback(callbackReply, h.ReplyButton)
	r.Callback(callbackResolve, h.ResolveButton)
	r.Callback(callbackClose, h.CloseButton)
	r.Callback(callbackBroadcastCreate, h.BroadcastCreate)
	r.Callback(callbackBroadcastStats, h.BroadcastStats)
	r.Callback(callbackBroadcastCancel, h.Cancel)
	r.Text(h.Text)
}

// Wait blocks until background broadcasts finish.
func (h *Handlers) Wait() {
	h.jobs.Wait()
}

func (h *Handlers) setPending(operatorID int64, a pendingAction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending[operatorID] = a
}

func (h *Handlers) takePending(operatorID int64) (pendingAction, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.pending[operatorID]
	delete(h.pending, operatorID)
	return a, ok
}

func (h *Handlers) send(ctx context.Context, chatID int64, msg messenger.Message) error {
	msg.ChatID = chatID
	return h.deps.Messenger.Send(ctx, msg)
}

func (h *Handlers) sendText(ctx context.Context, chatID int64, text string) error {
	return h.send(ctx, chatID, messenger.Message{Text: text})
}

func (h *Handlers) ack(ctx context.Context, u *messenger.Update, text string) {
	if !u.IsCallback() {
		return
	}
	if err := h.deps.Messenger.AnswerCallback(ctx, u.CallbackID, text); err != nil {
		slog.Warn("Failed to answer callback", "operator_id", u.UserID, "error", err)
	}
}

func (h *Handlers) denied(ctx context.Context, u *messenger.Update) error {
	h.ack(ctx, u, deniedText)
	return h.sendText(ctx, chatOf(u), deniedText)
}

// reportFailures tells the operator that an action failed. Details stay in the log.
func (h *Handlers) reportFailures() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, u *messenger.Update) error {
			err := next(ctx, u)
			if err != nil {
				if serr := h.sendText(ctx, chatOf(u), failureText); serr != nil {
					slog.Error("Failed to report failure to operator", "operator_id", u.UserID, "error", serr)
				}
			}
			return err
		}
	}
}

func chatOf(u *messenger.Update) int64 {
	if u.ChatID != 0 {
		return u.ChatID
	}
	return u.UserID
}
