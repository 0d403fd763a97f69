// Package bot routes chat updates to handlers through an explicit
// middleware chain.
package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/64envy64/cargo-bot/internal/messenger"
)

// HandlerFunc handles one update.
type HandlerFunc func(ctx context.Context, u *messenger.Update) error

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that the first middleware is the outermost.
func Chain(h HandlerFunc, mw ...Middleware) HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

type callbackRoute struct {
	prefix  string
	handler HandlerFunc
}

// Router dispatches updates by command, callback data prefix, photo or text.
type Router struct {
	middleware []Middleware
	commands   map[string]HandlerFunc
	callbacks  []callbackRoute
	text       HandlerFunc
	photo      HandlerFunc
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{commands: make(map[string]HandlerFunc)}
}

// Use appends middleware. It applies to every route.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// Command routes /name.
func (r *Router) Command(name string, h HandlerFunc) {
	r.commands[strings.ToLower(name)] = h
}

// Callback routes button presses whose data starts with prefix. Routes are
// tried in registration order.
func (r *Router) Callback(prefix string, h HandlerFunc) {
	r.callbacks = append(r.callbacks, callbackRoute{prefix: prefix, handler: h})
}

// Text routes plain messages and unknown commands.
func (r *Router) Text(h HandlerFunc) {
	r.text = h
}

// Photo routes messages with images.
func (r *Router) Photo(h HandlerFunc) {
	r.photo = h
}

func (r *Router) route(u *messenger.Update) HandlerFunc {
	switch {
	case u.IsCallback():
		for _, c := range r.callbacks {
			if strings.HasPrefix(u.CallbackData, c.prefix) {
				return c.handler
			}
		}
		return nil
	case u.HasPhoto && r.photo != nil:
		return r.photo
	case u.Command != "":
		if h, ok := r.commands[strings.ToLower(u.Command)]; ok {
			return h
		}
	}
	return r.text
}

// Handle runs the matching route through the middleware chain.
func (r *Router) Handle(ctx context.Context, u *messenger.Update) error {
	h := r.route(u)
	if h == nil {
		slog.Debug("No route for update", "user_id", u.UserID, "kind", u.Kind(), "content", u.Content())
		return nil
	}
	return Chain(h, r.middleware...)(ctx, u)
}

// Serve is Handle for pollers. Errors have already been logged by the chain.
func (r *Router) Serve(ctx context.Context, u *messenger.Update) {
	_ = r.Handle(ctx, u)
}
