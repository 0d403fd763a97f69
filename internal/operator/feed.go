package operator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	feedBuffer       = 32
	feedWriteTimeout = 5 * time.Second
)

type feedClient struct {
	send chan []byte
}

// Feed streams alerts to connected operator dashboards over websocket.
// A client that falls behind is disconnected rather than slowing the sweep.
type Feed struct {
	mu             sync.Mutex
	clients        map[*feedClient]struct{}
	originPatterns []string
}

// NewFeed creates a Feed accepting connections from originPatterns.
func NewFeed(originPatterns []string) *Feed {
	return &Feed{
		clients:        make(map[*feedClient]struct{}),
		originPatterns: originPatterns,
	}
}

// Publish sends a to every connected client without blocking.
func (f *Feed) Publish(a Alert) {
	data, err := json.Marshal(a)
	if err != nil {
		slog.Error("Failed to encode alert", "error", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			delete(f.clients, c)
			close(c.send)
			slog.Warn("Dropping slow feed client")
		}
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *Feed) register() *feedClient {
	c := &feedClient{send: make(chan []byte, feedBuffer)}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	return c
}

func (f *Feed) unregister(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
}

// ServeHTTP upgrades the request and streams alerts until either side leaves.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: f.originPatterns,
	})
	if err != nil {
		slog.Warn("Failed to accept feed websocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed closed"); closeErr != nil {
			slog.Debug("Failed to close feed websocket", "error", closeErr)
		}
	}()

	c := f.register()
	defer f.unregister(c)
	slog.Info("Feed client connected", "ip", r.RemoteAddr)

	// The dashboard never sends; CloseRead handles pings and close frames.
	ctx := ws.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := writeFrame(ctx, ws, data); err != nil {
				slog.Debug("Feed write failed", "error", err)
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, ws *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
