package operator

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestFeedDeliversAlerts(t *testing.T) {
	feed := NewFeed([]string{"*"})
	srv := httptest.NewServer(feed)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for feed.Clients() == 0 {
		if ctx.Err() != nil {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	feed.Publish(Alert{Kind: AlertNewRequest, UserID: 5, Message: "hello"})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Alert
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UserID != 5 || got.Kind != AlertNewRequest {
		t.Errorf("unexpected alert %+v", got)
	}
}

func TestFeedDropsSlowClients(t *testing.T) {
	feed := NewFeed(nil)
	c := feed.register()

	for i := 0; i < feedBuffer+1; i++ {
		feed.Publish(Alert{UserID: int64(i)})
	}
	if feed.Clients() != 0 {
		t.Fatalf("expected slow client to be dropped, have %d", feed.Clients())
	}
	// Draining must terminate since the channel was closed.
	for range c.send {
	}
	feed.unregister(c)
}
