//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/go-chi/chi/v5"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantState  string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"degraded", errors.New("disk gone"), http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(fakePinger{err: tt.pingErr}, time.Second)
			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body map[string]interface{}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tt.wantState {
				t.Errorf("status field = %v, want %s", body["status"], tt.wantState)
			}
		})
	}
}

type fakeRelay struct {
	userID int64
	text   string
	err    error
	calls  int
}

func (f *fakeRelay) Deliver(_ context.Context, userID int64, text string) error {
	f.calls++
	f.userID, f.text = userID, text
	return f.err
}

func serveAdmin(relay *fakeRelay, query, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewAdminHandler(relay, "s3cret").RegisterRoutes(r)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/send_message"+query, strings.NewReader(body))
	r.ServeHTTP(w, req)
	return w
}

func TestSendMessage(t *testing.T) {
	relay := &fakeRelay{}
	w := serveAdmin(relay, "?secret=s3cret", `{"user_id": 123, "text": "your cargo is here"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if relay.userID != 123 || relay.text != "your cargo is here" {
		t.Errorf("relay got (%d, %q)", relay.userID, relay.text)
	}
	var body map[string]string
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestSendMessageErrors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		body       string
		relayErr   error
		wantStatus int
		wantCalls  int
	}{
		{"bad secret", "?secret=nope", `{"user_id":1,"text":"x"}`, nil, http.StatusForbidden, 0},
		{"no secret", "", `{"user_id":1,"text":"x"}`, nil, http.StatusForbidden, 0},
		{"malformed body", "?secret=s3cret", `{"user_id":`, nil, http.StatusBadRequest, 0},
		{"string user id", "?secret=s3cret", `{"user_id":"abc","text":"x"}`, nil, http.StatusBadRequest, 0},
		{"invalid input", "?secret=s3cret", `{"user_id":0,"text":"x"}`, fmt.Errorf("bad: %w", domain.ErrInvalidInput), http.StatusBadRequest, 1},
		{"delivery failure", "?secret=s3cret", `{"user_id":1,"text":"x"}`, errors.New("telegram down"), http.StatusInternalServerError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := &fakeRelay{err: tt.relayErr}
			w := serveAdmin(relay, tt.query, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if relay.calls != tt.wantCalls {
				t.Errorf("relay calls = %d, want %d", relay.calls, tt.wantCalls)
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(w.Body.String(), "telegram down") {
				t.Errorf("internal error leaked: %s", w.Body.String())
			}
		})
	}
}
