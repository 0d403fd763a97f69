package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Deliverer sends an operator reply to a user.
type Deliverer interface {
	Deliver(ctx context.Context, userID int64, text string) error
}

// AdminHandler serves the operator relay endpoint.
type AdminHandler struct {
	relay  Deliverer
	secret string
}

// NewAdminHandler creates an AdminHandler guarded by secret.
func NewAdminHandler(relay Deliverer, secret string) *AdminHandler {
	return &AdminHandler{relay: relay, secret: secret}
}

type sendMessageRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

// RegisterRoutes registers the admin routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireSecret(h.secret)).Post("/admin/send_message", h.SendMessage)
}

// SendMessage relays an operator message to a user.
func (h *AdminHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.relay.Deliver(r.Context(), req.UserID, req.Text)
	switch {
	case err == nil:
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, domain.ErrInvalidInput):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Admin send_message failed", "user_id", req.UserID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to send message")
	}
}
