// Package relay carries operator replies from the console to the responder,
// the only synchronous call between the two processes.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
)

// Deliverer sends an operator reply to a user through the responder.
type Deliverer interface {
	Deliver(ctx context.Context, userID int64, text string) error
	Healthy(ctx context.Context) error
}

// InteractionLog records relayed messages.
type InteractionLog interface {
	SaveInteraction(ctx context.Context, in *domain.Interaction) error
}

// Service performs deliveries on the responder side.
type Service struct {
	sender messenger.Sender
	log    InteractionLog
}

// NewService creates a Service. sender must reach users of the customer bot.
func NewService(sender messenger.Sender, log InteractionLog) *Service {
	return &Service{sender: sender, log: log}
}

// Deliver sends text to userID and appends an admin interaction.
func (s *Service) Deliver(ctx context.Context, userID int64, text string) error {
	if userID <= 0 {
		return fmt.Errorf("user_id must be positive: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text cannot be empty: %w", domain.ErrInvalidInput)
	}

	sendErr := messenger.SendText(ctx, s.sender, userID, text)

	in := &domain.Interaction{
		UserID:   userID,
		Message:  domain.MessageAdminReply,
		Response: text,
		Type:     domain.InteractionAdmin,
		Success:  sendErr == nil,
	}
	if err := s.log.SaveInteraction(ctx, in); err != nil {
		slog.Warn("Failed to log admin reply", "user_id", userID, "error", err)
	}

	if sendErr != nil {
		return fmt.Errorf("deliver to %d: %w", userID, sendErr)
	}
	slog.Info("Admin reply delivered", "user_id", userID)
	return nil
}
