package store

import (
	"context"
	"fmt"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
)

type interactionRow struct {
	ID        int64  `db:"id"`
	UserID    int64  `db:"user_id"`
	Message   string `db:"message"`
	Response  string `db:"response"`
	Type      string `db:"message_type"`
	Success   bool   `db:"success"`
	CreatedAt int64  `db:"created_at"`
}

// SaveInteraction appends an entry to the interaction log and sets its ID.
func (s *SQLiteStore) SaveInteraction(ctx context.Context, in *domain.Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO interactions (user_id, message, response, message_type, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		in.UserID, in.Message, in.Response, string(in.Type), in.Success, toMillis(in.CreatedAt))
	if err != nil {
		return fmt.Errorf("save interaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get interaction id: %w", err)
	}
	in.ID = id
	return nil
}

// ListInteractions returns the user's most recent interactions, newest first.
func (s *SQLiteStore) ListInteractions(ctx context.Context, userID int64, limit int) ([]*domain.Interaction, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `SELECT id, user_id, message, response, message_type, success, created_at
		FROM interactions WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`

	var rows []interactionRow
	if err := s.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}

	out := make([]*domain.Interaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, &domain.Interaction{
			ID:        r.ID,
			UserID:    r.UserID,
			Message:   r.Message,
			Response:  r.Response,
			Type:      domain.InteractionType(r.Type),
			Success:   r.Success,
			CreatedAt: fromMillis(r.CreatedAt),
		})
	}
	return out, nil
}
