package store

import (
	"context"
	"fmt"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
)

type subscriberRow struct {
	ID           int64  `db:"id"`
	UserID       int64  `db:"user_id"`
	Username     string `db:"username"`
	SubscribedAt int64  `db:"subscribed_at"`
	IsActive     bool   `db:"is_active"`
}

// AddSubscriber subscribes the user, reactivating a previous subscription.
// An empty username keeps the stored one.
func (s *SQLiteStore) AddSubscriber(ctx context.Context, userID int64, username string) error {
	query := `
	INSERT INTO subscribers (user_id, username, subscribed_at, is_active)
	VALUES (?, ?, ?, 1)
	ON CONFLICT(user_id) DO UPDATE SET
		username = CASE WHEN excluded.username <> '' THEN excluded.username ELSE subscribers.username END,
		subscribed_at = CASE WHEN subscribers.is_active = 0 THEN excluded.subscribed_at ELSE subscribers.subscribed_at END,
		is_active = 1`

	if _, err := s.db.ExecContext(ctx, query, userID, username, toMillis(time.Now())); err != nil {
		return fmt.Errorf("add subscriber: %w", err)
	}
	return nil
}

// Unsubscribe deactivates the subscription. It reports false for unknown users.
func (s *SQLiteStore) Unsubscribe(ctx context.Context, userID int64) (bool, error) {
	return s.execClaim(ctx, "unsubscribe", `UPDATE subscribers SET is_active = 0 WHERE user_id = ?`, userID)
}

// IsSubscribed reports whether the user has an active subscription.
func (s *SQLiteStore) IsSubscribed(ctx context.Context, userID int64) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM subscribers WHERE user_id = ? AND is_active = 1`, userID); err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return n > 0, nil
}

// ListActiveSubscribers returns every active subscriber.
func (s *SQLiteStore) ListActiveSubscribers(ctx context.Context) ([]*domain.Subscriber, error) {
	var rows []subscriberRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, username, subscribed_at, is_active FROM subscribers
		 WHERE is_active = 1 ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}

	out := make([]*domain.Subscriber, 0, len(rows))
	for _, r := range rows {
		out = append(out, &domain.Subscriber{
			ID:           r.ID,
			UserID:       r.UserID,
			Username:     r.Username,
			IsActive:     r.IsActive,
			SubscribedAt: fromMillis(r.SubscribedAt),
		})
	}
	return out, nil
}

// CountSubscribers returns the number of subscriber rows, active or not.
func (s *SQLiteStore) CountSubscribers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM subscribers`); err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}

// CountActiveSubscribers returns the number of active subscribers.
func (s *SQLiteStore) CountActiveSubscribers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM subscribers WHERE is_active = 1`); err != nil {
		return 0, fmt.Errorf("count active subscribers: %w", err)
	}
	return n, nil
}
