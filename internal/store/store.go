// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
)

// SessionRepository persists operator sessions.
type SessionRepository interface {
	// UpsertPendingSession opens a pending session for the user, or moves the
	// user's open session back to pending. An empty message keeps the
	// previous last_message on refresh and stores domain.NoMessage on insert.
	UpsertPendingSession(ctx context.Context, userID int64, message string, now time.Time) (*domain.Session, error)

	// GetOpenSession returns the user's non-closed session, or nil if there is none.
	GetOpenSession(ctx context.Context, userID int64) (*domain.Session, error)

	// UpdateSessionStatus sets the status of a session if its version still
	// equals expectedVersion. Returns domain.ErrVersionConflict otherwise.
	UpdateSessionStatus(ctx context.Context, id, expectedVersion int64, status domain.Status, now time.Time) error

	// TouchActivity records user activity on the open session. It reports
	// whether a row was updated.
	TouchActivity(ctx context.Context, userID int64, at time.Time) (bool, error)

	// ListSessionsByStatus returns sessions in the given status, newest first.
	ListSessionsByStatus(ctx context.Context, status domain.Status) ([]*domain.Session, error)

	// ListInactiveSessions returns in_progress sessions idle since before cutoff.
	ListInactiveSessions(ctx context.Context, cutoff time.Time) ([]*domain.Session, error)

	// AnswerIfStale marks an in_progress session answered only if it is still
	// at version and still idle since before cutoff.
	AnswerIfStale(ctx context.Context, id, version int64, cutoff, now time.Time) (bool, error)

	// ListUnnotifiedPending returns pending sessions whose current version has
	// not been announced to operators.
	ListUnnotifiedPending(ctx context.Context) ([]*domain.Session, error)

	// ClaimPendingNotification marks version as announced. It reports false if
	// another sweep claimed it or the session moved on.
	ClaimPendingNotification(ctx context.Context, id, version int64) (bool, error)

	// ListRecentActivity returns in_progress sessions with unannounced
	// activity at or after since.
	ListRecentActivity(ctx context.Context, since time.Time) ([]*domain.Session, error)

	// ClaimActivityNotification advances the announced-activity watermark to activity.
	ClaimActivityNotification(ctx context.Context, id int64, activity time.Time) (bool, error)
}

// InteractionRepository persists the append-only interaction log.
type InteractionRepository interface {
	SaveInteraction(ctx context.Context, in *domain.Interaction) error
	ListInteractions(ctx context.Context, userID int64, limit int) ([]*domain.Interaction, error)
}

// SubscriberRepository persists broadcast subscribers.
type SubscriberRepository interface {
	AddSubscriber(ctx context.Context, userID int64, username string) error
	Unsubscribe(ctx context.Context, userID int64) (bool, error)
	IsSubscribed(ctx context.Context, userID int64) (bool, error)
	ListActiveSubscribers(ctx context.Context) ([]*domain.Subscriber, error)
	CountSubscribers(ctx context.Context) (int, error)
	CountActiveSubscribers(ctx context.Context) (int, error)
}

// Repository is the single store handle shared by every component of a process.
type Repository interface {
	SessionRepository
	InteractionRepository
	SubscriberRepository

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
