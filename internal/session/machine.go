// Package session implements the operator session state machine on top of
// the shared store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/shared"
)

// Store is the subset of the repository the state machine writes through.
type Store interface {
	UpsertPendingSession(ctx context.Context, userID int64, message string, now time.Time) (*domain.Session, error)
	GetOpenSession(ctx context.Context, userID int64) (*domain.Session, error)
	UpdateSessionStatus(ctx context.Context, id, expectedVersion int64, status domain.Status, now time.Time) error
	TouchActivity(ctx context.Context, userID int64, at time.Time) (bool, error)
}

const (
	maxTransitionAttempts = 3
	busyRetries           = 3
	busyBaseDelay         = 50 * time.Millisecond
)

// Machine applies lifecycle changes to operator sessions.
type Machine struct {
	repo Store
	now  func() time.Time
}

// NewMachine creates a state machine over repo.
func NewMachine(repo Store) *Machine {
	return &Machine{repo: repo, now: time.Now}
}

// CreateOrRefresh puts the user's session into pending with message as the
// latest request, opening a new session if the user has none.
func (m *Machine) CreateOrRefresh(ctx context.Context, userID int64, message string) (*domain.Session, error) {
	var sess *domain.Session
	err := shared.RetryOnConflict(ctx, "create or refresh session", busyRetries, busyBaseDelay, func() error {
		var err error
		sess, err = m.repo.UpsertPendingSession(ctx, userID, message, m.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create or refresh session for %d: %w", userID, err)
	}
	slog.Info("Session pending", "user_id", userID, "session_id", sess.ID, "version", sess.Version)
	return sess, nil
}

// Transition moves the user's open session to target. A user without an
// open session is a no-op. Edges not allowed by domain.CanTransition are
// rejected with domain.ErrIllegalTransition and nothing is written.
func (m *Machine) Transition(ctx context.Context, userID int64, target domain.Status) error {
	if !target.Valid() {
		return fmt.Errorf("status %q: %w", target, domain.ErrInvalidInput)
	}

	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		var sess *domain.Session
		err := shared.RetryOnConflict(ctx, "get open session", busyRetries, busyBaseDelay, func() error {
			var err error
			sess, err = m.repo.GetOpenSession(ctx, userID)
			return err
		})
		if err != nil {
			return fmt.Errorf("load session for %d: %w", userID, err)
		}
		if sess == nil {
			slog.Info("Transition skipped, no open session", "user_id", userID, "status", target)
			return nil
		}

		if !domain.CanTransition(sess.Status, target) {
			return fmt.Errorf("session %d %s -> %s: %w", sess.ID, sess.Status, target, domain.ErrIllegalTransition)
		}
		if sess.Status == target {
			return nil
		}

		err = shared.RetryOnConflict(ctx, "update session status", busyRetries, busyBaseDelay, func() error {
			return m.repo.UpdateSessionStatus(ctx, sess.ID, sess.Version, target, m.now())
		})
		if errors.Is(err, domain.ErrVersionConflict) {
			slog.Warn("Session changed concurrently, re-evaluating",
				"user_id", userID, "session_id", sess.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			return fmt.Errorf("transition session %d: %w", sess.ID, err)
		}

		slog.Info("Session transitioned",
			"user_id", userID, "session_id", sess.ID, "from", sess.Status, "to", target)
		return nil
	}

	return fmt.Errorf("transition user %d to %s after %d attempts: %w",
		userID, target, maxTransitionAttempts, domain.ErrVersionConflict)
}

// TouchActivity records an inbound message from the user. Users without an
// open session are ignored.
func (m *Machine) TouchActivity(ctx context.Context, userID int64) error {
	return shared.RetryOnConflict(ctx, "touch activity", busyRetries, busyBaseDelay, func() error {
		_, err := m.repo.TouchActivity(ctx, userID, m.now())
		return err
	})
}

// StartReply marks the session as being handled by an operator.
func (m *Machine) StartReply(ctx context.Context, userID int64) error {
	return m.Transition(ctx, userID, domain.StatusInProgress)
}

// Resolve marks the session answered.
func (m *Machine) Resolve(ctx context.Context, userID int64) error {
	return m.Transition(ctx, userID, domain.StatusAnswered)
}

// Close ends the session for good. The user's next message opens a new one.
func (m *Machine) Close(ctx context.Context, userID int64) error {
	return m.Transition(ctx, userID, domain.StatusClosed)
}
