package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
)

const sessionColumns = `id, user_id, status, last_message, created_at, updated_at,
	last_activity, version, notified_version, activity_notified_at`

type sessionRow struct {
	ID                 int64  `db:"id"`
	UserID             int64  `db:"user_id"`
	Status             string `db:"status"`
	LastMessage        string `db:"last_message"`
	CreatedAt          int64  `db:"created_at"`
	UpdatedAt          int64  `db:"updated_at"`
	LastActivity       int64  `db:"last_activity"`
	Version            int64  `db:"version"`
	NotifiedVersion    int64  `db:"notified_version"`
	ActivityNotifiedAt int64  `db:"activity_notified_at"`
}

func (r *sessionRow) toDomain() *domain.Session {
	return &domain.Session{
		ID:                 r.ID,
		UserID:             r.UserID,
		Status:             domain.Status(r.Status),
		LastMessage:        r.LastMessage,
		CreatedAt:          fromMillis(r.CreatedAt),
		UpdatedAt:          fromMillis(r.UpdatedAt),
		LastActivity:       fromMillis(r.LastActivity),
		Version:            r.Version,
		NotifiedVersion:    r.NotifiedVersion,
		ActivityNotifiedAt: fromMillis(r.ActivityNotifiedAt),
	}
}

func toSessions(rows []sessionRow) []*domain.Session {
	out := make([]*domain.Session, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out
}

// UpsertPendingSession opens or refreshes the user's session in one statement,
// so concurrent callers in different processes converge on a single open row.
func (s *SQLiteStore) UpsertPendingSession(ctx context.Context, userID int64, message string, now time.Time) (*domain.Session, error) {
	keepPrevious := message == ""
	if keepPrevious {
		message = domain.NoMessage
	}
	ts := toMillis(now)

	query := `
	INSERT INTO operator_sessions (user_id, status, last_message, created_at, updated_at, last_activity, version)
	VALUES (?, 'pending', ?, ?, ?, ?, 1)
	ON CONFLICT(user_id) WHERE status <> 'closed' DO UPDATE SET
		status = 'pending',
		last_message = CASE WHEN ? THEN operator_sessions.last_message ELSE excluded.last_message END,
		updated_at = excluded.updated_at,
		last_activity = MAX(operator_sessions.last_activity, excluded.last_activity),
		version = operator_sessions.version + 1
	RETURNING ` + sessionColumns

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, query, userID, message, ts, ts, ts, keepPrevious); err != nil {
		return nil, fmt.Errorf("upsert pending session: %w", err)
	}
	return row.toDomain(), nil
}

// GetOpenSession returns the user's non-closed session, or nil if none exists.
func (s *SQLiteStore) GetOpenSession(ctx context.Context, userID int64) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM operator_sessions
		WHERE user_id = ? AND status <> 'closed'`

	var row sessionRow
	err := s.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open session: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateSessionStatus writes a new status guarded by the row version.
// Entering in_progress moves the activity watermark to the current
// last_activity so messages already announced as new are not re-announced.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, id, expectedVersion int64, status domain.Status, now time.Time) error {
	query := `
	UPDATE operator_sessions SET
		status = ?,
		updated_at = ?,
		version = version + 1,
		activity_notified_at = CASE
			WHEN ? = 'in_progress' AND status <> 'in_progress' THEN last_activity
			ELSE activity_notified_at END
	WHERE id = ? AND version = ?`

	result, err := s.db.ExecContext(ctx, query, string(status), toMillis(now), string(status), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateSessionStatus affected 0 rows", "session_id", id, "expected_version", expectedVersion)
		return fmt.Errorf("session %d at version %d: %w", id, expectedVersion, domain.ErrVersionConflict)
	}
	return nil
}

// TouchActivity records the time of the latest inbound user message.
func (s *SQLiteStore) TouchActivity(ctx context.Context, userID int64, at time.Time) (bool, error) {
	query := `UPDATE operator_sessions SET last_activity = MAX(last_activity, ?)
		WHERE user_id = ? AND status <> 'closed'`

	result, err := s.db.ExecContext(ctx, query, toMillis(at), userID)
	if err != nil {
		return false, fmt.Errorf("touch activity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListSessionsByStatus returns sessions in status. Pending sessions are
// ordered by creation, the rest by last update.
func (s *SQLiteStore) ListSessionsByStatus(ctx context.Context, status domain.Status) ([]*domain.Session, error) {
	order := "updated_at DESC"
	if status == domain.StatusPending {
		order = "created_at DESC"
	}
	query := `SELECT ` + sessionColumns + ` FROM operator_sessions
		WHERE status = ? ORDER BY ` + order + `, id DESC`

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, string(status)); err != nil {
		return nil, fmt.Errorf("list %s sessions: %w", status, err)
	}
	return toSessions(rows), nil
}

// ListInactiveSessions returns in_progress sessions idle since before cutoff.
func (s *SQLiteStore) ListInactiveSessions(ctx context.Context, cutoff time.Time) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM operator_sessions
		WHERE status = 'in_progress' AND last_activity < ?
		ORDER BY last_activity ASC`

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, toMillis(cutoff)); err != nil {
		return nil, fmt.Errorf("list inactive sessions: %w", err)
	}
	return toSessions(rows), nil
}

// AnswerIfStale marks an idle in_progress session answered.
func (s *SQLiteStore) AnswerIfStale(ctx context.Context, id, version int64, cutoff, now time.Time) (bool, error) {
	query := `
	UPDATE operator_sessions SET status = 'answered', updated_at = ?, version = version + 1
	WHERE id = ? AND version = ? AND status = 'in_progress' AND last_activity < ?`

	return s.execClaim(ctx, "answer stale session", query, toMillis(now), id, version, toMillis(cutoff))
}

// ListUnnotifiedPending returns pending sessions with an unannounced version.
func (s *SQLiteStore) ListUnnotifiedPending(ctx context.Context) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM operator_sessions
		WHERE status = 'pending' AND version > notified_version
		ORDER BY updated_at ASC, id ASC`

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list unnotified sessions: %w", err)
	}
	return toSessions(rows), nil
}

// ClaimPendingNotification records that version was announced.
func (s *SQLiteStore) ClaimPendingNotification(ctx context.Context, id, version int64) (bool, error) {
	query := `
	UPDATE operator_sessions SET notified_version = ?
	WHERE id = ? AND status = 'pending' AND version = ? AND notified_version < ?`

	return s.execClaim(ctx, "claim pending notification", query, version, id, version, version)
}

// ListRecentActivity returns in_progress sessions with unannounced activity since since.
func (s *SQLiteStore) ListRecentActivity(ctx context.Context, since time.Time) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM operator_sessions
		WHERE status = 'in_progress'
		  AND last_activity > activity_notified_at
		  AND last_activity >= ?
		ORDER BY last_activity ASC`

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, toMillis(since)); err != nil {
		return nil, fmt.Errorf("list recent activity: %w", err)
	}
	return toSessions(rows), nil
}

// ClaimActivityNotification advances the activity watermark to activity.
func (s *SQLiteStore) ClaimActivityNotification(ctx context.Context, id int64, activity time.Time) (bool, error) {
	ts := toMillis(activity)
	query := `
	UPDATE operator_sessions SET activity_notified_at = ?
	WHERE id = ? AND status = 'in_progress' AND last_activity = ? AND activity_notified_at < ?`

	return s.execClaim(ctx, "claim activity notification", query, ts, id, ts, ts)
}

func (s *SQLiteStore) execClaim(ctx context.Context, op, query string, args ...any) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows == 1, nil
}
