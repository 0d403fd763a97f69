// Package domain contains core domain types for the support bot.
package domain

import (
	"time"
)

// Status is the lifecycle state of an operator session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusAnswered   Status = "answered"
	StatusClosed     Status = "closed"
)

// NoMessage is stored as last_message when a session is opened without text.
const NoMessage = "(no message)"

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusAnswered, StatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusClosed
}

// transitions lists the legal target states for each source state.
// Re-opening an answered session goes through CreateOrRefresh, not Transition.
var transitions = map[Status][]Status{
	StatusPending:    {StatusPending, StatusInProgress, StatusAnswered, StatusClosed},
	StatusInProgress: {StatusInProgress, StatusAnswered, StatusClosed},
	StatusAnswered:   {StatusInProgress, StatusClosed},
}

// CanTransition reports whether a session in from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session is the hand-off record that tracks whether a user is waiting for,
// talking to, or done talking to a human operator.
type Session struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Status       Status    `json:"status"`
	LastMessage  string    `json:"last_message"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastActivity time.Time `json:"last_activity"`

	// Version is bumped on every status or last_message write.
	Version int64 `json:"version"`
	// NotifiedVersion is the last Version operators were alerted about.
	NotifiedVersion int64 `json:"notified_version"`
	// ActivityNotifiedAt is the last LastActivity operators were alerted about.
	ActivityNotifiedAt time.Time `json:"activity_notified_at"`
}

// NeedsNotification reports whether the current pending event has not been announced.
func (s *Session) NeedsNotification() bool {
	return s.Status == StatusPending && s.Version > s.NotifiedVersion
}

// InactiveSince reports whether the session has seen no user activity since cutoff.
func (s *Session) InactiveSince(cutoff time.Time) bool {
	return s.LastActivity.Before(cutoff)
}
