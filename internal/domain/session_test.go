package domain

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusClosed, true},
		{StatusInProgress, StatusAnswered, true},
		{StatusInProgress, StatusInProgress, true},
		{StatusAnswered, StatusInProgress, true},
		{StatusAnswered, StatusClosed, true},
		{StatusAnswered, StatusPending, false},
		{StatusInProgress, StatusPending, false},
		{StatusClosed, StatusPending, false},
		{StatusClosed, StatusAnswered, false},
		{StatusClosed, StatusClosed, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusAnswered.Valid() {
		t.Error("answered should be valid")
	}
	if Status("archived").Valid() {
		t.Error("archived should not be valid")
	}
	if !StatusClosed.Terminal() || StatusAnswered.Terminal() {
		t.Error("only closed is terminal")
	}
}

func TestSessionNeedsNotification(t *testing.T) {
	s := &Session{Status: StatusPending, Version: 2, NotifiedVersion: 1}
	if !s.NeedsNotification() {
		t.Error("expected unannounced pending session to need notification")
	}
	s.NotifiedVersion = 2
	if s.NeedsNotification() {
		t.Error("expected announced session not to need notification")
	}
	s = &Session{Status: StatusInProgress, Version: 3}
	if s.NeedsNotification() {
		t.Error("in_progress sessions are announced by activity, not version")
	}
}

func TestSessionInactiveSince(t *testing.T) {
	now := time.Now()
	s := &Session{LastActivity: now.Add(-13 * time.Hour)}
	if !s.InactiveSince(now.Add(-12 * time.Hour)) {
		t.Error("expected session idle for 13h to be inactive past 12h cutoff")
	}
	s.LastActivity = now.Add(-time.Hour)
	if s.InactiveSince(now.Add(-12 * time.Hour)) {
		t.Error("expected recent session to be active")
	}
}
