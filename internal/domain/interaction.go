package domain

import "time"

// InteractionType classifies an interaction log entry.
type InteractionType string

const (
	InteractionText     InteractionType = "text"
	InteractionPhoto    InteractionType = "photo"
	InteractionCallback InteractionType = "callback"
	InteractionAdmin    InteractionType = "admin"
	InteractionError    InteractionType = "error"
)

// Response markers recorded in the interaction log.
const (
	ResponseRedirected = "[REDIRECTED TO OPERATOR]"
	MessageAdminReply  = "[ADMIN REPLY]"
)

// Interaction is one append-only audit record of a user exchange.
type Interaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Message   string          `json:"message"`
	Response  string          `json:"response"`
	Type      InteractionType `json:"message_type"`
	Success   bool            `json:"success"`
	CreatedAt time.Time       `json:"created_at"`
}

// Subscriber is a user opted in to broadcasts. Rows are never deleted.
type Subscriber struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	IsActive     bool      `json:"is_active"`
	SubscribedAt time.Time `json:"subscribed_at"`
}
