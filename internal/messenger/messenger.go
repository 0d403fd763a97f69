// Package messenger defines the outbound messaging boundary and the inbound
// update shape shared by both bots.
package messenger

import (
	"context"
	"time"
)

// ParseMode values understood by Send.
const (
	ModeHTML     = "HTML"
	ModeMarkdown = "Markdown"
)

// Button is an inline button. Data is delivered back as a callback.
type Button struct {
	Text string
	Data string
	URL  string
}

// Message is one outbound chat message.
type Message struct {
	ChatID    int64
	Text      string
	ParseMode string
	Buttons   [][]Button
	// Keyboard replaces the user's reply keyboard when set.
	Keyboard [][]string
}

// Sender delivers messages to a chat.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Directory resolves a human-readable name for a user.
type Directory interface {
	DisplayName(ctx context.Context, userID int64) (string, error)
}

// CallbackAnswerer acknowledges an inline button press.
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// SendText is a convenience for plain text messages.
func SendText(ctx context.Context, s Sender, chatID int64, text string) error {
	return s.Send(ctx, Message{ChatID: chatID, Text: text})
}

// Update is an inbound event from a chat user.
type Update struct {
	UpdateID int
	UserID   int64
	Username string
	ChatID   int64

	Text    string
	Command string
	Args    string

	CallbackID   string
	CallbackData string

	HasPhoto bool
	Received time.Time
}

// IsCallback reports whether the update is an inline button press.
func (u *Update) IsCallback() bool {
	return u.CallbackID != ""
}

// Kind returns a short label for logging and the interaction log.
func (u *Update) Kind() string {
	switch {
	case u.IsCallback():
		return "callback"
	case u.HasPhoto:
		return "photo"
	case u.Command != "":
		return "command"
	default:
		return "text"
	}
}

// Content returns the user-supplied payload of the update.
func (u *Update) Content() string {
	switch {
	case u.IsCallback():
		return u.CallbackData
	case u.Command != "":
		if u.Args != "" {
			return "/" + u.Command + " " + u.Args
		}
		return "/" + u.Command
	default:
		return u.Text
	}
}
