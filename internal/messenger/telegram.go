package messenger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UnknownUsername is returned by DisplayName when the user has no public handle.
const UnknownUsername = "no username"

// Telegram implements Sender, Directory and CallbackAnswerer over the Bot API.
type Telegram struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
}

// NewTelegram connects to the Bot API with token. Every HTTP call is bounded
// by timeout in addition to the caller's context.
func NewTelegram(token string, timeout time.Duration) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	client := &http.Client{Timeout: timeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", api.Self.UserName)

	// Long polls must finish before the client timeout fires.
	pollTimeout := int(timeout/time.Second) - 1
	if pollTimeout < 1 {
		pollTimeout = 1
	}
	return &Telegram{api: api, pollTimeout: pollTimeout}, nil
}

// call runs fn but returns early when ctx ends. fn itself is bounded by the
// http.Client timeout, so an abandoned call does not run forever.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Send delivers msg.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	cfg := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	cfg.ParseMode = msg.ParseMode
	switch {
	case len(msg.Buttons) > 0:
		cfg.ReplyMarkup = inlineKeyboard(msg.Buttons)
	case len(msg.Keyboard) > 0:
		cfg.ReplyMarkup = replyKeyboard(msg.Keyboard)
	}

	_, err := call(ctx, func() (tgbotapi.Message, error) {
		return t.api.Send(cfg)
	})
	if err != nil {
		return fmt.Errorf("send to chat %d: %w", msg.ChatID, err)
	}
	return nil
}

// DisplayName returns the user's @handle, or UnknownUsername.
func (t *Telegram) DisplayName(ctx context.Context, userID int64) (string, error) {
	chat, err := call(ctx, func() (tgbotapi.Chat, error) {
		return t.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: userID}})
	})
	if err != nil {
		return "", fmt.Errorf("get chat %d: %w", userID, err)
	}
	if chat.UserName == "" {
		return UnknownUsername, nil
	}
	return chat.UserName, nil
}

// AnswerCallback stops the client-side spinner on an inline button.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) {
		return t.api.Request(tgbotapi.NewCallback(callbackID, text))
	})
	if err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// Poll long-polls for updates and hands each one to handle until ctx ends.
// Updates are handled one at a time in arrival order.
func (t *Telegram) Poll(ctx context.Context, handle func(context.Context, *Update)) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = t.pollTimeout
	updates := t.api.GetUpdatesChan(cfg)
	slog.Info("Polling for updates", "bot", t.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			slog.Info("Update poller shutting down", "reason", ctx.Err())
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			if u := convertUpdate(raw); u != nil {
				handle(ctx, u)
			}
		}
	}
}

func convertUpdate(raw tgbotapi.Update) *Update {
	switch {
	case raw.CallbackQuery != nil:
		q := raw.CallbackQuery
		u := &Update{
			UpdateID:     raw.UpdateID,
			CallbackID:   q.ID,
			CallbackData: q.Data,
			Received:     time.Now(),
		}
		if q.From != nil {
			u.UserID = q.From.ID
			u.Username = q.From.UserName
			u.ChatID = q.From.ID
		}
		if q.Message != nil && q.Message.Chat != nil {
			u.ChatID = q.Message.Chat.ID
		}
		return u
	case raw.Message != nil:
		m := raw.Message
		u := &Update{
			UpdateID: raw.UpdateID,
			Text:     m.Text,
			HasPhoto: len(m.Photo) > 0,
			Received: time.Now(),
		}
		if m.From != nil {
			u.UserID = m.From.ID
			u.Username = m.From.UserName
		}
		if m.Chat != nil {
			u.ChatID = m.Chat.ID
		}
		if m.IsCommand() {
			u.Command = m.Command()
			u.Args = m.CommandArguments()
		}
		if u.HasPhoto && u.Text == "" {
			u.Text = m.Caption
		}
		return u
	}
	return nil
}

func inlineKeyboard(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	out := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, text := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
		}
		out = append(out, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	kb := tgbotapi.NewReplyKeyboard(out...)
	kb.ResizeKeyboard = true
	return kb
}
