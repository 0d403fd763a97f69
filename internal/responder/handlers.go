package responder

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
)

const clientCodeLength = 6

// Text classifies a plain message and either answers it or hands the user
// to an operator.
func (h *Handlers) Text(ctx context.Context, u *messenger.Update) error {
	text := strings.TrimSpace(u.Content())
	if text == "" {
		return nil
	}
	if h.isAwaitingCode(u.UserID) && isDigits(text) {
		return h.saveCode(ctx, u, text)
	}

	res, err := h.classifier.Classify(ctx, u.UserID, text)
	if err != nil {
		return fmt.Errorf("classify message: %w", err)
	}

	if res.NeedsOperator {
		if _, err := h.sessions.CreateOrRefresh(ctx, u.UserID, text); err != nil {
			return fmt.Errorf("hand off to operator: %w", err)
		}
		if err := h.reply(ctx, u, messenger.Message{Text: res.Reply, Buttons: h.operatorButton()}); err != nil {
			return fmt.Errorf("send hand-off reply: %w", err)
		}
		h.record(ctx, u.UserID, text, domain.ResponseRedirected, domain.InteractionText, true)
		return nil
	}

	msg := messenger.Message{Text: res.Reply}
	if wantsMenu(text) {
		msg.Buttons = h.mainMenu(ctx, u.UserID)
	}
	if err := h.reply(ctx, u, msg); err != nil {
		return fmt.Errorf("send answer: %w", err)
	}
	h.record(ctx, u.UserID, text, res.Reply, domain.InteractionText, true)
	return nil
}

// Start greets the user and shows the main menu.
func (h *Handlers) Start(ctx context.Context, u *messenger.Update) error {
	err := h.reply(ctx, u, messenger.Message{
		Text:    welcomeText,
		Buttons: h.mainMenu(ctx, u.UserID),
	})
	if err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	return nil
}

// Code stores the 6-digit client code used for warehouse address checks.
func (h *Handlers) Code(ctx context.Context, u *messenger.Update) error {
	return h.saveCode(ctx, u, strings.TrimSpace(u.Args))
}

func (h *Handlers) saveCode(ctx context.Context, u *messenger.Update, code string) error {
	var text string
	switch {
	case code == "":
		h.markAwaitingCode(u.UserID)
		text = "❌ Please add your code after the command.\nExample: `/code 929848`"
	case len(code) != clientCodeLength || !isDigits(code):
		text = "❌ The client code must be 6 digits.\nExample: `/code 929848`"
	default:
		h.codes.Add(u.UserID, code)
		h.awaiting.Remove(u.UserID)
		text = fmt.Sprintf("✅ Your code %s is saved.\n\n"+
			"Now send a screenshot of the page with your warehouse address and an operator will check it.", code)
	}

	if err := h.reply(ctx, u, messenger.Message{Text: text, ParseMode: messenger.ModeMarkdown}); err != nil {
		return fmt.Errorf("send code reply: %w", err)
	}
	return nil
}

// Photo handles address screenshots. Image validation is done by an
// operator; the bot only collects the client code and hands off.
func (h *Handlers) Photo(ctx context.Context, u *messenger.Update) error {
	code := h.clientCode(u.UserID)
	if code == "" {
		h.markAwaitingCode(u.UserID)
		text := "❌ To check the address I need your client code.\n\n" +
			"Send it first with `/code your_code`, for example `/code 929848`, then send the screenshot again."
		if err := h.reply(ctx, u, messenger.Message{Text: text, ParseMode: messenger.ModeMarkdown}); err != nil {
			return fmt.Errorf("send code instructions: %w", err)
		}
		h.record(ctx, u.UserID, "[PHOTO]", text, domain.InteractionPhoto, false)
		return nil
	}

	request := fmt.Sprintf("[PHOTO] Address check for client code %s", code)
	if caption := strings.TrimSpace(u.Text); caption != "" {
		request += ": " + caption
	}
	if _, err := h.sessions.CreateOrRefresh(ctx, u.UserID, request); err != nil {
		return fmt.Errorf("hand off photo: %w", err)
	}

	text := "🔍 Thanks! An operator will check your address and reply here shortly."
	if err := h.reply(ctx, u, messenger.Message{Text: text, Buttons: h.operatorButton()}); err != nil {
		return fmt.Errorf("send photo reply: %w", err)
	}
	h.record(ctx, u.UserID, "[PHOTO]", domain.ResponseRedirected, domain.InteractionPhoto, true)
	return nil
}

func (h *Handlers) clientCode(userID int64) string {
	code, _ := h.codes.Get(userID)
	return code
}

func (h *Handlers) isAwaitingCode(userID int64) bool {
	return h.awaiting.Contains(userID)
}

func (h *Handlers) markAwaitingCode(userID int64) {
	h.awaiting.Add(userID, struct{}{})
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func wantsMenu(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "help") || strings.Contains(lower, "menu")
}
