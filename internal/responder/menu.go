package responder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/64envy64/cargo-bot/internal/domain"
	"github.com/64envy64/cargo-bot/internal/messenger"
)

const (
	callbackSubscribe   = "subscribe"
	callbackUnsubscribe = "unsubscribe"
	callbackMainMenu    = "main_menu"
	callbackCheck       = "check_address"
	callbackStartCheck  = "start_check"
)

const welcomeText = "👋 Hello! I'm the cargo assistant.\n\n" +
	"I can help you with:\n" +
	"• Tracking an order\n" +
	"• Arranging delivery\n" +
	"• Checking a warehouse address\n" +
	"• Returns\n\n" +
	"Pick a topic or just type your question:"

const unavailableText = "Sorry, this section is temporarily unavailable.\nPlease contact an operator."

var topics = map[string]string{
	"track": "📦 To track an order:\n\n" +
		"1. Open the mobile app\n" +
		"2. Go to \"Orders\"\n" +
		"3. Choose \"Arrived at pickup point\"",
	"delivery": "🚚 To arrange door-to-door delivery:\n\n" +
		"1. Go to \"Orders\"\n" +
		"2. Choose \"Arrived at pickup point\"\n" +
		"3. Tick \"door-to-door delivery\"\n" +
		"4. Fill in the address and pay",
	callbackCheck: "✅ To check a warehouse address I need:\n\n" +
		"1️⃣ Your client code (6 digits)\n" +
		"2️⃣ A screenshot of the page with the address\n\n" +
		"Send the code first: `/code your_code`\n" +
		"For example: `/code 929848`",
	"refund": "↩️ Returns are possible when:\n\n" +
		"1. The item is defective\n" +
		"2. It does not match the description\n" +
		"3. The size or colour is wrong\n" +
		"4. Something is missing",
	"faq": "❓ Frequent questions:\n\n" +
		"1. How do I track an order?\n" +
		"2. How do I order delivery?\n" +
		"3. Warehouse opening hours\n" +
		"4. How do I return an item?\n\n" +
		"Pick a topic or type your question",
	callbackStartCheck: "Please send your client code with `/code your_code`\nFor example: `/code 929848`",
	callbackMainMenu:   "Pick a topic:",
}

func (h *Handlers) mainMenu(ctx context.Context, userID int64) [][]messenger.Button {
	subscribed, err := h.store.IsSubscribed(ctx, userID)
	if err != nil {
		slog.Warn("Failed to check subscription", "user_id", userID, "error", err)
	}

	rows := [][]messenger.Button{
		{{Text: "📦 Track order", Data: "track"}, {Text: "🚚 Delivery", Data: "delivery"}},
		{{Text: "✅ Check address", Data: callbackCheck}, {Text: "↩️ Returns", Data: "refund"}},
	}
	last := []messenger.Button{{Text: "❓ FAQ", Data: "faq"}}
	if h.operatorURL != "" {
		last = append(last, messenger.Button{Text: "👨‍💻 Operator", URL: h.operatorURL})
	}
	rows = append(rows, last)

	if subscribed {
		rows = append(rows, []messenger.Button{{Text: "🔕 Unsubscribe from news", Data: callbackUnsubscribe}})
	} else {
		rows = append(rows, []messenger.Button{{Text: "🔔 Subscribe to news", Data: callbackSubscribe}})
	}
	return rows
}

func backButton() [][]messenger.Button {
	return [][]messenger.Button{{{Text: "« Main menu", Data: callbackMainMenu}}}
}

// Menu answers a main-menu topic button.
func (h *Handlers) Menu(ctx context.Context, u *messenger.Update) error {
	h.ack(ctx, u)

	data := u.CallbackData
	text, ok := topics[data]
	msg := messenger.Message{Text: text, ParseMode: messenger.ModeMarkdown}
	switch {
	case !ok:
		msg = messenger.Message{Text: unavailableText, Buttons: h.operatorButton()}
	case data == callbackMainMenu:
		msg.Buttons = h.mainMenu(ctx, u.UserID)
	case data == callbackCheck:
		msg.Buttons = [][]messenger.Button{{{Text: "✅ Yes, check my address", Data: callbackStartCheck}}}
	case data == callbackStartCheck:
		h.markAwaitingCode(u.UserID)
	default:
		msg.Buttons = backButton()
	}

	if err := h.reply(ctx, u, msg); err != nil {
		return fmt.Errorf("send menu %q: %w", data, err)
	}
	h.record(ctx, u.UserID, "[CALLBACK] "+data, msg.Text, domain.InteractionCallback, ok)
	return nil
}

// Subscribe opts the user in to broadcasts.
func (h *Handlers) Subscribe(ctx context.Context, u *messenger.Update) error {
	h.ack(ctx, u)

	already, err := h.store.IsSubscribed(ctx, u.UserID)
	if err != nil {
		return fmt.Errorf("check subscription: %w", err)
	}

	text := "✅ You are already subscribed to news.\n\nPress /start to return to the main menu."
	if !already {
		if err := h.store.AddSubscriber(ctx, u.UserID, u.Username); err != nil {
			return fmt.Errorf("add subscriber: %w", err)
		}
		text = "✅ You are subscribed!\n\n" +
			"You will now receive important updates about:\n" +
			"• New arrivals\n" +
			"• Warehouse schedule changes\n" +
			"• Special offers\n\n" +
			"Press /start to return to the main menu."
		slog.Info("User subscribed", "user_id", u.UserID)
	}

	if err := h.reply(ctx, u, messenger.Message{Text: text, Buttons: h.mainMenu(ctx, u.UserID)}); err != nil {
		return fmt.Errorf("send subscribe reply: %w", err)
	}
	h.record(ctx, u.UserID, "[CALLBACK] "+callbackSubscribe, text, domain.InteractionCallback, true)
	return nil
}

// Unsubscribe opts the user out of broadcasts.
func (h *Handlers) Unsubscribe(ctx context.Context, u *messenger.Update) error {
	h.ack(ctx, u)

	found, err := h.store.Unsubscribe(ctx, u.UserID)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}

	text := "✅ You have unsubscribed.\n\nYou will no longer receive news. Press /start to subscribe again."
	if !found {
		text = "You were not subscribed.\n\nPress /start to return to the main menu."
	} else {
		slog.Info("User unsubscribed", "user_id", u.UserID)
	}

	if err := h.reply(ctx, u, messenger.Message{Text: text, Buttons: h.mainMenu(ctx, u.UserID)}); err != nil {
		return fmt.Errorf("send unsubscribe reply: %w", err)
	}
	h.record(ctx, u.UserID, "[CALLBACK] "+callbackUnsubscribe, text, domain.InteractionCallback, found)
	return nil
}
