package messenger

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestConvertCommandUpdate(t *testing.T) {
	raw := tgbotapi.Update{
		UpdateID: 10,
		Message: &tgbotapi.Message{
			Text:     "/addop 12345",
			From:     &tgbotapi.User{ID: 7, UserName: "op"},
			Chat:     &tgbotapi.Chat{ID: 7},
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
		},
	}
	u := convertUpdate(raw)
	if u == nil {
		t.Fatal("expected update")
	}
	if u.Command != "addop" || u.Args != "12345" {
		t.Errorf("command = %q args = %q", u.Command, u.Args)
	}
	if u.Kind() != "command" || u.Content() != "/addop 12345" {
		t.Errorf("Kind = %q Content = %q", u.Kind(), u.Content())
	}
}

func TestConvertCallbackUpdate(t *testing.T) {
	raw := tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb1",
			Data:    "reply_42",
			From:    &tgbotapi.User{ID: 9},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 900}},
		},
	}
	u := convertUpdate(raw)
	if u == nil || !u.IsCallback() {
		t.Fatal("expected callback update")
	}
	if u.UserID != 9 || u.ChatID != 900 || u.Content() != "reply_42" {
		t.Errorf("unexpected update %+v", u)
	}
}

func TestConvertPhotoUpdate(t *testing.T) {
	raw := tgbotapi.Update{
		Message: &tgbotapi.Message{
			Caption: "invoice",
			Photo:   []tgbotapi.PhotoSize{{FileID: "f"}},
			From:    &tgbotapi.User{ID: 1},
			Chat:    &tgbotapi.Chat{ID: 1},
		},
	}
	u := convertUpdate(raw)
	if u == nil || !u.HasPhoto || u.Kind() != "photo" || u.Text != "invoice" {
		t.Errorf("unexpected update %+v", u)
	}
}

func TestConvertIgnoresOtherUpdates(t *testing.T) {
	if u := convertUpdate(tgbotapi.Update{UpdateID: 1}); u != nil {
		t.Errorf("expected nil, got %+v", u)
	}
}

func TestInlineKeyboard(t *testing.T) {
	kb := inlineKeyboard([][]Button{{{Text: "Reply", Data: "reply_1"}, {Text: "Site", URL: "https://example.com"}}})
	if len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected layout %+v", kb)
	}
	if d := kb.InlineKeyboard[0][0].CallbackData; d == nil || *d != "reply_1" {
		t.Errorf("callback data = %v", d)
	}
	if u := kb.InlineKeyboard[0][1].URL; u == nil || *u != "https://example.com" {
		t.Errorf("url = %v", u)
	}
}
