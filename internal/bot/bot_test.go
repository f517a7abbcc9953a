package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniapp_store/internal/pkg/logger"
)

const webAppURL = "https://shop.example.com/app"

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func commandUpdate(text string) tgbotapi.Update {
	length := len(text)
	for i, r := range text {
		if r == ' ' {
			length = i
			break
		}
	}
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Chat:     &tgbotapi.Chat{ID: 100},
			Text:     text,
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
		},
	}
}

func buttonURL(t *testing.T, msg tgbotapi.MessageConfig) string {
	t.Helper()
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 1)
	require.NotNil(t, markup.InlineKeyboard[0][0].URL)
	return *markup.InlineKeyboard[0][0].URL
}

func TestHandleUpdate_Commands(t *testing.T) {
	testCases := []struct {
		name    string
		text    string
		wantURL string
	}{
		{name: "start", text: "/start", wantURL: webAppURL},
		{name: "start with wallet payload", text: "/start wallet", wantURL: webAppURL + "?tab=wallet"},
		{name: "start with unknown payload", text: "/start promo42", wantURL: webAppURL},
		{name: "start with products payload", text: "/start my-products", wantURL: webAppURL + "?tab=orders"},
		{name: "store", text: "/store", wantURL: webAppURL + "?tab=store"},
		{name: "wallet", text: "/wallet", wantURL: webAppURL + "?tab=wallet"},
		{name: "admin", text: "/admin", wantURL: webAppURL + "?tab=admin"},
		{name: "help", text: "/help", wantURL: webAppURL},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sender := &fakeSender{}
			New(sender, Config{WebAppURL: webAppURL}, logger.Nop()).HandleUpdate(commandUpdate(tc.text))

			require.Len(t, sender.sent, 1)
			assert.Equal(t, int64(100), sender.sent[0].ChatID)
			assert.Equal(t, tc.wantURL, buttonURL(t, sender.sent[0]))
		})
	}
}

func TestHandleUpdate_PlainTextGetsHelp(t *testing.T) {
	sender := &fakeSender{}
	b := New(sender, Config{WebAppURL: webAppURL}, logger.Nop())

	b.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 5}, Text: "hello"}})
	require.Len(t, sender.sent, 1)
	assert.Equal(t, helpText, sender.sent[0].Text)

	b.HandleUpdate(tgbotapi.Update{})
	assert.Len(t, sender.sent, 1, "updates without a message are ignored")
}

func TestHandleUpdate_SendErrorIsLogged(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat not found")}
	assert.NotPanics(t, func() {
		New(sender, Config{WebAppURL: webAppURL}, logger.Nop()).HandleUpdate(commandUpdate("/store"))
	})
}

func TestRun_StopsOnCancel(t *testing.T) {
	sender := &fakeSender{}
	b := New(sender, Config{WebAppURL: webAppURL}, logger.Nop())

	updates := make(chan tgbotapi.Update, 1)
	updates <- commandUpdate("/wallet")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, updates) }()

	require.Eventually(t, func() bool {
		select {
		case <-done:
			return false
		default:
		}
		return len(updates) == 0
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ReturnsWhenUpdatesClosed(t *testing.T) {
	b := New(&fakeSender{}, Config{WebAppURL: webAppURL}, logger.Nop())
	updates := make(chan tgbotapi.Update)
	close(updates)
	assert.NoError(t, b.Run(context.Background(), updates))
}

func TestDeepLink(t *testing.T) {
	assert.Equal(t, "https://x.example/?tab=cart", DeepLink("https://x.example/", TabCart))
	assert.Equal(t, "https://x.example/?lang=en&tab=cart", DeepLink("https://x.example/?lang=en", TabCart))
	assert.Equal(t, "https://x.example/", DeepLink("https://x.example/", TabHome))
}
