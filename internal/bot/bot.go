// Package bot runs the Telegram bot that opens the store Mini App on a given tab.
package bot

import (
	"context"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"miniapp_store/internal/pkg/logger"
	"miniapp_store/internal/pkg/metrics"
)

// Tabs of the Mini App reachable through a deep link.
const (
	TabHome   = ""
	TabStore  = "store"
	TabWallet = "wallet"
	TabCart   = "cart"
	TabOrders = "orders"
	TabAdmin  = "admin"
)

const helpText = `Commands:
/start - open the store
/store - browse products
/wallet - balance and top-ups
/admin - admin panel
/help - this message`

// Sender is the part of *tgbotapi.BotAPI used by the bot.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Config holds the bot settings.
type Config struct {
	WebAppURL string
	Metrics   *metrics.Metrics
}

// Bot answers commands with a button that opens the Mini App.
type Bot struct {
	sender    Sender
	webAppURL string
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// New returns a Bot sending through sender.
func New(sender Sender, cfg Config, log *logger.Logger) *Bot {
	return &Bot{
		sender:    sender,
		webAppURL: cfg.WebAppURL,
		metrics:   cfg.Metrics,
		log:       log.Named("bot"),
	}
}

// Run handles updates until ctx is cancelled or updates is closed.
func (bot *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			bot.HandleUpdate(update)
		}
	}
}

// HandleUpdate replies to one update. Updates without a message are ignored.
func (bot *Bot) HandleUpdate(update tgbotapi.Update) {
	if update.Message == nil {
		return
	}

	msg := bot.reply(update.Message)
	if _, err := bot.sender.Send(msg); err != nil {
		bot.log.Error("failed to send reply",
			zap.Int64("chat_id", update.Message.Chat.ID),
			zap.Error(err),
		)
	}
}

func (bot *Bot) reply(message *tgbotapi.Message) tgbotapi.MessageConfig {
	response := tgbotapi.NewMessage(message.Chat.ID, "")

	command := "help"
	if message.IsCommand() {
		command = message.Command()
	}
	bot.metrics.ObserveBotCommand(command)

	switch command {
	case "start":
		tab := tabFromPayload(message.CommandArguments())
		response.Text = "Welcome to the store! Tap the button below to open it."
		response.ReplyMarkup = bot.keyboard("Open store", tab)
	case "store":
		response.Text = "Browse the catalogue."
		response.ReplyMarkup = bot.keyboard("Open catalogue", TabStore)
	case "wallet":
		response.Text = "Check your balance or top it up."
		response.ReplyMarkup = bot.keyboard("Open wallet", TabWallet)
	case "admin":
		response.Text = "Admin panel. You will be asked to sign in."
		response.ReplyMarkup = bot.keyboard("Open admin panel", TabAdmin)
	default:
		response.Text = helpText
		response.ReplyMarkup = bot.keyboard("Open store", TabHome)
	}

	return response
}

func (bot *Bot) keyboard(label, tab string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(label, DeepLink(bot.webAppURL, tab)),
		),
	)
}

// DeepLink returns webAppURL with the tab query parameter set. An empty tab leaves the URL unchanged.
func DeepLink(webAppURL, tab string) string {
	if tab == TabHome {
		return webAppURL
	}

	u, err := url.Parse(webAppURL)
	if err != nil {
		return webAppURL
	}
	query := u.Query()
	query.Set("tab", tab)
	u.RawQuery = query.Encode()
	return u.String()
}

// tabFromPayload maps a /start deep-link payload to a known tab.
func tabFromPayload(payload string) string {
	switch tab := strings.ToLower(strings.TrimSpace(payload)); tab {
	case TabStore, TabWallet, TabCart, TabOrders, TabAdmin:
		return tab
	case "products", "my-products":
		return TabOrders
	}
	return TabHome
}
