package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"miniapp_store/internal/bot"
	"miniapp_store/internal/config"
	"miniapp_store/internal/pkg/logger"
	"miniapp_store/internal/pkg/metrics"
)

func init() {
	rootCmd.AddCommand(botCmd)
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot that opens the Mini App",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := logger.CreateLogger(config.LogLevel)
		if err != nil {
			log.Fatal("Failed to create logger:", err)
		}
		defer l.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		m := metrics.New(config.MetricsNamespace, prometheus.DefaultRegisterer)
		if err = runBot(ctx, l, m); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// runBot long-polls Telegram until ctx is cancelled.
func runBot(ctx context.Context, l *logger.Logger, m *metrics.Metrics) error {
	if config.BotToken == "" {
		return config.ErrMissingBotToken
	}

	api, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return err
	}
	l.Info("bot authorized", zap.String("username", api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()

	return bot.New(api, bot.Config{WebAppURL: config.WebAppURL, Metrics: m}, l).Run(ctx, updates)
}
