package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"miniapp_store/internal/app"
	"miniapp_store/internal/cache"
	"miniapp_store/internal/config"
	"miniapp_store/internal/pkg/auth"
	"miniapp_store/internal/pkg/initdata"
	"miniapp_store/internal/pkg/logger"
	"miniapp_store/internal/pkg/metrics"
	"miniapp_store/internal/pkg/ratelimit"
	"miniapp_store/internal/pkg/security"
	"miniapp_store/internal/service"
	"miniapp_store/internal/storage"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("with-bot", false, "Also run the Telegram bot in this process")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	withBot, _ := cmd.Flags().GetBool("with-bot")

	var l *logger.Logger
	var err error
	if l, err = logger.CreateLogger(config.LogLevel); err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer l.Sync()

	if err = config.Validate(); err != nil {
		return err
	}

	storage, err := storage.NewPostgreSQL(config.DatabaseURI, l)
	if err != nil {
		return err
	}
	defer storage.Close()

	admin, err := security.NewAdminCredentials(config.AdminUsername, config.AdminPassword, config.AdminPasswordHash)
	if err != nil {
		return fmt.Errorf("admin credentials: %w", err)
	}

	validator := initdata.NewValidator(config.BotToken,
		initdata.WithMaxAge(config.InitDataMaxAge),
		initdata.WithDevBypass(config.DevAuthBypass),
	)
	if validator.DevBypassEnabled() {
		l.Warn("init data dev bypass is enabled; never use this outside development")
	}

	m := metrics.New(config.MetricsNamespace, prometheus.DefaultRegisterer)
	userTokens := auth.NewTokenManager(config.JWTSecret, config.UserTokenTTL)
	adminTokens := auth.NewTokenManager(config.AdminJWTSecret, config.AdminTokenTTL)

	productCache, closeCache := newProductCache(l)
	defer closeCache()

	app := app.NewApp(storage, l, app.Config{
		Validator:   validator,
		UserTokens:  userTokens,
		AdminTokens: adminTokens,
		Admin:       admin,
		Cache:       productCache,
		Metrics:     m,
	})

	limiter := ratelimit.New(config.RateLimitRPS, config.RateLimitBurst, l.Named("ratelimit"))
	cleanupDone := make(chan struct{})
	defer close(cleanupDone)
	limiter.StartCleanup(time.Minute, cleanupDone)

	service := service.NewService(app, config.ServerRunAddress, l, service.Config{
		UserTokens:     userTokens,
		AdminTokens:    adminTokens,
		Limiter:        limiter,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
		CORSOrigins:    config.CORSOrigins,
	})

	const readHeaderTimeout = 5 * time.Second
	server := &http.Server{Addr: config.ServerRunAddress, Handler: service.NewRouter(), ReadHeaderTimeout: readHeaderTimeout}

	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	if withBot {
		go func() {
			if err := runBot(serverCtx, l, m); err != nil && !errors.Is(err, context.Canceled) {
				l.Error("bot stopped", zap.Error(err))
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		const shutdownTimeout = 30 * time.Second
		shutdownCtx, cancel := context.WithTimeout(serverCtx, shutdownTimeout)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	l.Info("starting server", zap.String("address", config.ServerRunAddress), zap.Bool("with_bot", withBot))
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		serverStopCtx()
		return err
	}

	<-serverCtx.Done()
	return nil
}

// newProductCache returns the Redis cache when REDIS_ADDR is set and reachable,
// otherwise a bounded in-process cache.
func newProductCache(l *logger.Logger) (cache.ProductCache, func()) {
	if config.RedisAddr == "" {
		return cache.NewMemory(config.ProductCacheSize, config.ProductCacheTTL), func() {}
	}

	redisCache := cache.NewRedis(cache.Config{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
		TTL:      config.ProductCacheTTL,
	}, l)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisCache.Ping(ctx); err != nil {
		l.Warn("redis unavailable, using in-process product cache", zap.Error(err))
		redisCache.Close()
		return cache.NewMemory(config.ProductCacheSize, config.ProductCacheTTL), func() {}
	}

	return cache.Logged(redisCache, l), func() { redisCache.Close() }
}
