// Package config reads the process configuration from the environment once at start-up.
// A .env file in the working directory is loaded first when present.
package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret      = "supersecretkey"
	defaultAdminJWTSecret = "superadminsecretkey"
)

var (
	LogLevel         string
	Environment      string
	ServerRunAddress string
	DatabaseURI      string

	BotToken  string
	WebAppURL string

	JWTSecret         string
	UserTokenTTL      time.Duration
	AdminJWTSecret    string
	AdminTokenTTL     time.Duration
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string

	DevAuthBypass  bool
	InitDataMaxAge time.Duration

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProductCacheTTL time.Duration

	// ProductCacheSize caps the in-process listing cache used without Redis.
	ProductCacheSize int

	RateLimitRPS   float64
	RateLimitBurst int

	MetricsNamespace string
	CORSOrigins      []string
)

// Errors returned by Validate.
var (
	ErrDevBypassInProduction = errors.New("config: DEV_AUTH_BYPASS must not be enabled in production")
	ErrDefaultSecret         = errors.New("config: JWT secrets must be set explicitly in production")
	ErrSameSecrets           = errors.New("config: JWT_SECRET and ADMIN_JWT_SECRET must differ")
	ErrMissingBotToken       = errors.New("config: BOT_TOKEN is required")
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	Load()
}

// Load (re)reads every setting from the environment.
func Load() {
	LogLevel = getString("LOG_LEVEL", "info")
	Environment = getString("APP_ENV", "development")
	ServerRunAddress = getString("SERVER_RUN_ADDRESS", "0.0.0.0:8080")
	DatabaseURI = getString("DATABASE_URI", "host=db user=postgres password=password dbname=store sslmode=disable")

	BotToken = os.Getenv("BOT_TOKEN")
	WebAppURL = getString("WEBAPP_URL", "https://localhost:5173")

	JWTSecret = getString("JWT_SECRET", defaultJWTSecret)
	UserTokenTTL = getDuration("USER_TOKEN_TTL", 24*time.Hour)
	AdminJWTSecret = getString("ADMIN_JWT_SECRET", defaultAdminJWTSecret)
	AdminTokenTTL = getDuration("ADMIN_TOKEN_TTL", 8*time.Hour)
	AdminUsername = getString("ADMIN_USERNAME", "admin")
	AdminPassword = os.Getenv("ADMIN_PASSWORD")
	AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")

	DevAuthBypass = getBool("DEV_AUTH_BYPASS", false)
	InitDataMaxAge = getDuration("INIT_DATA_MAX_AGE", 24*time.Hour)

	RedisAddr = os.Getenv("REDIS_ADDR")
	RedisPassword = os.Getenv("REDIS_PASSWORD")
	RedisDB = getInt("REDIS_DB", 0)
	ProductCacheTTL = getDuration("PRODUCT_CACHE_TTL", 5*time.Minute)
	ProductCacheSize = getInt("PRODUCT_CACHE_SIZE", 256)

	RateLimitRPS = getFloat("RATE_LIMIT_RPS", 5)
	RateLimitBurst = getInt("RATE_LIMIT_BURST", 10)

	MetricsNamespace = getString("METRICS_NAMESPACE", "store")
	CORSOrigins = splitList(getString("CORS_ORIGINS", "*"))
}

// IsProduction reports whether APP_ENV is set to production.
func IsProduction() bool {
	return strings.EqualFold(Environment, "production")
}

// Validate checks the settings that must hold before the API server starts.
func Validate() error {
	if JWTSecret == AdminJWTSecret {
		return ErrSameSecrets
	}
	if !IsProduction() {
		return nil
	}
	if DevAuthBypass {
		return ErrDevBypassInProduction
	}
	if JWTSecret == defaultJWTSecret || AdminJWTSecret == defaultAdminJWTSecret {
		return ErrDefaultSecret
	}
	if BotToken == "" {
		return ErrMissingBotToken
	}
	return nil
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getFloat(key string, fallback float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return value
}

func getBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list
}
