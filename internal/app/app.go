// Package app provides the core business logic of the Mini App storefront.
// It verifies Telegram and admin logins, serves the catalogue and carts, records transactions
// and applies admin decisions to them. Persistence is delegated to the storage layer.
package app

import (
	"context"
	"errors"

	"miniapp_store/internal/cache"
	"miniapp_store/internal/pkg/auth"
	"miniapp_store/internal/pkg/initdata"
	"miniapp_store/internal/pkg/logger"
	"miniapp_store/internal/pkg/metrics"
	"miniapp_store/internal/pkg/security"
	"miniapp_store/internal/storage"
)

// Predefined validation errors. Handlers map all of them to 400.
var (
	// ErrMissingInitData indicates an empty initData payload.
	ErrMissingInitData = errors.New("app: missing init data")
	// ErrMissingUsernameOrPassword indicates that either the username or password is not provided.
	ErrMissingUsernameOrPassword = errors.New("app: missing username or password")
	// ErrInvalidAmount indicates a non-positive amount or one with more than two decimal places.
	ErrInvalidAmount = errors.New("app: amount must be positive with at most two decimal places")
	// ErrInvalidTransactionType indicates an unknown transaction type.
	ErrInvalidTransactionType = errors.New("app: invalid transaction type")
	// ErrInvalidTransactionStatus indicates an unknown transaction status in a filter.
	ErrInvalidTransactionStatus = errors.New("app: invalid transaction status")
	// ErrInvalidQuantity indicates a cart quantity below one.
	ErrInvalidQuantity = errors.New("app: quantity must be at least 1")
	// ErrInvalidProduct indicates a product payload with no name, a non-positive price or negative stock.
	ErrInvalidProduct = errors.New("app: product needs a name, a positive price and non-negative stock")
	// ErrMissingProductID indicates a cart request without a product.
	ErrMissingProductID = errors.New("app: missing product id")
	// ErrEmptyCart indicates a checkout of an empty cart.
	ErrEmptyCart = errors.New("app: cart is empty")
	// ErrInvalidSendProduct indicates a delivery without a user, product or credentials.
	ErrInvalidSendProduct = errors.New("app: userId, productId, username and password are required")
)

// Authentication failures. Handlers map them to 401.
var (
	// ErrUnauthorized wraps every rejected login.
	ErrUnauthorized = errors.New("app: unauthorized")
)

// Config carries the collaborators of App other than storage and logging.
type Config struct {
	Validator   *initdata.Validator
	UserTokens  *auth.TokenManager
	AdminTokens *auth.TokenManager
	Admin       *security.AdminCredentials
	Cache       cache.ProductCache
	Metrics     *metrics.Metrics
}

// App encapsulates the application logic and dependencies required to process requests.
type App struct {
	db          storage.Storage
	log         *logger.Logger
	validator   *initdata.Validator
	userTokens  *auth.TokenManager
	adminTokens *auth.TokenManager
	admin       *security.AdminCredentials
	cache       cache.ProductCache
	metrics     *metrics.Metrics
}

// NewApp creates and returns a new instance of App. A nil cache disables caching.
func NewApp(db storage.Storage, log *logger.Logger, cfg Config) *App {
	productCache := cfg.Cache
	if productCache == nil {
		productCache = cache.Noop{}
	}
	return &App{
		db:          db,
		log:         log,
		validator:   cfg.Validator,
		userTokens:  cfg.UserTokens,
		adminTokens: cfg.AdminTokens,
		admin:       cfg.Admin,
		cache:       productCache,
		metrics:     cfg.Metrics,
	}
}

// Ping reports whether the storage layer is reachable.
func (app *App) Ping(ctx context.Context) error {
	return app.db.Ping(ctx)
}
