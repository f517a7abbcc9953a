package service

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"

	"miniapp_store/internal/app"
	"miniapp_store/internal/pkg/auth"
	"miniapp_store/internal/pkg/logger"
	"miniapp_store/internal/pkg/metrics"
	"miniapp_store/internal/pkg/ratelimit"
)

// Config carries the HTTP-level collaborators of Service.
type Config struct {
	UserTokens  *auth.TokenManager
	AdminTokens *auth.TokenManager
	// Limiter throttles the login endpoints. Nil disables rate limiting.
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
	// MetricsHandler is mounted on /metrics when set.
	MetricsHandler http.Handler
	CORSOrigins    []string
}

// Service encapsulates the HTTP server configuration, including the application's business logic,
// HTTP handlers, the server's run address, and a logger for event and error logging.
type Service struct {
	handlers   *handlers
	app        *app.App
	runAddress string
	log        *logger.Logger
	cfg        Config
}

// NewService creates and initializes a new Service instance.
func NewService(app *app.App, runAddress string, l *logger.Logger, cfg Config) *Service {
	handlers := newHandlers(app, l)
	return &Service{handlers: handlers, app: app, runAddress: runAddress, log: l, cfg: cfg}
}

// NewRouter sets up and returns a new chi.Router instance with the necessary middleware and routes.
// User routes require a user token. Admin routes require an admin token or the session of a
// user flagged is_admin. Login routes are rate limited.
func (service *Service) NewRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(service.log.WithLogging())
	router.Use(middleware.Recoverer)
	router.Use(service.cfg.Metrics.WithMetrics())
	router.Use(corsMiddleware(service.cfg.CORSOrigins))

	router.Get("/healthz", service.handlers.healthHandler)
	if service.cfg.MetricsHandler != nil {
		router.Handle("/metrics", service.cfg.MetricsHandler)
	}

	router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if service.cfg.Limiter != nil {
				r.Use(service.cfg.Limiter.Handler)
			}
			r.Post("/auth/verify", service.handlers.telegramAuthHandler)
			r.Post("/admin/login", service.handlers.adminLoginHandler)
		})

		r.Get("/products", service.handlers.listProductsHandler)
		r.Get("/products/{id}", service.handlers.getProductHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.CheckJWTMiddleware(service.cfg.UserTokens))
			r.Get("/me", service.handlers.meHandler)

			r.Get("/cart", service.handlers.getCartHandler)
			r.Post("/cart", service.handlers.addToCartHandler)
			r.Delete("/cart", service.handlers.clearCartHandler)
			r.Post("/cart/checkout", service.handlers.checkoutHandler)
			r.Put("/cart/{id}", service.handlers.updateCartItemHandler)
			r.Delete("/cart/{id}", service.handlers.deleteCartItemHandler)

			r.Get("/transactions", service.handlers.listTransactionsHandler)
			r.Post("/transactions", service.handlers.createTransactionHandler)

			r.Get("/my-products", service.handlers.myProductsHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.CheckAdminMiddleware(service.cfg.AdminTokens, service.cfg.UserTokens))
			r.Get("/stats", service.handlers.statsHandler)
			r.Get("/users", service.handlers.listUsersHandler)
			r.Get("/users/{id}/reconcile", service.handlers.reconcileHandler)

			r.Get("/transactions", service.handlers.listAllTransactionsHandler)
			r.Post("/transactions/{id}/approve", service.handlers.approveTransactionHandler)
			r.Post("/transactions/{id}/deny", service.handlers.denyTransactionHandler)

			r.Get("/products", service.handlers.listProductsHandler)
			r.Post("/products", service.handlers.createProductHandler)
			r.Put("/products/{id}", service.handlers.updateProductHandler)
			r.Delete("/products/{id}", service.handlers.deleteProductHandler)

			r.Post("/send-product", service.handlers.sendProductHandler)
		})
	})

	return router
}

// corsMiddleware allows the Mini App origin to call the API from the Telegram webview.
func corsMiddleware(origins []string) func(next http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := allowed[origin]; ok || allowAll {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
					w.Header().Set("Access-Control-Max-Age", "3600")
					w.Header().Add("Vary", "Origin")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
