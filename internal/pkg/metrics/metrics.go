// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequests         *prometheus.CounterVec
	HTTPLatency          *prometheus.HistogramVec
	AuthAttempts         *prometheus.CounterVec
	TransactionsCreated  *prometheus.CounterVec
	TransactionDecisions *prometheus.CounterVec
	ProductsSent         prometheus.Counter
	BotCommands          *prometheus.CounterVec
}

// New builds the collectors under namespace and registers them with reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Login attempts by kind (telegram, admin) and result.",
		}, []string{"kind", "result"}),
		TransactionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_created_total",
			Help:      "Pending transactions created by type.",
		}, []string{"type"}),
		TransactionDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_decisions_total",
			Help:      "Admin decisions on transactions by decision and result.",
		}, []string{"decision", "result"}),
		ProductsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_sent_total",
			Help:      "Digital products delivered to users.",
		}),
		BotCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_commands_total",
			Help:      "Bot commands handled by command.",
		}, []string{"command"}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPLatency,
		m.AuthAttempts,
		m.TransactionsCreated,
		m.TransactionDecisions,
		m.ProductsSent,
		m.BotCommands,
	)
	return m
}

// ObserveAuth counts a login attempt.
func (m *Metrics) ObserveAuth(kind string, err error) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(kind, result(err)).Inc()
}

// ObserveTransactionCreated counts a new pending transaction.
func (m *Metrics) ObserveTransactionCreated(txType string) {
	if m == nil {
		return
	}
	m.TransactionsCreated.WithLabelValues(txType).Inc()
}

// ObserveDecision counts an approve or deny call.
func (m *Metrics) ObserveDecision(decision string, err error) {
	if m == nil {
		return
	}
	m.TransactionDecisions.WithLabelValues(decision, result(err)).Inc()
}

// ObserveProductSent counts a delivered product.
func (m *Metrics) ObserveProductSent() {
	if m == nil {
		return
	}
	m.ProductsSent.Inc()
}

// ObserveBotCommand counts a handled bot command.
func (m *Metrics) ObserveBotCommand(command string) {
	if m == nil {
		return
	}
	m.BotCommands.WithLabelValues(command).Inc()
}

// WithMetrics returns HTTP middleware recording request counts and latency per chi route pattern.
func (m *Metrics) WithMetrics() func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		if m == nil {
			return h
		}
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			h.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			m.HTTPLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}
		return http.HandlerFunc(fn)
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
