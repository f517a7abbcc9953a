// Package logger wraps zap with the constructors and HTTP middleware shared by the
// store commands.
package logger

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger embeds *zap.Logger so callers use the zap API directly.
type Logger struct {
	*zap.Logger
}

// fallback is returned together with a configuration error so the caller can still report it.
func fallback() *Logger {
	zl, err := zap.NewProduction()
	if err != nil {
		log.Println(err)
		zl = zap.NewNop()
	}
	return &Logger{Logger: zl}
}

// CreateLogger builds a JSON production logger at the given level ("debug", "info", ...)
// with ISO8601 timestamps under the "time" key.
func CreateLogger(level string) (*Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fallback(), err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = atomicLevel
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return fallback(), err
	}

	return &Logger{Logger: zl}, nil
}

// Nop returns a Logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger tagged with the component name.
func (log *Logger) Named(component string) *Logger {
	return &Logger{Logger: log.Logger.With(zap.String("component", component))}
}

// WithLogging logs one "served" line per request, at error level for 5xx responses.
func (log *Logger) WithLogging() func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.Int("size", ww.BytesWritten()),
				}
				if requestID := middleware.GetReqID(r.Context()); requestID != "" {
					fields = append(fields, zap.String("request_id", requestID))
				}

				if ww.Status() >= http.StatusInternalServerError {
					log.Error("served", fields...)
					return
				}
				log.Info("served", fields...)
			}()
			h.ServeHTTP(ww, r)
		})
	}
}
