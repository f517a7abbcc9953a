// Package service contains HTTP handler implementations for the storefront API endpoints.
// It orchestrates request parsing, calls the underlying business logic in the app package,
// maps domain errors to HTTP statuses, and writes JSON responses.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"miniapp_store/internal/app"
	"miniapp_store/internal/models"
	"miniapp_store/internal/pkg/auth"
	"miniapp_store/internal/pkg/logger"
	"miniapp_store/internal/storage"
)

const (
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

var errInvalidID = errors.New("invalid id")

// handlers aggregates dependencies needed by HTTP handlers,
// including the application business logic and logger.
type handlers struct {
	app *app.App
	log *logger.Logger
}

// newHandlers initializes a new handlers instance with the provided app and logger dependencies.
func newHandlers(app *app.App, l *logger.Logger) *handlers {
	return &handlers{app: app, log: l}
}

func (handlers *handlers) healthHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	if err := handlers.app.Ping(ctx); err != nil {
		handlers.log.Error("health check failed", zap.Error(err))
		writeErrorResponse(res, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(res, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAppError maps an error from the app layer to a status code and writes it.
func (handlers *handlers) writeAppError(res http.ResponseWriter, req *http.Request, err error) {
	switch {
	case isValidationError(err):
		writeErrorResponse(res, strings.TrimPrefix(err.Error(), "app: "), http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		writeErrorResponse(res, "not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrTransactionNotPending):
		writeErrorResponse(res, "transaction is not pending", http.StatusConflict)
	case errors.Is(err, storage.ErrInsufficientFunds):
		writeErrorResponse(res, "insufficient funds", http.StatusConflict)
	default:
		handlers.log.Error("request failed",
			zap.String("method", req.Method),
			zap.String("uri", req.URL.Path),
			zap.Error(err),
		)
		writeErrorResponse(res, "internal server error", http.StatusInternalServerError)
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		app.ErrMissingInitData,
		app.ErrMissingUsernameOrPassword,
		app.ErrInvalidAmount,
		app.ErrInvalidTransactionType,
		app.ErrInvalidTransactionStatus,
		app.ErrInvalidQuantity,
		app.ErrInvalidProduct,
		app.ErrMissingProductID,
		app.ErrEmptyCart,
		app.ErrInvalidSendProduct,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// decodeJSON reads the request body into dst, rejecting unknown fields and trailing data.
func decodeJSON(req *http.Request, dst any) error {
	requestBody, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	decoder := json.NewDecoder(bytes.NewReader(requestBody))
	decoder.DisallowUnknownFields()
	if err = decoder.Decode(dst); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func userIDFromRequest(res http.ResponseWriter, req *http.Request) (int64, bool) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeErrorResponse(res, "unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}

func int64Param(req *http.Request, name string) (int64, error) {
	value, err := strconv.ParseInt(chi.URLParam(req, name), 10, 64)
	if err != nil || value <= 0 {
		return 0, errInvalidID
	}
	return value, nil
}

func uuidParam(req *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(req, name))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}

func writeJSON(res http.ResponseWriter, statusCode int, payload any) {
	result, err := json.Marshal(payload)
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	res.Write(result)
}

func writeErrorResponse(res http.ResponseWriter, errorInfo string, statusCode int) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.ErrorResponse{Errors: errorInfo})
}
