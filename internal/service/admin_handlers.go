package service

import (
	"context"
	"net/http"

	"miniapp_store/internal/models"
)

func (handlers *handlers) statsHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	stats, err := handlers.app.Stats(ctx)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, stats)
}

func (handlers *handlers) listUsersHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	users, err := handlers.app.ListUsers(ctx)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, users)
}

// reconcileHandler reports whether a user's balance matches their completed transactions.
func (handlers *handlers) reconcileHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, err := int64Param(req, "id")
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	reconciliation, err := handlers.app.Reconcile(ctx, userID)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, reconciliation)
}

// sendProductHandler records credentials delivered to a user.
func (handlers *handlers) sendProductHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var sendRequest models.SendProductRequest
	if err := decodeJSON(req, &sendRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	sent, err := handlers.app.SendProduct(ctx, sendRequest)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusCreated, sent)
}

func (handlers *handlers) myProductsHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFromRequest(res, req)
	if !ok {
		return
	}

	products, err := handlers.app.ListMyProducts(ctx, userID)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, products)
}
