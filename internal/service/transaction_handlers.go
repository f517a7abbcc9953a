package service

import (
	"context"
	"net/http"
	"strconv"

	"miniapp_store/internal/models"
)

func (handlers *handlers) createTransactionHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFromRequest(res, req)
	if !ok {
		return
	}

	var createRequest models.CreateTransactionRequest
	if err := decodeJSON(req, &createRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	transaction, err := handlers.app.CreateTransaction(ctx, userID, createRequest)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusCreated, transaction)
}

func (handlers *handlers) listTransactionsHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFromRequest(res, req)
	if !ok {
		return
	}

	query := req.URL.Query()
	filter := models.TransactionFilter{
		Type:   models.TransactionType(query.Get("type")),
		Status: models.TransactionStatus(query.Get("status")),
	}

	transactions, err := handlers.app.ListTransactions(ctx, userID, filter)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, transactions)
}

// listAllTransactionsHandler lists every transaction. Query parameters: status, type, userId.
func (handlers *handlers) listAllTransactionsHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	query := req.URL.Query()
	filter := models.TransactionFilter{
		Type:   models.TransactionType(query.Get("type")),
		Status: models.TransactionStatus(query.Get("status")),
	}
	if userID := query.Get("userId"); userID != "" {
		value, err := strconv.ParseInt(userID, 10, 64)
		if err != nil || value <= 0 {
			writeErrorResponse(res, "invalid userId", http.StatusBadRequest)
			return
		}
		filter.UserID = value
	}

	transactions, err := handlers.app.ListAllTransactions(ctx, filter)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, transactions)
}

// approveTransactionHandler completes a pending transaction and applies it to the balance.
// A transaction that is no longer pending yields 409.
func (handlers *handlers) approveTransactionHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	transactionID, err := uuidParam(req, "id")
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	decision, err := handlers.app.ApproveTransaction(ctx, transactionID)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, decision)
}

func (handlers *handlers) denyTransactionHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	transactionID, err := uuidParam(req, "id")
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	decision, err := handlers.app.DenyTransaction(ctx, transactionID)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, decision)
}
