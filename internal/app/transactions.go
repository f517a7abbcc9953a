package app

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"miniapp_store/internal/models"
)

// CreateTransaction records a pending transaction for the user. The balance is not touched
// until an admin approves it.
func (app *App) CreateTransaction(ctx context.Context, userID int64, req models.CreateTransactionRequest) (*models.Transaction, error) {
	if !req.Type.Valid() {
		return nil, ErrInvalidTransactionType
	}
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, ErrInvalidAmount
	}

	transaction, err := app.db.CreateTransaction(ctx, &models.Transaction{
		UserID:   userID,
		Type:     req.Type,
		Amount:   req.Amount,
		Status:   models.StatusPending,
		Metadata: req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	app.metrics.ObserveTransactionCreated(string(req.Type))
	app.log.Info("transaction created",
		zap.String("transaction_id", transaction.ID.String()),
		zap.Int64("user_id", userID),
		zap.String("type", string(req.Type)),
		zap.String("amount", req.Amount.String()),
	)
	return transaction, nil
}

// ListTransactions returns the user's own transactions, newest first.
func (app *App) ListTransactions(ctx context.Context, userID int64, filter models.TransactionFilter) ([]models.Transaction, error) {
	filter.UserID = userID
	return app.listTransactions(ctx, filter)
}

// ListAllTransactions returns every transaction matching filter. Admin only.
func (app *App) ListAllTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	return app.listTransactions(ctx, filter)
}

func (app *App) listTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, ErrInvalidTransactionType
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidTransactionStatus
	}

	transactions, err := app.db.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	return transactions, nil
}

// ApproveTransaction completes a pending transaction and applies its amount to the owner's
// balance in one step. A transaction that is no longer pending is rejected and nothing changes.
func (app *App) ApproveTransaction(ctx context.Context, transactionID uuid.UUID) (*models.TransactionDecision, error) {
	decision, err := app.db.ApproveTransaction(ctx, transactionID)
	app.metrics.ObserveDecision("approve", err)
	if err != nil {
		app.log.Info("transaction not approved", zap.String("transaction_id", transactionID.String()), zap.Error(err))
		return nil, err
	}

	fields := []zap.Field{
		zap.String("transaction_id", transactionID.String()),
		zap.Int64("user_id", decision.Transaction.UserID),
		zap.String("type", string(decision.Transaction.Type)),
		zap.String("amount", decision.Transaction.Amount.String()),
	}
	if decision.Balance != nil {
		fields = append(fields, zap.String("balance", decision.Balance.String()))
	}
	app.log.Info("transaction approved", fields...)
	return decision, nil
}

// DenyTransaction marks a pending transaction as failed without touching the balance.
func (app *App) DenyTransaction(ctx context.Context, transactionID uuid.UUID) (*models.TransactionDecision, error) {
	transaction, err := app.db.DenyTransaction(ctx, transactionID)
	app.metrics.ObserveDecision("deny", err)
	if err != nil {
		return nil, err
	}

	app.log.Info("transaction denied",
		zap.String("transaction_id", transactionID.String()),
		zap.Int64("user_id", transaction.UserID),
	)
	return &models.TransactionDecision{Transaction: transaction}, nil
}
