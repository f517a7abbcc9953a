package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"miniapp_store/internal/models"
)

// SendProduct records credentials delivered to a user for a product.
func (app *App) SendProduct(ctx context.Context, req models.SendProductRequest) (*models.SentProduct, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.UserID <= 0 || req.ProductID <= 0 || req.Username == "" || req.Password == "" {
		return nil, ErrInvalidSendProduct
	}

	sent, err := app.db.CreateSentProduct(ctx, req)
	if err != nil {
		return nil, err
	}

	app.metrics.ObserveProductSent()
	app.log.Info("product sent",
		zap.Int64("sent_product_id", sent.ID),
		zap.Int64("user_id", sent.UserID),
		zap.String("product", sent.ProductName),
	)
	return sent, nil
}

// ListMyProducts returns the active products delivered to the user.
func (app *App) ListMyProducts(ctx context.Context, userID int64) ([]models.SentProduct, error) {
	products, err := app.db.ListSentProducts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.SentProduct{}
	}
	return products, nil
}

// ListUsers returns every user. Admin only.
func (app *App) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := app.db.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Stats returns the admin dashboard summary.
func (app *App) Stats(ctx context.Context) (*models.Stats, error) {
	return app.db.GetStats(ctx)
}

// Reconcile compares a user's balance with the net of their completed transactions.
// An inconsistency is logged at error level.
func (app *App) Reconcile(ctx context.Context, userID int64) (*models.Reconciliation, error) {
	reconciliation, err := app.db.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !reconciliation.Consistent {
		app.log.Error("balance does not match ledger",
			zap.Int64("user_id", userID),
			zap.String("balance", reconciliation.Balance.String()),
			zap.String("expected", reconciliation.Expected.String()),
		)
	}
	return reconciliation, nil
}
