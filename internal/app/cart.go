package app

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"miniapp_store/internal/models"
)

// GetCart returns the user's cart lines with their products and the cart total.
func (app *App) GetCart(ctx context.Context, userID int64) (*models.CartResponse, error) {
	items, err := app.db.ListCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return &models.CartResponse{Items: items, Total: cartTotal(items)}, nil
}

// AddToCart adds units of a product to the cart. Adding a product already in the cart
// increases the quantity of the existing line. Quantity defaults to 1.
func (app *App) AddToCart(ctx context.Context, userID int64, req models.AddToCartRequest) (*models.CartItem, error) {
	if req.ProductID <= 0 {
		return nil, ErrMissingProductID
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	return app.db.AddToCart(ctx, userID, req.ProductID, req.Quantity)
}

// UpdateCartItem sets the quantity of one of the user's cart lines.
func (app *App) UpdateCartItem(ctx context.Context, userID, itemID int64, req models.UpdateCartRequest) (*models.CartItem, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	return app.db.UpdateCartItem(ctx, userID, itemID, req.Quantity)
}

// DeleteCartItem removes one of the user's cart lines.
func (app *App) DeleteCartItem(ctx context.Context, userID, itemID int64) error {
	return app.db.DeleteCartItem(ctx, userID, itemID)
}

// ClearCart removes every line of the user's cart.
func (app *App) ClearCart(ctx context.Context, userID int64) error {
	return app.db.ClearCart(ctx, userID)
}

// Checkout turns the cart into a pending purchase for its total and empties the cart in the
// same database transaction. The balance is only debited once an admin approves the purchase.
func (app *App) Checkout(ctx context.Context, userID int64) (*models.Transaction, error) {
	transaction, err := app.db.CheckoutCart(ctx, userID, func(items []models.CartItem) (*models.Transaction, error) {
		if len(items) == 0 {
			return nil, ErrEmptyCart
		}

		lines := make([]models.OrderLine, 0, len(items))
		for _, item := range items {
			line := models.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity}
			if item.Product != nil {
				line.Name = item.Product.Name
				line.Price = item.Product.Price
			}
			lines = append(lines, line)
		}

		return &models.Transaction{
			UserID:   userID,
			Type:     models.TransactionPurchase,
			Amount:   cartTotal(items),
			Status:   models.StatusPending,
			Metadata: models.TransactionMetadata{PaymentMethod: "balance", Items: lines},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	app.metrics.ObserveTransactionCreated(string(models.TransactionPurchase))
	app.log.Info("cart checked out",
		zap.Int64("user_id", userID),
		zap.String("transaction_id", transaction.ID.String()),
	)
	return transaction, nil
}

func cartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
