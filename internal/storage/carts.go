package storage

import (
	"context"
	"database/sql"
	"errors"

	"miniapp_store/internal/models"
)

const (
	cartColumns = `id, user_id, product_id, quantity, created_at, updated_at`

	addToCartQuery = `INSERT INTO store.carts (user_id, product_id, quantity) VALUES ($1, $2, $3)
ON CONFLICT (user_id, product_id) DO UPDATE SET
    quantity = store.carts.quantity + EXCLUDED.quantity,
    updated_at = NOW()
RETURNING ` + cartColumns + `;`
	cartLinesQuery = `SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at, c.updated_at,
    p.id, p.name, p.description, p.category, p.image_url, p.price, p.stock, p.featured, p.created_at, p.updated_at
FROM store.carts c JOIN store.products p ON p.id = c.product_id
WHERE c.user_id = $1 ORDER BY c.created_at`
	listCartQuery             = cartLinesQuery + `;`
	lockCartQuery             = cartLinesQuery + ` FOR UPDATE OF c;`
	deleteCheckedOutItemQuery = `DELETE FROM store.carts WHERE id = $1;`
	updateCartItemQuery       = `UPDATE store.carts SET quantity = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2 RETURNING ` + cartColumns + `;`
	deleteCartItemQuery       = `DELETE FROM store.carts WHERE id = $1 AND user_id = $2;`
	clearCartQuery            = `DELETE FROM store.carts WHERE user_id = $1;`
)

func scanCartItem(row rowScanner) (*models.CartItem, error) {
	item := &models.CartItem{}
	err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// AddToCart adds quantity units of a product to the user's cart. A repeated add increments
// the existing line in the same statement, so concurrent adds never lose an update.
func (postgresql *PostgreSQL) AddToCart(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	item, err := scanCartItem(postgresql.db.QueryRowContext(ctx, addToCartQuery, userID, productID, quantity))
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query addToCartQuery: %s", err)
		return nil, translateError(err)
	}

	return item, nil
}

// ListCart returns the user's cart lines together with the current product data.
func (postgresql *PostgreSQL) ListCart(ctx context.Context, userID int64) ([]models.CartItem, error) {
	rows, err := postgresql.db.QueryContext(ctx, listCartQuery, userID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query listCartQuery: %s", err)
		return nil, err
	}

	return postgresql.scanCartLines(rows, "ListCart")
}

// scanCartLines reads joined cart rows and closes them.
func (postgresql *PostgreSQL) scanCartLines(rows *sql.Rows, method string) ([]models.CartItem, error) {
	defer rows.Close()

	items := make([]models.CartItem, 0)
	for rows.Next() {
		item := models.CartItem{Product: &models.Product{}}
		product := item.Product
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
			&product.ID, &product.Name, &product.Description, &product.Category, &product.ImageURL,
			&product.Price, &product.Stock, &product.Featured, &product.CreatedAt, &product.UpdatedAt); err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan cart item in %s method: %s", method, err)
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in %s method: %s", method, err)
		return items, err
	}

	return items, nil
}

// PurchaseBuilder turns the locked cart lines of a checkout into the purchase to record.
// An error aborts the checkout and is returned unchanged.
type PurchaseBuilder func(items []models.CartItem) (*models.Transaction, error)

// CheckoutCart locks the user's cart lines, records the purchase built from them and deletes
// exactly those lines in one database transaction. Either both happen or neither does.
func (postgresql *PostgreSQL) CheckoutCart(ctx context.Context, userID int64, purchase PurchaseBuilder) (*models.Transaction, error) {
	tx, err := postgresql.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, lockCartQuery, userID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query lockCartQuery: %s", err)
		return nil, err
	}
	items, err := postgresql.scanCartLines(rows, "CheckoutCart")
	if err != nil {
		return nil, err
	}

	transaction, err := purchase(items)
	if err != nil {
		return nil, err
	}

	created, err := postgresql.insertTransaction(ctx, tx, transaction)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if _, err := tx.ExecContext(ctx, deleteCheckedOutItemQuery, item.ID); err != nil {
			postgresql.log.Sugar().Errorf("Failed to execute a query deleteCheckedOutItemQuery: %s", err)
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateCartItem sets the quantity of one of the user's cart lines.
func (postgresql *PostgreSQL) UpdateCartItem(ctx context.Context, userID, itemID int64, quantity int) (*models.CartItem, error) {
	item, err := scanCartItem(postgresql.db.QueryRowContext(ctx, updateCartItemQuery, itemID, userID, quantity))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query updateCartItemQuery: %s", err)
		return nil, err
	}

	return item, nil
}

// DeleteCartItem removes one of the user's cart lines.
func (postgresql *PostgreSQL) DeleteCartItem(ctx context.Context, userID, itemID int64) error {
	result, err := postgresql.db.ExecContext(ctx, deleteCartItemQuery, itemID, userID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query deleteCartItemQuery: %s", err)
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute RowsAffected in deleteCartItemQuery: %s", err)
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ClearCart removes every line of the user's cart.
func (postgresql *PostgreSQL) ClearCart(ctx context.Context, userID int64) error {
	if _, err := postgresql.db.ExecContext(ctx, clearCartQuery, userID); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query clearCartQuery: %s", err)
		return err
	}

	return nil
}
