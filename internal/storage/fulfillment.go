package storage

import (
	"context"
	"database/sql"
	"errors"

	"miniapp_store/internal/models"
)

const (
	sentProductColumns = `id, user_id, product_id, product_name, username, password, instructions, is_active, sent_at`

	getProductNameQuery    = `SELECT name FROM store.products WHERE id = $1;`
	createSentProductQuery = `INSERT INTO store.sent_products (user_id, product_id, product_name, username, password, instructions)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING ` + sentProductColumns + `;`
	listSentProductsQuery = `SELECT ` + sentProductColumns + ` FROM store.sent_products WHERE user_id = $1 AND is_active ORDER BY sent_at DESC;`
)

func scanSentProduct(row rowScanner) (*models.SentProduct, error) {
	sent := &models.SentProduct{}
	var productID sql.NullInt64
	err := row.Scan(&sent.ID, &sent.UserID, &productID, &sent.ProductName, &sent.Username, &sent.Password,
		&sent.Instructions, &sent.IsActive, &sent.SentAt)
	if err != nil {
		return nil, err
	}
	if productID.Valid {
		id := productID.Int64
		sent.ProductID = &id
	}
	return sent, nil
}

// CreateSentProduct stores the credentials delivered for a product, copying the product name
// so the record stays readable after the product is deleted.
func (postgresql *PostgreSQL) CreateSentProduct(ctx context.Context, req models.SendProductRequest) (*models.SentProduct, error) {
	tx, err := postgresql.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var productName string
	err = tx.QueryRowContext(ctx, getProductNameQuery, req.ProductID).Scan(&productName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getProductNameQuery: %s", err)
		return nil, err
	}

	row := tx.QueryRowContext(ctx, createSentProductQuery, req.UserID, req.ProductID, productName,
		req.Username, req.Password, req.Instructions)
	sent, err := scanSentProduct(row)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createSentProductQuery: %s", err)
		return nil, translateError(err)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return sent, nil
}

// ListSentProducts returns the active fulfillment records of a user, newest first.
func (postgresql *PostgreSQL) ListSentProducts(ctx context.Context, userID int64) ([]models.SentProduct, error) {
	rows, err := postgresql.db.QueryContext(ctx, listSentProductsQuery, userID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query listSentProductsQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	sentProducts := make([]models.SentProduct, 0)
	for rows.Next() {
		sent, err := scanSentProduct(rows)
		if err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan sent product in ListSentProducts method: %s", err)
			return nil, err
		}
		sentProducts = append(sentProducts, *sent)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in ListSentProducts method: %s", err)
		return sentProducts, err
	}

	return sentProducts, nil
}
