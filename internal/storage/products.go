package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"miniapp_store/internal/models"
)

const (
	productColumns = `id, name, description, category, image_url, price, stock, featured, created_at, updated_at`

	getProductQuery    = `SELECT ` + productColumns + ` FROM store.products WHERE id = $1;`
	createProductQuery = `INSERT INTO store.products (name, description, category, image_url, price, stock, featured)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING ` + productColumns + `;`
	updateProductQuery = `UPDATE store.products SET name = $2, description = $3, category = $4, image_url = $5,
    price = $6, stock = $7, featured = $8, updated_at = NOW()
WHERE id = $1 RETURNING ` + productColumns + `;`
	deleteProductQuery = `DELETE FROM store.products WHERE id = $1;`
)

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(&product.ID, &product.Name, &product.Description, &product.Category, &product.ImageURL,
		&product.Price, &product.Stock, &product.Featured, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// buildListProductsQuery renders the catalogue query for the given filter.
func buildListProductsQuery(filter models.ProductFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Featured != nil {
		args = append(args, *filter.Featured)
		conditions = append(conditions, fmt.Sprintf("featured = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + productColumns + ` FROM store.products`)
	if len(conditions) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(conditions, " AND "))
	}
	query.WriteString(" ORDER BY featured DESC, created_at DESC;")

	return query.String(), args
}

// ListProducts returns the catalogue, featured products first.
func (postgresql *PostgreSQL) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query, args := buildListProductsQuery(filter)

	rows, err := postgresql.db.QueryContext(ctx, query, args...)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query listProductsQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	const initialCatalogueCapacity = 20
	products := make([]models.Product, 0, initialCatalogueCapacity)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan product in ListProducts method: %s", err)
			return nil, err
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in ListProducts method: %s", err)
		return products, err
	}

	return products, nil
}

// GetProduct returns a single product.
func (postgresql *PostgreSQL) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	product, err := scanProduct(postgresql.db.QueryRowContext(ctx, getProductQuery, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getProductQuery: %s", err)
		return nil, err
	}

	return product, nil
}

// CreateProduct inserts a product and returns the stored row.
func (postgresql *PostgreSQL) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	row := postgresql.db.QueryRowContext(ctx, createProductQuery, product.Name, product.Description, product.Category,
		product.ImageURL, product.Price, product.Stock, product.Featured)

	created, err := scanProduct(row)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createProductQuery: %s", err)
		return nil, err
	}

	return created, nil
}

// UpdateProduct overwrites every editable field of an existing product.
func (postgresql *PostgreSQL) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	row := postgresql.db.QueryRowContext(ctx, updateProductQuery, product.ID, product.Name, product.Description,
		product.Category, product.ImageURL, product.Price, product.Stock, product.Featured)

	updated, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query updateProductQuery: %s", err)
		return nil, err
	}

	return updated, nil
}

// DeleteProduct removes a product. Cart lines referencing it are removed with it, while
// sent product records keep their denormalized name and lose only the reference.
func (postgresql *PostgreSQL) DeleteProduct(ctx context.Context, productID int64) error {
	result, err := postgresql.db.ExecContext(ctx, deleteProductQuery, productID)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query deleteProductQuery: %s", err)
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute RowsAffected in deleteProductQuery: %s", err)
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
