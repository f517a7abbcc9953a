package app

import (
	"context"
	"strings"

	"miniapp_store/internal/models"
)

// ListProducts returns the catalogue, served from the product cache when possible.
func (app *App) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)

	if products, ok, err := app.cache.GetProducts(ctx, filter); err == nil && ok {
		return products, nil
	}

	products, err := app.db.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}

	if err := app.cache.SetProducts(ctx, filter, products); err != nil {
		app.log.Sugar().Warnf("Failed to cache product listing: %s", err)
	}
	return products, nil
}

// GetProduct returns one product.
func (app *App) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	return app.db.GetProduct(ctx, productID)
}

// CreateProduct validates and stores a new product.
func (app *App) CreateProduct(ctx context.Context, req models.ProductRequest) (*models.Product, error) {
	product, err := productFromRequest(req)
	if err != nil {
		return nil, err
	}

	created, err := app.db.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	app.invalidateProducts(ctx)
	return created, nil
}

// UpdateProduct validates and replaces the fields of an existing product.
func (app *App) UpdateProduct(ctx context.Context, productID int64, req models.ProductRequest) (*models.Product, error) {
	product, err := productFromRequest(req)
	if err != nil {
		return nil, err
	}
	product.ID = productID

	updated, err := app.db.UpdateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	app.invalidateProducts(ctx)
	return updated, nil
}

// DeleteProduct removes a product. Cart lines referencing it are removed with it;
// sent product records keep their denormalized name.
func (app *App) DeleteProduct(ctx context.Context, productID int64) error {
	if err := app.db.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	app.invalidateProducts(ctx)
	return nil
}

func (app *App) invalidateProducts(ctx context.Context) {
	if err := app.cache.Invalidate(ctx); err != nil {
		app.log.Sugar().Errorf("Failed to invalidate product cache: %s", err)
	}
}

func productFromRequest(req models.ProductRequest) (*models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || !req.Price.IsPositive() || req.Stock < 0 {
		return nil, ErrInvalidProduct
	}
	if !req.Price.Equal(req.Price.Round(2)) {
		return nil, ErrInvalidProduct
	}

	return &models.Product{
		Name:        name,
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Stock:       req.Stock,
		Featured:    req.Featured,
	}, nil
}
