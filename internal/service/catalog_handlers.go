package service

import (
	"context"
	"net/http"
	"strconv"

	"miniapp_store/internal/models"
)

// listProductsHandler lists the catalogue. Query parameters: category, featured, search.
func (handlers *handlers) listProductsHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	query := req.URL.Query()
	filter := models.ProductFilter{
		Category: query.Get("category"),
		Search:   query.Get("search"),
	}
	if featured := query.Get("featured"); featured != "" {
		value, err := strconv.ParseBool(featured)
		if err != nil {
			writeErrorResponse(res, "invalid featured flag", http.StatusBadRequest)
			return
		}
		filter.Featured = &value
	}

	products, err := handlers.app.ListProducts(ctx, filter)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, products)
}

func (handlers *handlers) getProductHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	productID, err := int64Param(req, "id")
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	product, err := handlers.app.GetProduct(ctx, productID)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, product)
}

func (handlers *handlers) createProductHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var productRequest models.ProductRequest
	if err := decodeJSON(req, &productRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	product, err := handlers.app.CreateProduct(ctx, productRequest)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusCreated, product)
}

func (handlers *handlers) updateProductHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	productID, err := int64Param(req, "id")
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	var productRequest models.ProductRequest
	if err = decodeJSON(req, &productRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	product, err := handlers.app.UpdateProduct(ctx, productID, productRequest)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, product)
}

func (handlers *handlers) deleteProductHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	productID, err := int64Param(req, "id")
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	if err = handlers.app.DeleteProduct(ctx, productID); err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	res.WriteHeader(http.StatusNoContent)
}
