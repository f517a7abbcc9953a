package service

import (
	"context"
	"net/http"

	"miniapp_store/internal/models"
)

func (handlers *handlers) getCartHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFromRequest(res, req)
	if !ok {
		return
	}

	cart, err := handlers.app.GetCart(ctx, userID)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, cart)
}

// addToCartHandler adds a product to the cart, merging with an existing line for the same product.
func (handlers *handlers) addToCartHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFromRequest(res, req)
	if !ok {
		return
	}

	var addRequest models.AddToCartRequest
	if err := decodeJSON(req, &addRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := handlers.app.AddToCart(ctx, userID, addRequest)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, item)
}

func (handlers *handlers) updateCartItemHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFromRequest(res, req)
	if !ok {
		return
	}

	itemID, err := int64Param(req, "id")
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	var updateRequest models.UpdateCartRequest
	if err = decodeJSON(req, &updateRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := handlers.app.UpdateCartItem(ctx, userID, itemID, updateRequest)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, item)
}

func (handlers *handlers) deleteCartItemHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFromRequest(res, req)
	if !ok {
		return
	}

	itemID, err := int64Param(req, "id")
	if err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	if err = handlers.app.DeleteCartItem(ctx, userID, itemID); err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	res.WriteHeader(http.StatusNoContent)
}

func (handlers *handlers) clearCartHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFromRequest(res, req)
	if !ok {
		return
	}

	if err := handlers.app.ClearCart(ctx, userID); err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	res.WriteHeader(http.StatusNoContent)
}

// checkoutHandler converts the cart into a pending purchase.
func (handlers *handlers) checkoutHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFromRequest(res, req)
	if !ok {
		return
	}

	transaction, err := handlers.app.Checkout(ctx, userID)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusCreated, transaction)
}
