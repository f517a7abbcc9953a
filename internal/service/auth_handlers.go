package service

import (
	"context"
	"errors"
	"net/http"

	"miniapp_store/internal/app"
	"miniapp_store/internal/models"
)

// telegramAuthHandler verifies the Mini App initData and returns a user session token.
// Every verification failure is answered with the same 401.
func (handlers *handlers) telegramAuthHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var authRequest models.TelegramAuthRequest
	if err := decodeJSON(req, &authRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	authResponse, err := handlers.app.ProcessTelegramAuth(ctx, authRequest)
	if err != nil {
		if errors.Is(err, app.ErrUnauthorized) {
			writeErrorResponse(res, "invalid init data", http.StatusUnauthorized)
			return
		}
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, authResponse)
}

// adminLoginHandler checks the admin credentials and returns an admin session token.
func (handlers *handlers) adminLoginHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var loginRequest models.AdminLoginRequest
	if err := decodeJSON(req, &loginRequest); err != nil {
		writeErrorResponse(res, err.Error(), http.StatusBadRequest)
		return
	}

	loginResponse, err := handlers.app.ProcessAdminLogin(ctx, loginRequest)
	if err != nil {
		if errors.Is(err, app.ErrUnauthorized) {
			writeErrorResponse(res, "invalid credentials", http.StatusUnauthorized)
			return
		}
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, loginResponse)
}

// meHandler returns the authenticated user and their balance.
func (handlers *handlers) meHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFromRequest(res, req)
	if !ok {
		return
	}

	user, err := handlers.app.GetMe(ctx, userID)
	if err != nil {
		handlers.writeAppError(res, req, err)
		return
	}

	writeJSON(res, http.StatusOK, user)
}
