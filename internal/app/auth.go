package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"miniapp_store/internal/models"
	"miniapp_store/internal/pkg/auth"
)

// ProcessTelegramAuth verifies initData, creates or refreshes the user and issues a user token.
func (app *App) ProcessTelegramAuth(ctx context.Context, req models.TelegramAuthRequest) (*models.TelegramAuthResponse, error) {
	if req.InitData == "" {
		return nil, ErrMissingInitData
	}

	data, err := app.validator.Validate(req.InitData)
	if err != nil {
		app.metrics.ObserveAuth("telegram", err)
		app.log.Info("init data rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	user, err := app.db.UpsertTelegramUser(ctx, models.TelegramProfile{
		TelegramID: data.User.ID,
		Username:   data.User.Username,
		FirstName:  data.User.FirstName,
		LastName:   data.User.LastName,
		PhotoURL:   data.User.PhotoURL,
	})
	if err != nil {
		return nil, err
	}

	token, err := app.userTokens.GenerateToken(auth.Claims{
		UserID:     user.ID,
		TelegramID: user.TelegramID,
		Username:   user.Username,
		IsAdmin:    user.IsAdmin,
	})
	if err != nil {
		return nil, err
	}

	app.metrics.ObserveAuth("telegram", nil)
	return &models.TelegramAuthResponse{Success: true, Token: token, User: user}, nil
}

// ProcessAdminLogin checks the configured admin credentials and issues an admin token.
func (app *App) ProcessAdminLogin(ctx context.Context, req models.AdminLoginRequest) (*models.AdminLoginResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, ErrMissingUsernameOrPassword
	}

	if err := app.admin.Verify(req.Username, req.Password); err != nil {
		app.metrics.ObserveAuth("admin", err)
		app.log.Warn("admin login rejected", zap.String("username", req.Username))
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	token, err := app.adminTokens.GenerateToken(auth.Claims{Username: app.admin.Username(), IsAdmin: true})
	if err != nil {
		return nil, err
	}

	app.metrics.ObserveAuth("admin", nil)
	return &models.AdminLoginResponse{Success: true, Token: token}, nil
}

// GetMe returns the authenticated user with their current balance.
func (app *App) GetMe(ctx context.Context, userID int64) (*models.User, error) {
	return app.db.GetUser(ctx, userID)
}
