package storage

import (
	"context"
	"database/sql"
	"errors"

	"miniapp_store/internal/models"
)

const (
	userColumns = `id, telegram_id, username, first_name, last_name, photo_url, is_admin, balance, login_count, last_login_at, created_at, updated_at`

	upsertTelegramUserQuery = `INSERT INTO store.users (telegram_id, username, first_name, last_name, photo_url, login_count, last_login_at)
VALUES ($1, $2, $3, $4, $5, 1, NOW())
ON CONFLICT (telegram_id) DO UPDATE SET
    username = EXCLUDED.username,
    first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    photo_url = EXCLUDED.photo_url,
    login_count = store.users.login_count + 1,
    last_login_at = NOW(),
    updated_at = NOW()
RETURNING ` + userColumns + `;`
	getUserQuery   = `SELECT ` + userColumns + ` FROM store.users WHERE id = $1;`
	listUsersQuery = `SELECT ` + userColumns + ` FROM store.users ORDER BY created_at DESC;`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var lastLogin sql.NullTime
	err := row.Scan(&user.ID, &user.TelegramID, &user.Username, &user.FirstName, &user.LastName, &user.PhotoURL,
		&user.IsAdmin, &user.Balance, &user.LoginCount, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.LastLoginAt = nullTimePtr(lastLogin)
	return user, nil
}

// UpsertTelegramUser creates the user on first login or refreshes the profile fields on later ones.
// The login counter is incremented inside the same statement.
func (postgresql *PostgreSQL) UpsertTelegramUser(ctx context.Context, profile models.TelegramProfile) (*models.User, error) {
	row := postgresql.db.QueryRowContext(ctx, upsertTelegramUserQuery,
		profile.TelegramID, profile.Username, profile.FirstName, profile.LastName, profile.PhotoURL)

	user, err := scanUser(row)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query upsertTelegramUserQuery: %s", err)
		return nil, err
	}

	return user, nil
}

// GetUser returns the user with the given ID.
func (postgresql *PostgreSQL) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := scanUser(postgresql.db.QueryRowContext(ctx, getUserQuery, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getUserQuery: %s", err)
		return nil, err
	}

	return user, nil
}

// ListUsers returns every user, newest first.
func (postgresql *PostgreSQL) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := postgresql.db.QueryContext(ctx, listUsersQuery)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query listUsersQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan user in ListUsers method: %s", err)
			return nil, err
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in ListUsers method: %s", err)
		return users, err
	}

	return users, nil
}
