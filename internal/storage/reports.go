package storage

import (
	"context"
	"database/sql"
	"errors"

	"miniapp_store/internal/models"
)

const (
	statsQuery = `SELECT
    (SELECT COUNT(*) FROM store.users),
    (SELECT COUNT(*) FROM store.products),
    (SELECT COUNT(*) FROM store.transactions WHERE status = 'pending'),
    (SELECT COALESCE(SUM(amount), 0) FROM store.transactions WHERE status = 'completed' AND type = 'deposit'),
    (SELECT COALESCE(SUM(amount), 0) FROM store.transactions WHERE status = 'completed' AND type = 'purchase'),
    (SELECT COALESCE(SUM(balance), 0) FROM store.users);`
	reconcileQuery = `SELECT u.balance,
    COALESCE(SUM(t.amount) FILTER (WHERE t.type IN ('deposit', 'refund')), 0),
    COALESCE(SUM(t.amount) FILTER (WHERE t.type IN ('purchase', 'withdrawal')), 0)
FROM store.users u
LEFT JOIN store.transactions t ON t.user_id = u.id AND t.status = 'completed'
WHERE u.id = $1
GROUP BY u.balance;`
)

// GetStats aggregates the admin dashboard counters.
func (postgresql *PostgreSQL) GetStats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{}

	err := postgresql.db.QueryRowContext(ctx, statsQuery).Scan(&stats.Users, &stats.Products, &stats.PendingTransactions,
		&stats.CompletedDeposits, &stats.CompletedPurchases, &stats.TotalBalance)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query statsQuery: %s", err)
		return nil, err
	}

	return stats, nil
}

// Reconcile compares the stored balance of a user with the net of their completed transactions.
func (postgresql *PostgreSQL) Reconcile(ctx context.Context, userID int64) (*models.Reconciliation, error) {
	report := &models.Reconciliation{UserID: userID}

	err := postgresql.db.QueryRowContext(ctx, reconcileQuery, userID).Scan(&report.Balance, &report.Credits, &report.Debits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query reconcileQuery: %s", err)
		return nil, err
	}

	report.Expected = report.Credits.Sub(report.Debits)
	report.Difference = report.Balance.Sub(report.Expected)
	report.Consistent = report.Difference.IsZero()

	return report, nil
}
