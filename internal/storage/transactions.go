package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"miniapp_store/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	transactionColumns = `id, user_id, type, amount, status, metadata, created_at, updated_at, processed_at`

	createTransactionQuery = `INSERT INTO store.transactions (id, user_id, type, amount, status, metadata)
VALUES ($1, $2, $3, $4, 'pending', $5) RETURNING ` + transactionColumns + `;`
	getTransactionQuery      = `SELECT ` + transactionColumns + ` FROM store.transactions WHERE id = $1;`
	transactionStatusQuery   = `SELECT status FROM store.transactions WHERE id = $1;`
	completeTransactionQuery = `UPDATE store.transactions SET status = 'completed', updated_at = NOW(), processed_at = NOW()
WHERE id = $1 AND status = 'pending' RETURNING ` + transactionColumns + `;`
	failTransactionQuery = `UPDATE store.transactions SET status = 'failed', updated_at = NOW(), processed_at = NOW()
WHERE id = $1 AND status = 'pending' RETURNING ` + transactionColumns + `;`
	adjustBalanceQuery = `UPDATE store.users SET balance = balance + $1, updated_at = NOW() WHERE id = $2 RETURNING balance;`
)

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	transaction := &models.Transaction{}
	var (
		metadata  []byte
		processed sql.NullTime
	)
	err := row.Scan(&transaction.ID, &transaction.UserID, &transaction.Type, &transaction.Amount, &transaction.Status,
		&metadata, &transaction.CreatedAt, &transaction.UpdatedAt, &processed)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &transaction.Metadata); err != nil {
			return nil, fmt.Errorf("decode transaction metadata: %w", err)
		}
	}
	transaction.ProcessedAt = nullTimePtr(processed)

	return transaction, nil
}

// CreateTransaction records a new transaction. The row is always inserted as pending and the
// owner's balance is not touched.
func (postgresql *PostgreSQL) CreateTransaction(ctx context.Context, transaction *models.Transaction) (*models.Transaction, error) {
	return postgresql.insertTransaction(ctx, postgresql.db, transaction)
}

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (postgresql *PostgreSQL) insertTransaction(ctx context.Context, q queryRower, transaction *models.Transaction) (*models.Transaction, error) {
	if transaction.ID == uuid.Nil {
		transaction.ID = uuid.New()
	}

	metadata, err := json.Marshal(transaction.Metadata)
	if err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, createTransactionQuery, transaction.ID, transaction.UserID,
		string(transaction.Type), transaction.Amount, string(metadata))

	created, err := scanTransaction(row)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createTransactionQuery: %s", err)
		return nil, translateError(err)
	}

	return created, nil
}

// GetTransaction returns a single transaction.
func (postgresql *PostgreSQL) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	transaction, err := scanTransaction(postgresql.db.QueryRowContext(ctx, getTransactionQuery, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getTransactionQuery: %s", err)
		return nil, err
	}

	return transaction, nil
}

func buildListTransactionsQuery(filter models.TransactionFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + transactionColumns + ` FROM store.transactions`)
	if len(conditions) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(conditions, " AND "))
	}
	query.WriteString(" ORDER BY created_at DESC;")

	return query.String(), args
}

// ListTransactions returns transactions matching filter, newest first.
func (postgresql *PostgreSQL) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	query, args := buildListTransactionsQuery(filter)

	rows, err := postgresql.db.QueryContext(ctx, query, args...)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query listTransactionsQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	const transactionCapacity = 10
	transactions := make([]models.Transaction, 0, transactionCapacity)
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan transaction in ListTransactions method: %s", err)
			return nil, err
		}
		transactions = append(transactions, *transaction)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in ListTransactions method: %s", err)
		return transactions, err
	}

	return transactions, nil
}

// ApproveTransaction moves a pending transaction to completed and applies its balance effect
// in one database transaction. The status update only matches pending rows, so a second
// approval (concurrent or later) finds nothing to update and the balance is changed once.
func (postgresql *PostgreSQL) ApproveTransaction(ctx context.Context, transactionID uuid.UUID) (*models.TransactionDecision, error) {
	tx, err := postgresql.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	transaction, err := postgresql.decideTransaction(ctx, tx, completeTransactionQuery, transactionID)
	if err != nil {
		return nil, err
	}

	delta := transaction.Amount
	if !transaction.Type.Credits() {
		delta = delta.Neg()
	}

	balance, err := postgresql.AdjustBalance(ctx, tx, transaction.UserID, delta)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &models.TransactionDecision{Transaction: transaction, Balance: &balance}, nil
}

// DenyTransaction moves a pending transaction to failed. The balance is not touched.
func (postgresql *PostgreSQL) DenyTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	tx, err := postgresql.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	transaction, err := postgresql.decideTransaction(ctx, tx, failTransactionQuery, transactionID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return transaction, nil
}

// decideTransaction runs a pending-only status update and explains an empty result.
func (postgresql *PostgreSQL) decideTransaction(ctx context.Context, tx *sql.Tx, query string, transactionID uuid.UUID) (*models.Transaction, error) {
	transaction, err := scanTransaction(tx.QueryRowContext(ctx, query, transactionID))
	if err == nil {
		return transaction, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		postgresql.log.Sugar().Errorf("Failed to execute a transaction status update: %s", err)
		return nil, err
	}

	var status string
	err = tx.QueryRowContext(ctx, transactionStatusQuery, transactionID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query transactionStatusQuery: %s", err)
		return nil, err
	}

	return nil, ErrTransactionNotPending
}

// AdjustBalance adds delta to the user's balance with a single atomic UPDATE and returns the new balance.
func (postgresql *PostgreSQL) AdjustBalance(ctx context.Context, tx *sql.Tx, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, adjustBalanceQuery, delta, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return balance, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query adjustBalanceQuery: %s", err)
		return balance, translateError(err)
	}

	return balance, nil
}
