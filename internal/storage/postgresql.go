// Package storage provides primitives for connecting to and interacting with data storage systems.
// It defines the Storage interface along with a PostgreSQL implementation that manages Telegram users,
// the product catalogue, carts, the transaction ledger with its balance effects, and fulfillment records.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"miniapp_store/internal/models"
	"miniapp_store/internal/pkg/logger"

	"github.com/google/uuid"
	legacypgconn "github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Domain errors produced by the storage layer.
var (
	// ErrNotFound indicates that the requested row does not exist or is not visible to the caller.
	ErrNotFound = errors.New("storage: not found")
	// ErrTransactionNotPending indicates an approve or deny on a transaction that was already decided.
	ErrTransactionNotPending = errors.New("storage: transaction is not pending")
	// ErrInsufficientFunds indicates that a debit would make the balance negative.
	ErrInsufficientFunds = errors.New("storage: insufficient funds")
)

const balanceConstraint = "users_balance_check"

//go:generate mockgen -destination=mocks/mock_storage.go -package=mocks miniapp_store/internal/storage Storage

// Storage defines the methods required for data storage operations.
type Storage interface {
	// Close closes the database connection.
	Close()
	Ping(ctx context.Context) error

	// Identity and session methods.
	UpsertTelegramUser(ctx context.Context, profile models.TelegramProfile) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	// Catalogue methods.
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	DeleteProduct(ctx context.Context, productID int64) error

	// Cart methods.
	ListCart(ctx context.Context, userID int64) ([]models.CartItem, error)
	AddToCart(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error)
	UpdateCartItem(ctx context.Context, userID, itemID int64, quantity int) (*models.CartItem, error)
	DeleteCartItem(ctx context.Context, userID, itemID int64) error
	ClearCart(ctx context.Context, userID int64) error
	CheckoutCart(ctx context.Context, userID int64, purchase PurchaseBuilder) (*models.Transaction, error)

	// Transaction ledger methods.
	CreateTransaction(ctx context.Context, transaction *models.Transaction) (*models.Transaction, error)
	GetTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
	ApproveTransaction(ctx context.Context, transactionID uuid.UUID) (*models.TransactionDecision, error)
	DenyTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)

	// Fulfillment methods.
	CreateSentProduct(ctx context.Context, req models.SendProductRequest) (*models.SentProduct, error)
	ListSentProducts(ctx context.Context, userID int64) ([]models.SentProduct, error)

	// Admin reporting methods.
	GetStats(ctx context.Context) (*models.Stats, error)
	Reconcile(ctx context.Context, userID int64) (*models.Reconciliation, error)
}

// PostgreSQL implements the Storage interface using a PostgreSQL database.
type PostgreSQL struct {
	db  *sql.DB        // Connection to the database.
	log *logger.Logger // Logger for recording events and errors.
}

// NewPostgreSQL creates a new PostgreSQL instance with the provided connection string and logger.
// It opens the connection and pings the database to ensure connectivity.
func NewPostgreSQL(configDBString string, l *logger.Logger) (*PostgreSQL, error) {
	db, err := sql.Open("pgx", configDBString)
	if err != nil {
		l.Sugar().Errorf("Failed to open a database: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	const defaultTimeout = 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		l.Sugar().Errorf("Database ping failed: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	return &PostgreSQL{db: db, log: l}, nil
}

// NewWithDB wraps an already opened database handle.
func NewWithDB(db *sql.DB, l *logger.Logger) *PostgreSQL {
	return &PostgreSQL{db: db, log: l}
}

// Close closes the database connection if it is open.
func (postgresql *PostgreSQL) Close() {
	if postgresql.db != nil {
		postgresql.db.Close()
	}
}

// Ping verifies the database is reachable.
func (postgresql *PostgreSQL) Ping(ctx context.Context) error {
	return postgresql.db.PingContext(ctx)
}

// Migrate executes every .sql file of filesystem in lexicographical order, each in its own transaction.
func (postgresql *PostgreSQL) Migrate(ctx context.Context, filesystem fs.FS) error {
	entries, err := fs.ReadDir(filesystem, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		sqlBytes, err := fs.ReadFile(filesystem, entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if len(sqlBytes) == 0 {
			continue
		}

		if err := postgresql.execInTx(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("execute migration %s: %w", entry.Name(), err)
		}
		postgresql.log.Sugar().Infof("Applied migration %s", entry.Name())
	}

	return nil
}

func (postgresql *PostgreSQL) execInTx(ctx context.Context, query string) error {
	tx, err := postgresql.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query); err != nil {
		return err
	}

	return tx.Commit()
}

// pgErrorInfo extracts the SQLSTATE code and constraint name from errors raised by
// either generation of the jackc driver.
func pgErrorInfo(err error) (code, constraint string, ok bool) {
	var pgError *pgconn.PgError
	if errors.As(err, &pgError) {
		return pgError.Code, pgError.ConstraintName, true
	}

	var legacyError *legacypgconn.PgError
	if errors.As(err, &legacyError) {
		return legacyError.Code, legacyError.ConstraintName, true
	}

	return "", "", false
}

// translateError maps constraint violations onto the storage domain errors.
func translateError(err error) error {
	code, constraint, ok := pgErrorInfo(err)
	if !ok {
		return err
	}

	switch {
	case code == pgerrcode.CheckViolation && constraint == balanceConstraint:
		return ErrInsufficientFunds
	case code == pgerrcode.ForeignKeyViolation:
		return ErrNotFound
	}

	return err
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
