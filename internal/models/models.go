// Package models defines the data structures used throughout the application.
// It includes the persisted entities (users, products, cart items, transactions, sent products)
// and the request and response payloads of the HTTP API.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User represents a storefront customer identified by their Telegram account.
type User struct {
	ID          int64           `json:"id"`
	TelegramID  int64           `json:"telegramId"`
	Username    string          `json:"username,omitempty"`
	FirstName   string          `json:"firstName,omitempty"`
	LastName    string          `json:"lastName,omitempty"`
	PhotoURL    string          `json:"photoUrl,omitempty"`
	IsAdmin     bool            `json:"isAdmin"`
	Balance     decimal.Decimal `json:"balance"`
	LoginCount  int             `json:"loginCount"`
	LastLoginAt *time.Time      `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TelegramProfile carries the verified identity fields used to upsert a User on login.
type TelegramProfile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	PhotoURL   string
}

// Product represents an item listed in the store catalogue.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Featured    bool            `json:"featured"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductFilter narrows a product listing. Zero values mean "no filter".
type ProductFilter struct {
	Category string
	Featured *bool
	Search   string
}

// ProductRequest is the admin payload for creating or updating a product.
type ProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"imageUrl"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Featured    bool            `json:"featured"`
}

// CartItem is one product line in a user's cart. (UserID, ProductID) is unique.
type CartItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	ProductID int64     `json:"productId"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AddToCartRequest adds Quantity units of a product; Quantity defaults to 1.
type AddToCartRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// UpdateCartRequest sets the quantity of an existing cart line.
type UpdateCartRequest struct {
	Quantity int `json:"quantity"`
}

// CartResponse is the payload of GET /api/cart.
type CartResponse struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// TransactionType enumerates the kinds of balance movement.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionPurchase   TransactionType = "purchase"
	TransactionRefund     TransactionType = "refund"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionWithdrawal, TransactionPurchase, TransactionRefund:
		return true
	}
	return false
}

// Credits reports whether approving a transaction of this type adds to the balance.
func (t TransactionType) Credits() bool {
	return t == TransactionDeposit || t == TransactionRefund
}

// TransactionStatus is the three-state lifecycle of a transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s TransactionStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

// TransactionMetadata holds the payment details a user submits with a transaction.
type TransactionMetadata struct {
	PaymentMethod string      `json:"paymentMethod,omitempty"`
	OrderID       string      `json:"orderId,omitempty"`
	ScreenshotURL string      `json:"screenshotUrl,omitempty"`
	ProductID     int64       `json:"productId,omitempty"`
	Items         []OrderLine `json:"items,omitempty"`
	Note          string      `json:"note,omitempty"`
}

// OrderLine records one cart line captured at checkout.
type OrderLine struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Transaction is a deposit, withdrawal, purchase or refund awaiting or past admin review.
// Amount is always positive; the type implies the direction of the balance change.
type Transaction struct {
	ID          uuid.UUID           `json:"id"`
	UserID      int64               `json:"userId"`
	Type        TransactionType     `json:"type"`
	Amount      decimal.Decimal     `json:"amount"`
	Status      TransactionStatus   `json:"status"`
	Metadata    TransactionMetadata `json:"metadata"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	ProcessedAt *time.Time          `json:"processedAt,omitempty"`
}

// CreateTransactionRequest is the user payload of POST /api/transactions.
type CreateTransactionRequest struct {
	Type     TransactionType     `json:"type"`
	Amount   decimal.Decimal     `json:"amount"`
	Metadata TransactionMetadata `json:"metadata"`
}

// TransactionFilter narrows a transaction listing. Zero values mean "no filter".
type TransactionFilter struct {
	UserID int64
	Type   TransactionType
	Status TransactionStatus
}

// TransactionDecision is the outcome of an admin approve or deny action.
type TransactionDecision struct {
	Transaction *Transaction     `json:"transaction"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
}

// SentProduct is an immutable record of credentials delivered to a user by an admin.
// ProductID becomes nil when the product is deleted; ProductName keeps the history readable.
type SentProduct struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	ProductID    *int64    `json:"productId,omitempty"`
	ProductName  string    `json:"productName"`
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	Instructions string    `json:"instructions,omitempty"`
	IsActive     bool      `json:"isActive"`
	SentAt       time.Time `json:"sentAt"`
}

// SendProductRequest is the admin payload of POST /api/admin/send-product.
type SendProductRequest struct {
	UserID       int64  `json:"userId"`
	ProductID    int64  `json:"productId"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Instructions string `json:"instructions"`
}

// TelegramAuthRequest is the payload of POST /api/auth/verify.
type TelegramAuthRequest struct {
	InitData string `json:"initData"`
}

// TelegramAuthResponse is returned after a successful initData verification.
type TelegramAuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
}

// AdminLoginRequest represents the admin authentication request payload.
type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminLoginResponse contains the admin token upon successful authentication.
type AdminLoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// ErrorResponse represents a generic error response payload.
// It contains a string describing the encountered error.
type ErrorResponse struct {
	Errors string `json:"errors"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	Users               int             `json:"users"`
	Products            int             `json:"products"`
	PendingTransactions int             `json:"pendingTransactions"`
	CompletedDeposits   decimal.Decimal `json:"completedDeposits"`
	CompletedPurchases  decimal.Decimal `json:"completedPurchases"`
	TotalBalance        decimal.Decimal `json:"totalBalance"`
}

// Reconciliation compares a user's stored balance with the net of their completed transactions.
type Reconciliation struct {
	UserID     int64           `json:"userId"`
	Balance    decimal.Decimal `json:"balance"`
	Credits    decimal.Decimal `json:"credits"`
	Debits     decimal.Decimal `json:"debits"`
	Expected   decimal.Decimal `json:"expected"`
	Difference decimal.Decimal `json:"difference"`
	Consistent bool            `json:"consistent"`
}
