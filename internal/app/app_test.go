package app

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniapp_store/internal/cache"
	"miniapp_store/internal/models"
	"miniapp_store/internal/pkg/auth"
	"miniapp_store/internal/pkg/initdata"
	"miniapp_store/internal/pkg/logger"
	"miniapp_store/internal/pkg/security"
	"miniapp_store/internal/storage"
	"miniapp_store/internal/storage/mocks"
)

const testBotToken = "42:test-bot-token"

type testEnv struct {
	app         *App
	db          *mocks.MockStorage
	cache       *cache.Memory
	userTokens  *auth.TokenManager
	adminTokens *auth.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctrl := gomock.NewController(t)
	db := mocks.NewMockStorage(ctrl)

	admin, err := security.NewAdminCredentials("admin", "s3cret", "")
	require.NoError(t, err)

	env := &testEnv{
		db:          db,
		cache:       cache.NewMemory(0, time.Minute),
		userTokens:  auth.NewTokenManager("user-secret", auth.DefaultUserTokenTTL),
		adminTokens: auth.NewTokenManager("admin-secret", auth.DefaultAdminTokenTTL),
	}
	env.app = NewApp(db, logger.Nop(), Config{
		Validator:   initdata.NewValidator(testBotToken),
		UserTokens:  env.userTokens,
		AdminTokens: env.adminTokens,
		Admin:       admin,
		Cache:       env.cache,
	})
	return env
}

func signedInitData(telegramID int64, authDate time.Time) string {
	values := url.Values{}
	values.Set("user", `{"id":`+strconv.FormatInt(telegramID, 10)+`,"first_name":"Ann","username":"ann"}`)
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("hash", initdata.Sign(values, testBotToken))
	return values.Encode()
}

func TestProcessTelegramAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("valid init data", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.EXPECT().
			UpsertTelegramUser(gomock.Any(), models.TelegramProfile{TelegramID: 555, Username: "ann", FirstName: "Ann"}).
			Return(&models.User{ID: 3, TelegramID: 555, Username: "ann"}, nil)

		resp, err := env.app.ProcessTelegramAuth(ctx, models.TelegramAuthRequest{InitData: signedInitData(555, time.Now())})
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, int64(3), resp.User.ID)

		claims, err := env.userTokens.ParseToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(3), claims.UserID)
		assert.Equal(t, int64(555), claims.TelegramID)
		assert.False(t, claims.IsAdmin)

		_, err = env.adminTokens.ParseToken(resp.Token)
		assert.Error(t, err, "user tokens must not verify as admin tokens")
	})

	t.Run("missing init data", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.ProcessTelegramAuth(ctx, models.TelegramAuthRequest{})
		assert.ErrorIs(t, err, ErrMissingInitData)
	})

	t.Run("expired init data never reaches storage", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.ProcessTelegramAuth(ctx, models.TelegramAuthRequest{InitData: signedInitData(555, time.Now().Add(-25*time.Hour))})
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.ErrorIs(t, err, initdata.ErrExpired)
	})

	t.Run("tampered init data", func(t *testing.T) {
		env := newTestEnv(t)
		raw := signedInitData(555, time.Now())
		values, err := url.ParseQuery(raw)
		require.NoError(t, err)
		values.Set("user", `{"id":1,"first_name":"Mallory"}`)

		_, err = env.app.ProcessTelegramAuth(ctx, models.TelegramAuthRequest{InitData: values.Encode()})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestProcessAdminLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	resp, err := env.app.ProcessAdminLogin(ctx, models.AdminLoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
	claims, err := env.adminTokens.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "admin", claims.Username)

	_, err = env.app.ProcessAdminLogin(ctx, models.AdminLoginRequest{Username: "admin", Password: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.app.ProcessAdminLogin(ctx, models.AdminLoginRequest{Username: "admin"})
	assert.ErrorIs(t, err, ErrMissingUsernameOrPassword)
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending without touching the balance", func(t *testing.T) {
		env := newTestEnv(t)
		amount := decimal.RequireFromString("50.00")
		// Only CreateTransaction is expected: any approve or balance call fails the test.
		env.db.EXPECT().
			CreateTransaction(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, transaction *models.Transaction) (*models.Transaction, error) {
				assert.Equal(t, int64(9), transaction.UserID)
				assert.Equal(t, models.StatusPending, transaction.Status)
				assert.True(t, amount.Equal(transaction.Amount))
				transaction.ID = uuid.New()
				return transaction, nil
			})

		transaction, err := env.app.CreateTransaction(ctx, 9, models.CreateTransactionRequest{
			Type:     models.TransactionDeposit,
			Amount:   amount,
			Metadata: models.TransactionMetadata{PaymentMethod: "card"},
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, transaction.Status)
	})

	testCases := []struct {
		name    string
		req     models.CreateTransactionRequest
		wantErr error
	}{
		{name: "unknown type", req: models.CreateTransactionRequest{Type: "gift", Amount: decimal.NewFromInt(5)}, wantErr: ErrInvalidTransactionType},
		{name: "zero amount", req: models.CreateTransactionRequest{Type: models.TransactionDeposit}, wantErr: ErrInvalidAmount},
		{name: "negative amount", req: models.CreateTransactionRequest{Type: models.TransactionWithdrawal, Amount: decimal.NewFromInt(-5)}, wantErr: ErrInvalidAmount},
		{name: "sub-cent amount", req: models.CreateTransactionRequest{Type: models.TransactionDeposit, Amount: decimal.RequireFromString("1.005")}, wantErr: ErrInvalidAmount},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.app.CreateTransaction(ctx, 9, tc.req)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestApproveAndDenyTransaction(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("approve returns new balance", func(t *testing.T) {
		env := newTestEnv(t)
		balance := decimal.NewFromInt(50)
		env.db.EXPECT().ApproveTransaction(gomock.Any(), id).Return(&models.TransactionDecision{
			Transaction: &models.Transaction{ID: id, UserID: 1, Type: models.TransactionDeposit, Amount: balance, Status: models.StatusCompleted},
			Balance:     &balance,
		}, nil)

		decision, err := env.app.ApproveTransaction(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, decision.Transaction.Status)
		assert.True(t, balance.Equal(*decision.Balance))
	})

	t.Run("approve twice is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.EXPECT().ApproveTransaction(gomock.Any(), id).Return(nil, storage.ErrTransactionNotPending)

		_, err := env.app.ApproveTransaction(ctx, id)
		assert.ErrorIs(t, err, storage.ErrTransactionNotPending)
	})

	t.Run("deny has no balance", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.EXPECT().DenyTransaction(gomock.Any(), id).Return(&models.Transaction{ID: id, Status: models.StatusFailed}, nil)

		decision, err := env.app.DenyTransaction(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, decision.Transaction.Status)
		assert.Nil(t, decision.Balance)
	})
}

func TestListTransactions_ScopesToUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.db.EXPECT().
		ListTransactions(gomock.Any(), models.TransactionFilter{UserID: 4, Status: models.StatusPending}).
		Return(nil, nil)

	transactions, err := env.app.ListTransactions(ctx, 4, models.TransactionFilter{UserID: 99, Status: models.StatusPending})
	require.NoError(t, err)
	assert.NotNil(t, transactions)
	assert.Empty(t, transactions)

	_, err = env.app.ListAllTransactions(ctx, models.TransactionFilter{Status: "done"})
	assert.ErrorIs(t, err, ErrInvalidTransactionStatus)
}

func TestAddToCart(t *testing.T) {
	ctx := context.Background()

	t.Run("quantity defaults to one", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.EXPECT().AddToCart(gomock.Any(), int64(1), int64(7), 1).Return(&models.CartItem{ID: 1, ProductID: 7, Quantity: 1}, nil)

		item, err := env.app.AddToCart(ctx, 1, models.AddToCartRequest{ProductID: 7})
		require.NoError(t, err)
		assert.Equal(t, 1, item.Quantity)
	})

	t.Run("negative quantity", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.AddToCart(ctx, 1, models.AddToCartRequest{ProductID: 7, Quantity: -2})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("missing product", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.AddToCart(ctx, 1, models.AddToCartRequest{Quantity: 2})
		assert.ErrorIs(t, err, ErrMissingProductID)
	})

	t.Run("update to zero", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.UpdateCartItem(ctx, 1, 3, models.UpdateCartRequest{Quantity: 0})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending purchase for cart total", func(t *testing.T) {
		env := newTestEnv(t)
		items := []models.CartItem{
			{ProductID: 1, Quantity: 2, Product: &models.Product{ID: 1, Name: "VPN", Price: decimal.RequireFromString("4.50")}},
			{ProductID: 2, Quantity: 1, Product: &models.Product{ID: 2, Name: "Game", Price: decimal.RequireFromString("10.00")}},
		}
		env.db.EXPECT().CheckoutCart(gomock.Any(), int64(5), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ int64, purchase storage.PurchaseBuilder) (*models.Transaction, error) {
				transaction, err := purchase(items)
				require.NoError(t, err)
				assert.Equal(t, int64(5), transaction.UserID)
				assert.Equal(t, models.TransactionPurchase, transaction.Type)
				assert.Equal(t, models.StatusPending, transaction.Status)
				assert.True(t, decimal.RequireFromString("19.00").Equal(transaction.Amount))
				assert.Len(t, transaction.Metadata.Items, 2)
				transaction.ID = uuid.New()
				return transaction, nil
			})

		transaction, err := env.app.Checkout(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, "VPN", transaction.Metadata.Items[0].Name)
	})

	t.Run("empty cart", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.EXPECT().CheckoutCart(gomock.Any(), int64(5), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ int64, purchase storage.PurchaseBuilder) (*models.Transaction, error) {
				return purchase(nil)
			})

		_, err := env.app.Checkout(ctx, 5)
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("storage failure creates nothing", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.EXPECT().CheckoutCart(gomock.Any(), int64(5), gomock.Any()).Return(nil, errors.New("connection reset"))

		transaction, err := env.app.Checkout(ctx, 5)
		assert.Error(t, err)
		assert.Nil(t, transaction)
	})
}

func TestListProducts_Cache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	products := []models.Product{{ID: 1, Name: "VPN", Price: decimal.NewFromInt(5)}}

	env.db.EXPECT().ListProducts(gomock.Any(), models.ProductFilter{Category: "vpn"}).Return(products, nil).Times(2)

	for i := 0; i < 3; i++ {
		got, err := env.app.ListProducts(ctx, models.ProductFilter{Category: " vpn "})
		require.NoError(t, err)
		assert.Equal(t, products, got)
	}

	env.db.EXPECT().DeleteProduct(gomock.Any(), int64(1)).Return(nil)
	require.NoError(t, env.app.DeleteProduct(ctx, 1))

	_, err := env.app.ListProducts(ctx, models.ProductFilter{Category: "vpn"})
	require.NoError(t, err)
}

func TestCreateProduct_Validation(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name string
		req  models.ProductRequest
	}{
		{name: "no name", req: models.ProductRequest{Price: decimal.NewFromInt(1)}},
		{name: "zero price", req: models.ProductRequest{Name: "VPN"}},
		{name: "negative stock", req: models.ProductRequest{Name: "VPN", Price: decimal.NewFromInt(1), Stock: -1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.app.CreateProduct(ctx, tc.req)
			assert.ErrorIs(t, err, ErrInvalidProduct)
		})
	}

	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t)
		env.db.EXPECT().CreateProduct(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, product *models.Product) (*models.Product, error) {
				product.ID = 11
				return product, nil
			})

		product, err := env.app.CreateProduct(ctx, models.ProductRequest{Name: " VPN ", Price: decimal.NewFromInt(3), Stock: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(11), product.ID)
		assert.Equal(t, "VPN", product.Name)
	})
}

func TestSendProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("missing password", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.SendProduct(ctx, models.SendProductRequest{UserID: 1, ProductID: 2, Username: "u"})
		assert.ErrorIs(t, err, ErrInvalidSendProduct)
	})

	t.Run("unknown product", func(t *testing.T) {
		env := newTestEnv(t)
		req := models.SendProductRequest{UserID: 1, ProductID: 2, Username: "u", Password: "p"}
		env.db.EXPECT().CreateSentProduct(gomock.Any(), req).Return(nil, storage.ErrNotFound)

		_, err := env.app.SendProduct(ctx, req)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("sent", func(t *testing.T) {
		env := newTestEnv(t)
		req := models.SendProductRequest{UserID: 1, ProductID: 2, Username: "u", Password: "p"}
		env.db.EXPECT().CreateSentProduct(gomock.Any(), req).Return(&models.SentProduct{ID: 8, UserID: 1, ProductName: "VPN", IsActive: true}, nil)

		sent, err := env.app.SendProduct(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "VPN", sent.ProductName)
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.db.EXPECT().Reconcile(gomock.Any(), int64(2)).Return(&models.Reconciliation{UserID: 2, Consistent: true}, nil)
	reconciliation, err := env.app.Reconcile(ctx, 2)
	require.NoError(t, err)
	assert.True(t, reconciliation.Consistent)

	env.db.EXPECT().Reconcile(gomock.Any(), int64(3)).Return(nil, errors.New("connection reset"))
	_, err = env.app.Reconcile(ctx, 3)
	assert.Error(t, err)
}
