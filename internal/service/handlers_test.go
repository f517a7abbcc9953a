package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniapp_store/internal/app"
	"miniapp_store/internal/models"
	"miniapp_store/internal/pkg/auth"
	"miniapp_store/internal/pkg/initdata"
	"miniapp_store/internal/pkg/logger"
	"miniapp_store/internal/pkg/ratelimit"
	"miniapp_store/internal/pkg/security"
	"miniapp_store/internal/storage"
	"miniapp_store/internal/storage/mocks"
)

const testBotToken = "42:handler-test-token"

type testServer struct {
	*httptest.Server
	db          *mocks.MockStorage
	userTokens  *auth.TokenManager
	adminTokens *auth.TokenManager
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter) *testServer {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockDB := mocks.NewMockStorage(ctrl)

	admin, err := security.NewAdminCredentials("admin", "s3cret", "")
	require.NoError(t, err)

	userTokens := auth.NewTokenManager("user-secret", auth.DefaultUserTokenTTL)
	adminTokens := auth.NewTokenManager("admin-secret", auth.DefaultAdminTokenTTL)
	l := logger.Nop()

	appInstance := app.NewApp(mockDB, l, app.Config{
		Validator:   initdata.NewValidator(testBotToken),
		UserTokens:  userTokens,
		AdminTokens: adminTokens,
		Admin:       admin,
	})
	service := NewService(appInstance, "", l, Config{
		UserTokens:  userTokens,
		AdminTokens: adminTokens,
		Limiter:     limiter,
		CORSOrigins: []string{"https://shop.example.com"},
	})

	ts := httptest.NewServer(service.NewRouter())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, db: mockDB, userTokens: userTokens, adminTokens: adminTokens}
}

func (ts *testServer) userToken(t *testing.T, userID int64) string {
	token, err := ts.userTokens.GenerateToken(auth.Claims{UserID: userID, TelegramID: userID * 10})
	require.NoError(t, err)
	return token
}

func (ts *testServer) adminToken(t *testing.T) string {
	token, err := ts.adminTokens.GenerateToken(auth.Claims{Username: "admin", IsAdmin: true})
	require.NoError(t, err)
	return token
}

func testRequest(t *testing.T, ts *httptest.Server, method, path string, requestBody []byte) (*http.Response, string) {
	return testRequestWithAuth(t, ts, method, path, requestBody, "")
}

func testRequestWithAuth(t *testing.T, ts *httptest.Server, method, path string, requestBody []byte, token string) (*http.Response, string) {
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func signedInitData(telegramID int64) string {
	values := url.Values{}
	values.Set("user", `{"id":`+strconv.FormatInt(telegramID, 10)+`,"first_name":"Ann","username":"ann"}`)
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	values.Set("hash", initdata.Sign(values, testBotToken))
	return values.Encode()
}

func TestTelegramAuthHandler_Gomock(t *testing.T) {
	ts := newTestServer(t, nil)

	validBody, err := json.Marshal(models.TelegramAuthRequest{InitData: signedInitData(777)})
	require.NoError(t, err)
	forgedBody, err := json.Marshal(models.TelegramAuthRequest{InitData: "user=%7B%22id%22%3A1%7D&auth_date=1&hash=00ff"})
	require.NoError(t, err)

	type expectedData struct {
		expectedContentType string
		expectedStatusCode  int
		expectedBody        string
	}

	testCases := []struct {
		name        string
		requestBody []byte
		setupMock   func()
		expected    expectedData
	}{
		{
			name:        "Invalid JSON",
			requestBody: []byte("some body"),
			setupMock:   func() {},
			expected: expectedData{
				expectedContentType: "application/json",
				expectedStatusCode:  http.StatusBadRequest,
				expectedBody:        "{\"errors\":\"invalid character 's' looking for beginning of value\"}\n",
			},
		},
		{
			name:        "Unknown field",
			requestBody: []byte(`{"initData": "x", "admin": true}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedContentType: "application/json",
				expectedStatusCode:  http.StatusBadRequest,
				expectedBody:        "{\"errors\":\"json: unknown field \\\"admin\\\"\"}\n",
			},
		},
		{
			name:        "Missing init data",
			requestBody: []byte(`{"initData": ""}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedContentType: "application/json",
				expectedStatusCode:  http.StatusBadRequest,
				expectedBody:        "{\"errors\":\"missing init data\"}\n",
			},
		},
		{
			name:        "Forged hash",
			requestBody: forgedBody,
			setupMock:   func() {},
			expected: expectedData{
				expectedContentType: "application/json",
				expectedStatusCode:  http.StatusUnauthorized,
				expectedBody:        "{\"errors\":\"invalid init data\"}\n",
			},
		},
		{
			name:        "Successful verification",
			requestBody: validBody,
			setupMock: func() {
				ts.db.EXPECT().UpsertTelegramUser(gomock.Any(), gomock.AssignableToTypeOf(models.TelegramProfile{})).
					DoAndReturn(func(ctx context.Context, profile models.TelegramProfile) (*models.User, error) {
						return &models.User{ID: 12, TelegramID: profile.TelegramID, Username: profile.Username, LoginCount: 1}, nil
					})
			},
			expected: expectedData{
				expectedContentType: "application/json",
				expectedStatusCode:  http.StatusOK,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()
			resp, body := testRequest(t, ts.Server, http.MethodPost, "/api/auth/verify", tc.requestBody)
			assert.Equal(t, tc.expected.expectedStatusCode, resp.StatusCode)
			assert.Equal(t, tc.expected.expectedContentType, resp.Header.Get("Content-Type"))

			if tc.expected.expectedStatusCode == http.StatusOK {
				var authResp models.TelegramAuthResponse
				require.NoError(t, json.Unmarshal([]byte(body), &authResp))
				assert.True(t, authResp.Success)
				assert.Equal(t, int64(777), authResp.User.TelegramID)

				claims, err := ts.userTokens.ParseToken(authResp.Token)
				require.NoError(t, err)
				assert.Equal(t, int64(12), claims.UserID)
				return
			}
			assert.Equal(t, tc.expected.expectedBody, body)
		})
	}
}

func TestAdminLoginHandler_Gomock(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := testRequest(t, ts.Server, http.MethodPost, "/api/admin/login", []byte(`{"username":"admin","password":"nope"}`))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "{\"errors\":\"invalid credentials\"}\n", body)

	resp, body = testRequest(t, ts.Server, http.MethodPost, "/api/admin/login", []byte(`{"username":"admin"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "{\"errors\":\"missing username or password\"}\n", body)

	resp, body = testRequest(t, ts.Server, http.MethodPost, "/api/admin/login", []byte(`{"username":"admin","password":"s3cret"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp models.AdminLoginResponse
	require.NoError(t, json.Unmarshal([]byte(body), &loginResp))
	assert.True(t, loginResp.Success)

	ts.db.EXPECT().GetStats(gomock.Any()).Return(&models.Stats{Users: 3}, nil)
	resp, body = testRequestWithAuth(t, ts.Server, http.MethodGet, "/api/admin/stats", nil, loginResp.Token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "\"users\":3")
}

func TestAdminGate_Gomock(t *testing.T) {
	ts := newTestServer(t, nil)

	notAdmin, err := ts.adminTokens.GenerateToken(auth.Claims{Username: "someone"})
	require.NoError(t, err)
	expired, err := auth.NewTokenManager("admin-secret", -time.Minute).GenerateToken(auth.Claims{Username: "admin", IsAdmin: true})
	require.NoError(t, err)
	foreign, err := auth.NewTokenManager("other-secret", time.Hour).GenerateToken(auth.Claims{UserID: 1, IsAdmin: true})
	require.NoError(t, err)

	testCases := []struct {
		name               string
		token              string
		expectedStatusCode int
	}{
		{name: "No token", token: "", expectedStatusCode: http.StatusUnauthorized},
		{name: "User token", token: ts.userToken(t, 1), expectedStatusCode: http.StatusForbidden},
		{name: "Unknown secret", token: foreign, expectedStatusCode: http.StatusUnauthorized},
		{name: "Expired admin token", token: expired, expectedStatusCode: http.StatusUnauthorized},
		{name: "Valid token without admin claim", token: notAdmin, expectedStatusCode: http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, path := range []string{"/api/admin/stats", "/api/admin/users", "/api/admin/transactions"} {
				resp, _ := testRequestWithAuth(t, ts.Server, http.MethodGet, path, nil, tc.token)
				assert.Equal(t, tc.expectedStatusCode, resp.StatusCode, path)
			}
			id := uuid.New().String()
			resp, _ := testRequestWithAuth(t, ts.Server, http.MethodPost, "/api/admin/transactions/"+id+"/approve", nil, tc.token)
			assert.Equal(t, tc.expectedStatusCode, resp.StatusCode)
		})
	}

	t.Run("Session of an admin user", func(t *testing.T) {
		token, err := ts.userTokens.GenerateToken(auth.Claims{UserID: 5, TelegramID: 50, IsAdmin: true})
		require.NoError(t, err)

		ts.db.EXPECT().GetStats(gomock.Any()).Return(&models.Stats{Users: 1}, nil)
		resp, body := testRequestWithAuth(t, ts.Server, http.MethodGet, "/api/admin/stats", nil, token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "\"users\":1")
	})

	t.Run("Admin token is not a user token", func(t *testing.T) {
		resp, _ := testRequestWithAuth(t, ts.Server, http.MethodGet, "/api/cart", nil, ts.adminToken(t))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestApproveTransactionHandler_Gomock(t *testing.T) {
	ts := newTestServer(t, nil)
	adminToken := ts.adminToken(t)
	id := uuid.New()
	balance := decimal.NewFromInt(50)

	testCases := []struct {
		name               string
		path               string
		setupMock          func()
		expectedStatusCode int
		expectedBody       string
	}{
		{
			name:               "Invalid id",
			path:               "/api/admin/transactions/42/approve",
			setupMock:          func() {},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       "{\"errors\":\"invalid id\"}\n",
		},
		{
			name: "Not found",
			path: "/api/admin/transactions/" + id.String() + "/approve",
			setupMock: func() {
				ts.db.EXPECT().ApproveTransaction(gomock.Any(), id).Return(nil, storage.ErrNotFound)
			},
			expectedStatusCode: http.StatusNotFound,
			expectedBody:       "{\"errors\":\"not found\"}\n",
		},
		{
			name: "Already decided",
			path: "/api/admin/transactions/" + id.String() + "/approve",
			setupMock: func() {
				ts.db.EXPECT().ApproveTransaction(gomock.Any(), id).Return(nil, storage.ErrTransactionNotPending)
			},
			expectedStatusCode: http.StatusConflict,
			expectedBody:       "{\"errors\":\"transaction is not pending\"}\n",
		},
		{
			name: "Insufficient funds",
			path: "/api/admin/transactions/" + id.String() + "/approve",
			setupMock: func() {
				ts.db.EXPECT().ApproveTransaction(gomock.Any(), id).Return(nil, storage.ErrInsufficientFunds)
			},
			expectedStatusCode: http.StatusConflict,
			expectedBody:       "{\"errors\":\"insufficient funds\"}\n",
		},
		{
			name: "Approved",
			path: "/api/admin/transactions/" + id.String() + "/approve",
			setupMock: func() {
				ts.db.EXPECT().ApproveTransaction(gomock.Any(), id).Return(&models.TransactionDecision{
					Transaction: &models.Transaction{ID: id, UserID: 1, Type: models.TransactionDeposit, Amount: balance, Status: models.StatusCompleted},
					Balance:     &balance,
				}, nil)
			},
			expectedStatusCode: http.StatusOK,
		},
		{
			name: "Denied",
			path: "/api/admin/transactions/" + id.String() + "/deny",
			setupMock: func() {
				ts.db.EXPECT().DenyTransaction(gomock.Any(), id).Return(&models.Transaction{ID: id, Status: models.StatusFailed}, nil)
			},
			expectedStatusCode: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()
			resp, body := testRequestWithAuth(t, ts.Server, http.MethodPost, tc.path, nil, adminToken)
			assert.Equal(t, tc.expectedStatusCode, resp.StatusCode)
			if tc.expectedBody != "" {
				assert.Equal(t, tc.expectedBody, body)
			}
			if tc.name == "Approved" {
				var decision models.TransactionDecision
				require.NoError(t, json.Unmarshal([]byte(body), &decision))
				require.NotNil(t, decision.Balance)
				assert.True(t, balance.Equal(*decision.Balance))
			}
		})
	}
}

func TestCreateTransactionHandler_Gomock(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.userToken(t, 5)

	testCases := []struct {
		name               string
		requestBody        []byte
		setupMock          func()
		expectedStatusCode int
		expectedBody       string
	}{
		{
			name:               "Negative amount",
			requestBody:        []byte(`{"type":"deposit","amount":"-5"}`),
			setupMock:          func() {},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       "{\"errors\":\"amount must be positive with at most two decimal places\"}\n",
		},
		{
			name:               "Unknown type",
			requestBody:        []byte(`{"type":"gift","amount":5}`),
			setupMock:          func() {},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       "{\"errors\":\"invalid transaction type\"}\n",
		},
		{
			name:               "Unknown metadata field",
			requestBody:        []byte(`{"type":"deposit","amount":5,"metadata":{"balance":1000}}`),
			setupMock:          func() {},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       "{\"errors\":\"json: unknown field \\\"balance\\\"\"}\n",
		},
		{
			name:        "Created pending",
			requestBody: []byte(`{"type":"deposit","amount":"50.00","metadata":{"paymentMethod":"card","orderId":"A-1"}}`),
			setupMock: func() {
				ts.db.EXPECT().CreateTransaction(gomock.Any(), gomock.AssignableToTypeOf(&models.Transaction{})).
					DoAndReturn(func(ctx context.Context, transaction *models.Transaction) (*models.Transaction, error) {
						transaction.ID = uuid.New()
						return transaction, nil
					})
			},
			expectedStatusCode: http.StatusCreated,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()
			resp, body := testRequestWithAuth(t, ts.Server, http.MethodPost, "/api/transactions", tc.requestBody, token)
			assert.Equal(t, tc.expectedStatusCode, resp.StatusCode)
			if tc.expectedBody != "" {
				assert.Equal(t, tc.expectedBody, body)
				return
			}

			var transaction models.Transaction
			require.NoError(t, json.Unmarshal([]byte(body), &transaction))
			assert.Equal(t, models.StatusPending, transaction.Status)
			assert.Equal(t, int64(5), transaction.UserID)
			assert.Equal(t, "A-1", transaction.Metadata.OrderID)
		})
	}
}

func TestCartHandlers_Gomock(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.userToken(t, 8)

	t.Run("Unauthorized", func(t *testing.T) {
		resp, body := testRequest(t, ts.Server, http.MethodGet, "/api/cart", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "{\"errors\":\"missing auth header\"}\n", body)
	})

	t.Run("Add defaults quantity", func(t *testing.T) {
		ts.db.EXPECT().AddToCart(gomock.Any(), int64(8), int64(3), 1).Return(&models.CartItem{ID: 1, UserID: 8, ProductID: 3, Quantity: 1}, nil)
		resp, _ := testRequestWithAuth(t, ts.Server, http.MethodPost, "/api/cart", []byte(`{"productId":3}`), token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Add unknown product", func(t *testing.T) {
		ts.db.EXPECT().AddToCart(gomock.Any(), int64(8), int64(99), 2).Return(nil, storage.ErrNotFound)
		resp, _ := testRequestWithAuth(t, ts.Server, http.MethodPost, "/api/cart", []byte(`{"productId":99,"quantity":2}`), token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Update to zero", func(t *testing.T) {
		resp, body := testRequestWithAuth(t, ts.Server, http.MethodPut, "/api/cart/1", []byte(`{"quantity":0}`), token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "{\"errors\":\"quantity must be at least 1\"}\n", body)
	})

	t.Run("Delete item of another user", func(t *testing.T) {
		ts.db.EXPECT().DeleteCartItem(gomock.Any(), int64(8), int64(77)).Return(storage.ErrNotFound)
		resp, _ := testRequestWithAuth(t, ts.Server, http.MethodDelete, "/api/cart/77", nil, token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Get cart with total", func(t *testing.T) {
		ts.db.EXPECT().ListCart(gomock.Any(), int64(8)).Return([]models.CartItem{
			{ID: 1, ProductID: 3, Quantity: 2, Product: &models.Product{ID: 3, Price: decimal.RequireFromString("2.50")}},
		}, nil)
		resp, body := testRequestWithAuth(t, ts.Server, http.MethodGet, "/api/cart", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var cart models.CartResponse
		require.NoError(t, json.Unmarshal([]byte(body), &cart))
		assert.True(t, decimal.NewFromInt(5).Equal(cart.Total))
	})

	t.Run("Checkout empty cart", func(t *testing.T) {
		ts.db.EXPECT().CheckoutCart(gomock.Any(), int64(8), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ int64, purchase storage.PurchaseBuilder) (*models.Transaction, error) {
				return purchase([]models.CartItem{})
			})
		resp, body := testRequestWithAuth(t, ts.Server, http.MethodPost, "/api/cart/checkout", nil, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "{\"errors\":\"cart is empty\"}\n", body)
	})
}

func TestProductHandlers_Gomock(t *testing.T) {
	ts := newTestServer(t, nil)

	featured := true
	ts.db.EXPECT().ListProducts(gomock.Any(), models.ProductFilter{Category: "vpn", Featured: &featured}).Return(nil, nil)
	resp, body := testRequest(t, ts.Server, http.MethodGet, "/api/products?category=vpn&featured=true", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", body)

	resp, _ = testRequest(t, ts.Server, http.MethodGet, "/api/products?featured=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ts.db.EXPECT().GetProduct(gomock.Any(), int64(4)).Return(nil, storage.ErrNotFound)
	resp, _ = testRequest(t, ts.Server, http.MethodGet, "/api/products/4", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = testRequestWithAuth(t, ts.Server, http.MethodPost, "/api/admin/products", []byte(`{"name":"VPN","price":0,"stock":1}`), ts.adminToken(t))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "positive price")

	ts.db.EXPECT().DeleteProduct(gomock.Any(), int64(4)).Return(nil)
	resp, _ = testRequestWithAuth(t, ts.Server, http.MethodDelete, "/api/admin/products/4", nil, ts.adminToken(t))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRateLimitedLogin(t *testing.T) {
	ts := newTestServer(t, ratelimit.New(0.001, 1, logger.Nop()))

	resp, _ := testRequest(t, ts.Server, http.MethodPost, "/api/admin/login", []byte(`{"username":"admin","password":"nope"}`))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := testRequest(t, ts.Server, http.MethodPost, "/api/admin/login", []byte(`{"username":"admin","password":"nope"}`))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "{\"errors\":\"too many requests\"}\n", body)

	ts.db.EXPECT().ListProducts(gomock.Any(), gomock.Any()).Return(nil, nil)
	resp, _ = testRequest(t, ts.Server, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "catalogue is not rate limited")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/cart", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://shop.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.db.EXPECT().Ping(gomock.Any()).Return(nil)
	resp, body := testRequest(t, ts.Server, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"status":"ok"}`, body)
}
