package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/api"
	"github.com/maxpower-app/wallet-backend/internal/api/middleware"
	"github.com/maxpower-app/wallet-backend/internal/config"
	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/models"
	"github.com/maxpower-app/wallet-backend/internal/referral"
	"github.com/maxpower-app/wallet-backend/internal/service"
	"github.com/maxpower-app/wallet-backend/internal/store"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "maxpower-wallet-test"
	testJWTAudience = "wallet-api-test"
)

func TestMain(m *testing.M) {
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	os.Exit(m.Run())
}

func newTestRouter(t *testing.T) (http.Handler, *store.Memory) {
	t.Helper()

	st := store.NewMemory()
	resolver := referral.NewResolver(domain.DefaultTerminatorCodes)
	engine := referral.NewEngine(domain.DefaultTierTable())

	accounts := service.NewAccountService(st, resolver)
	ledger := service.NewLedgerService(st)

	cfg := &config.Config{
		PublicRateLimitRPS: 100,
		AuthRateLimitRPS:   100,
	}
	router := api.NewRouter(cfg, zap.NewNop(), st, api.Services{
		Accounts:   accounts,
		Ledger:     ledger,
		Wallet:     service.NewWalletService(st, accounts, resolver, decimal.NewFromInt(100)),
		Settlement: service.NewSettlementService(st, ledger, accounts, resolver, engine),
		Credit:     service.NewCreditService(st, accounts),
		Settings:   service.NewSettingsService(st),
	}, nil)
	return router.Routes(), st
}

func signToken(t *testing.T, accountKey, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"account_key": accountKey,
		"role":        role,
		"sub":         accountKey,
		"iss":         middleware.JWTIssuer(),
		"aud":         middleware.JWTAudience(),
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(middleware.JWTSecret())
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func seedStoreAccount(t *testing.T, st *store.Memory, key string, account models.Account) {
	t.Helper()
	if account.JoinedAt.IsZero() {
		account.JoinedAt = time.Now().UTC()
	}
	require.NoError(t, st.Commit(context.Background(), map[string]any{
		store.Path(store.CollectionUsers, key): account,
	}))
}

func TestCreateAccountAndMe(t *testing.T) {
	h, _ := newTestRouter(t)
	token := signToken(t, "key-u1", domain.RoleUser)

	rec := doRequest(t, h, http.MethodPost, "/v1/accounts", token, map[string]string{
		"name":  "New User",
		"email": "new@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.DisplayID)
	assert.False(t, created.IsActive)

	rec = doRequest(t, h, http.MethodGet, "/v1/accounts/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, created.DisplayID, me.DisplayID)

	// A second provision for the same identity conflicts.
	rec = doRequest(t, h, http.MethodPost, "/v1/accounts", token, map[string]string{"name": "New User"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequiresAuth(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doRequest(t, h, http.MethodGet, "/v1/accounts/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/v1/admin/transactions", signToken(t, "key-u1", domain.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "user tokens cannot reach admin routes")
}

func TestReferralCheckIsPublic(t *testing.T) {
	h, st := newTestRouter(t)
	seedStoreAccount(t, st, "key-alice", models.Account{
		DisplayID: "MP10001", Name: "Alice", Balance: decimal.Zero,
		IsActive: true, ReferralCode: "ALICE1",
	})

	rec := doRequest(t, h, http.MethodGet, "/v1/referrals/alice1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check service.ReferralCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.Equal(t, "Alice", check.UplineName)
	assert.True(t, check.UplineActive)

	rec = doRequest(t, h, http.MethodGet, "/v1/referrals/MAXPOWER2024", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.True(t, check.Terminator)

	rec = doRequest(t, h, http.MethodGet, "/v1/referrals/GHOST9", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivationApprovalFlow(t *testing.T) {
	h, st := newTestRouter(t)
	seedStoreAccount(t, st, "key-alice", models.Account{
		DisplayID: "MP10001", Name: "Alice", Balance: decimal.Zero,
		IsActive: true, ReferralCode: "ALICE1",
	})
	seedStoreAccount(t, st, "key-dave", models.Account{
		DisplayID: "MP10004", Name: "Dave", Balance: decimal.Zero,
		IsActive: false, ReferralCode: "DAVE01",
	})
	userToken := signToken(t, "key-dave", domain.RoleUser)
	adminToken := signToken(t, "key-admin", domain.RoleAdmin)

	// 1. Dave reports a manual payment.
	rec := doRequest(t, h, http.MethodPost, "/v1/wallet/activation", userToken, map[string]string{
		"method":       domain.MethodBkash,
		"mobileNumber": "01700000000",
		"trxId":        "TRX123",
		"referralCode": "ALICE1",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var pending models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.NotEmpty(t, pending.ID)

	// 2. The admin queue shows it.
	rec = doRequest(t, h, http.MethodGet, "/v1/admin/transactions?kind=activation", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var queue struct {
		Items []models.Transaction `json:"items"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.Equal(t, 1, queue.Count)

	// 3. Approval activates Dave and pays Alice tier 1.
	rec = doRequest(t, h, http.MethodPost, "/v1/admin/transactions/"+pending.ID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, h, http.MethodGet, "/v1/accounts/me", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dave models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dave))
	assert.True(t, dave.IsActive)

	raw, ok, err := st.Get(context.Background(), "users/key-alice")
	require.NoError(t, err)
	require.True(t, ok)
	alice, err := models.DecodeAccount(raw)
	require.NoError(t, err)
	assert.True(t, alice.Balance.Equal(decimal.NewFromInt(50)))

	// 4. A repeat approval conflicts.
	rec = doRequest(t, h, http.MethodPost, "/v1/admin/transactions/"+pending.ID+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWithdrawalRejectionRefunds(t *testing.T) {
	h, st := newTestRouter(t)
	seedStoreAccount(t, st, "key-eve", models.Account{
		DisplayID: "MP10005", Name: "Eve", Balance: decimal.NewFromInt(100),
		IsActive: true, ReferralCode: "EVE001",
	})
	userToken := signToken(t, "key-eve", domain.RoleUser)
	adminToken := signToken(t, "key-admin", domain.RoleAdmin)

	rec := doRequest(t, h, http.MethodPost, "/v1/wallet/withdrawals", userToken, map[string]string{
		"amount":       "40",
		"method":       domain.MethodNagad,
		"mobileNumber": "01800000000",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var pending models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))

	rec = doRequest(t, h, http.MethodPost, "/v1/admin/transactions/"+pending.ID+"/reject", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/v1/accounts/me", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var eve models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eve))
	assert.True(t, eve.Balance.Equal(decimal.NewFromInt(100)), "rejection refunds the debit")
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	h, st := newTestRouter(t)
	seedStoreAccount(t, st, "key-eve", models.Account{
		DisplayID: "MP10005", Name: "Eve", Balance: decimal.NewFromInt(10),
		IsActive: true, ReferralCode: "EVE001",
	})

	rec := doRequest(t, h, http.MethodPost, "/v1/wallet/withdrawals", signToken(t, "key-eve", domain.RoleUser), map[string]string{
		"amount":       "40",
		"method":       domain.MethodNagad,
		"mobileNumber": "01800000000",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminCredit(t *testing.T) {
	h, st := newTestRouter(t)
	seedStoreAccount(t, st, "key-eve", models.Account{
		DisplayID: "MP10005", Name: "Eve", Balance: decimal.NewFromInt(10),
		IsActive: true, ReferralCode: "EVE001",
	})
	adminToken := signToken(t, "key-admin", domain.RoleAdmin)

	rec := doRequest(t, h, http.MethodPost, "/v1/admin/credits", adminToken, map[string]string{
		"userId": "MP10005",
		"amount": "90",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, h, http.MethodGet, "/v1/accounts/me", signToken(t, "key-eve", domain.RoleUser), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var eve models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eve))
	assert.True(t, eve.Balance.Equal(decimal.NewFromInt(100)))

	rec = doRequest(t, h, http.MethodPost, "/v1/admin/credits", adminToken, map[string]string{
		"userId": "MP10005",
		"amount": "-5",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/v1/admin/credits", adminToken, map[string]string{
		"userId": "MP99999",
		"amount": "5",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentNumberSettings(t *testing.T) {
	h, st := newTestRouter(t)
	seedStoreAccount(t, st, "key-eve", models.Account{
		DisplayID: "MP10005", Name: "Eve", Balance: decimal.Zero,
		IsActive: true, ReferralCode: "EVE001",
	})
	adminToken := signToken(t, "key-admin", domain.RoleAdmin)

	rec := doRequest(t, h, http.MethodPut, "/v1/admin/settings/payment-number", adminToken, map[string]string{
		"activePaymentNumber": "01900000000",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, h, http.MethodGet, "/v1/wallet/payment-number", signToken(t, "key-eve", domain.RoleUser), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "01900000000", resp["activePaymentNumber"])
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doRequest(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProblemResponseShape(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doRequest(t, h, http.MethodGet, "/v1/accounts/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var details struct {
		Type   string `json:"type"`
		Status int    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, http.StatusUnauthorized, details.Status)
	assert.Equal(t, fmt.Sprintf("https://errors.maxpower.app/%s", "auth/authorization-header-required"), details.Type)
}
