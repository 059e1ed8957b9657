package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"wagerbook/application"
	"wagerbook/domain/entities"
	"wagerbook/domain/interfaces"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWagers struct{ mock.Mock }

func (m *mockWagers) SubmitWager(ctx context.Context, req interfaces.SubmitWagerRequest) (*interfaces.SubmitWagerResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.SubmitWagerResult), args.Error(1)
}

func (m *mockWagers) CancelWager(ctx context.Context, userID, wagerID string, isAdmin bool) (*interfaces.CancelWagerResult, error) {
	args := m.Called(ctx, userID, wagerID, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.CancelWagerResult), args.Error(1)
}

func (m *mockWagers) GetWager(ctx context.Context, wagerID, userID string, isAdmin bool) (*entities.Wager, error) {
	args := m.Called(ctx, wagerID, userID, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wager), args.Error(1)
}

func (m *mockWagers) GetFills(ctx context.Context, wagerID, userID string, isAdmin bool) ([]*entities.WagerFill, error) {
	args := m.Called(ctx, wagerID, userID, isAdmin)
	return args.Get(0).([]*entities.WagerFill), args.Error(1)
}

func (m *mockWagers) ListUserWagers(ctx context.Context, userID string, limit int) ([]*entities.Wager, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]*entities.Wager), args.Error(1)
}

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) EnsureUser(ctx context.Context, userID string) (*entities.User, bool, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*entities.User), args.Bool(1), args.Error(2)
}

func (m *mockAccounts) GetBalance(ctx context.Context, userID string) (*entities.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *mockAccounts) History(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]*entities.Transaction), args.Error(1)
}

func (m *mockAccounts) Stats(ctx context.Context, userID string) (*entities.UserStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UserStats), args.Error(1)
}

func (m *mockAccounts) Audit(ctx context.Context, userID string) (*entities.AuditResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AuditResult), args.Error(1)
}

func (m *mockAccounts) AdjustBalance(ctx context.Context, userID string, currency entities.Currency, delta int64, description string) (*entities.Transaction, error) {
	args := m.Called(ctx, userID, currency, delta, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

type mockMarkets struct{ mock.Mock }

func (m *mockMarkets) GetMarket(ctx context.Context, marketID string) (*entities.Market, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Market), args.Error(1)
}

func (m *mockMarkets) ApplyFeedUpdate(ctx context.Context, update entities.FeedUpdate) (*entities.Market, entities.MarketChanges, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, entities.MarketChanges{}, args.Error(2)
	}
	return args.Get(0).(*entities.Market), args.Get(1).(entities.MarketChanges), args.Error(2)
}

func (m *mockMarkets) SetOverrides(ctx context.Context, marketID string, patch entities.OverridesPatch) (*entities.Market, error) {
	args := m.Called(ctx, marketID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Market), args.Error(1)
}

func (m *mockMarkets) LockMarket(ctx context.Context, marketID string) (*entities.Market, bool, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*entities.Market), args.Bool(1), args.Error(2)
}

type mockSettlement struct{ mock.Mock }

func (m *mockSettlement) SettleMarket(ctx context.Context, marketID string) (*application.MarketSettlementSummary, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.MarketSettlementSummary), args.Error(1)
}

type testServer struct {
	wagers     *mockWagers
	accounts   *mockAccounts
	markets    *mockMarkets
	settlement *mockSettlement
	router     *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		wagers:     &mockWagers{},
		accounts:   &mockAccounts{},
		markets:    &mockMarkets{},
		settlement: &mockSettlement{},
	}
	ts.router = NewServer(ts.wagers, ts.accounts, ts.markets, ts.settlement).Router()
	t.Cleanup(func() {
		ts.wagers.AssertExpectations(t)
		ts.accounts.AssertExpectations(t)
		ts.markets.AssertExpectations(t)
		ts.settlement.AssertExpectations(t)
	})
	return ts
}

func (ts *testServer) do(method, path, userID, role string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	if role != "" {
		req.Header.Set(userRoleHeader, role)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestServer_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := NewServer(&mockWagers{}, &mockAccounts{}, &mockMarkets{}, &mockSettlement{})
	router := server.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	server.SetReady(true)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Identity(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/v1/users/me/balance", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/v1/markets/m1/lock", "alice", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
}

func TestServer_EnsureUser(t *testing.T) {
	ts := newTestServer(t)
	ts.accounts.On("EnsureUser", mock.Anything, "alice").
		Return(&entities.User{ID: "alice", PracticeBalance: 1000}, true, nil).Once()

	rec := ts.do(http.MethodPost, "/v1/users/me", "alice", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ensureUserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Created)
	assert.Equal(t, int64(1000), resp.User.PracticeBalance)
}

func TestServer_SubmitWager(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		ts := newTestServer(t)
		expected := interfaces.SubmitWagerRequest{
			UserID:     "alice",
			MarketID:   "m1",
			Currency:   entities.CurrencyReal,
			Amount:     25,
			IsHomeSide: false,
		}
		ts.wagers.On("SubmitWager", mock.Anything, expected).
			Return(&interfaces.SubmitWagerResult{Wager: &entities.Wager{ID: "w1", Status: entities.WagerStatusPending}}, nil).Once()

		rec := ts.do(http.MethodPost, "/v1/wagers", "alice", "", map[string]any{
			"marketId":   "m1",
			"currency":   "real",
			"amount":     25,
			"isHomeSide": false,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("missing side is a bad request", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodPost, "/v1/wagers", "alice", "", map[string]any{
			"marketId": "m1",
			"currency": "real",
			"amount":   25,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rejections := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient funds", entities.ErrInsufficientFunds, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"},
		{"daily cap", entities.ErrDailyLimitExceeded, http.StatusPaymentRequired, "DAILY_LIMIT_EXCEEDED"},
		{"invalid amount", entities.ErrInvalidAmount, http.StatusUnprocessableEntity, "INVALID_AMOUNT"},
		{"locked market", entities.ErrMarketLocked, http.StatusLocked, "MARKET_LOCKED"},
		{"unknown market", entities.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"retries exhausted", fmt.Errorf("%w: submit_wager after 5 attempts: %w", entities.ErrTransactionFailed, entities.ErrStoreConflict), http.StatusServiceUnavailable, "TRANSACTION_FAILED"},
		{"internal", fmt.Errorf("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.wagers.On("SubmitWager", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("wrapped: %w", tt.err)).Once()

			rec := ts.do(http.MethodPost, "/v1/wagers", "alice", "", map[string]any{
				"marketId":   "m1",
				"currency":   "practice",
				"amount":     500,
				"isHomeSide": true,
			})
			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", resp.Message)
			}
		})
	}
}

func TestServer_CancelWager(t *testing.T) {
	ts := newTestServer(t)
	ts.wagers.On("CancelWager", mock.Anything, "alice", "w1", false).
		Return(nil, fmt.Errorf("%w: wager w1 is fullyMatched", entities.ErrNotCancellable)).Once()
	ts.wagers.On("CancelWager", mock.Anything, "root", "w2", true).
		Return(&interfaces.CancelWagerResult{Wager: &entities.Wager{ID: "w2", Status: entities.WagerStatusCancelled}}, nil).Once()

	rec := ts.do(http.MethodDelete, "/v1/wagers/w1", "alice", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodDelete, "/v1/wagers/w2", "root", "admin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ListsPassLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.accounts.On("History", mock.Anything, "alice", 25).Return([]*entities.Transaction{}, nil).Once()
	ts.wagers.On("ListUserWagers", mock.Anything, "alice", 0).Return([]*entities.Wager{}, nil).Once()

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/users/me/transactions?limit=25", "alice", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/users/me/wagers?limit=nope", "alice", "", nil).Code)
}

func TestServer_GetMarketHidesInvisible(t *testing.T) {
	ts := newTestServer(t)
	hidden := false
	market := &entities.Market{ID: "m1", Visible: true, Overrides: entities.AdminOverrides{Visible: &hidden}}
	ts.markets.On("GetMarket", mock.Anything, "m1").Return(market, nil).Twice()

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/v1/markets/m1", "alice", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/markets/m1", "root", "admin", nil).Code)
}

func TestServer_AdminRoutes(t *testing.T) {
	ts := newTestServer(t)

	ts.markets.On("LockMarket", mock.Anything, "m1").Return(&entities.Market{ID: "m1", IsLocked: true}, true, nil).Once()
	ts.settlement.On("SettleMarket", mock.Anything, "m1").
		Return(nil, fmt.Errorf("%w: market m1", entities.ErrMarketNotFinal)).Once()
	ts.accounts.On("AdjustBalance", mock.Anything, "bob", entities.CurrencyReal, int64(-20), "chargeback").
		Return(nil, fmt.Errorf("wrapped: %w", entities.ErrInsufficientFunds)).Once()
	ts.accounts.On("Audit", mock.Anything, "bob").Return(&entities.AuditResult{
		UserID:     "bob",
		Currencies: []entities.CurrencyAudit{{Currency: entities.CurrencyPractice, Balance: 10, LedgerSum: 10}},
	}, nil).Once()

	rec := ts.do(http.MethodPost, "/v1/markets/m1/lock", "root", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var locked lockMarketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &locked))
	assert.True(t, locked.Locked)

	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/v1/markets/m1/settle", "root", "admin", nil).Code)

	rec = ts.do(http.MethodPost, "/v1/admin/users/bob/adjust", "root", "admin", map[string]any{
		"currency": "real", "delta": -20, "description": "chargeback",
	})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = ts.do(http.MethodPost, "/v1/admin/users/bob/adjust", "root", "admin", map[string]any{"currency": "real", "delta": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/v1/admin/users/bob/audit", "root", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var audit map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	assert.Equal(t, true, audit["balanced"])
}

func TestServer_ApplyFeed(t *testing.T) {
	ts := newTestServer(t)
	ts.markets.On("ApplyFeedUpdate", mock.Anything, mock.MatchedBy(func(u entities.FeedUpdate) bool {
		return u.MarketID == "m1" && u.Line != nil && u.Line.String() == "-2.5"
	})).Return(&entities.Market{ID: "m1"}, entities.MarketChanges{LineChanged: true}, nil).Once()

	rec := ts.do(http.MethodPost, "/v1/feed/markets", "root", "admin", map[string]any{"marketId": "m1", "line": "-2.5"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp feedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Changed)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/v1/feed/markets", "root", "admin", map[string]any{"line": "1"}).Code)
}

func TestErrorStatus_ConflictOrder(t *testing.T) {
	status, _ := errorStatus(fmt.Errorf("%w: op after 3 attempts: %w", entities.ErrTransactionFailed, entities.ErrStoreConflict))
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = errorStatus(entities.ErrStoreConflict)
	assert.Equal(t, http.StatusConflict, status)
}
