package services

import (
	"testing"
	"time"

	"wagerbook/domain/entities"
	"wagerbook/domain/interfaces"
	"wagerbook/domain/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

const (
	TestUser1ID  = "user-1"
	TestUser2ID  = "user-2"
	TestMarketID = "market-1"
)

func testPolicy() LedgerPolicy {
	p := DefaultLedgerPolicy()
	p.Clock = func() time.Time { return testNow }
	return p
}

func testToday() time.Time {
	return time.Date(testNow.Year(), testNow.Month(), testNow.Day(), 0, 0, 0, 0, time.UTC)
}

// TestMocks aggregates all repository mocks for testing
type TestMocks struct {
	UserRepo        *testhelpers.MockUserRepository
	WagerRepo       *testhelpers.MockWagerRepository
	TransactionRepo *testhelpers.MockTransactionRepository
	MarketRepo      *testhelpers.MockMarketRepository
	EventPublisher  *testhelpers.MockEventPublisher
}

func NewTestMocks() *TestMocks {
	return &TestMocks{
		UserRepo:        &testhelpers.MockUserRepository{},
		WagerRepo:       &testhelpers.MockWagerRepository{},
		TransactionRepo: &testhelpers.MockTransactionRepository{},
		MarketRepo:      &testhelpers.MockMarketRepository{},
		EventPublisher:  &testhelpers.MockEventPublisher{},
	}
}

func (m *TestMocks) AssertAllExpectations(t *testing.T) {
	m.UserRepo.AssertExpectations(t)
	m.WagerRepo.AssertExpectations(t)
	m.TransactionRepo.AssertExpectations(t)
	m.MarketRepo.AssertExpectations(t)
	m.EventPublisher.AssertExpectations(t)
}

// AllowEvents accepts any published event
func (m *TestMocks) AllowEvents() {
	m.EventPublisher.On("Publish", mock.Anything).Return(nil).Maybe()
}

func (m *TestMocks) BalanceService() interfaces.BalanceService {
	return NewBalanceService(m.UserRepo, m.TransactionRepo, m.EventPublisher, testPolicy())
}

func (m *TestMocks) WagerService() interfaces.WagerService {
	return NewWagerService(m.WagerRepo, m.MarketRepo, m.BalanceService(), m.EventPublisher, testPolicy())
}

func (m *TestMocks) SettlementService() interfaces.SettlementService {
	return NewSettlementService(m.WagerRepo, m.BalanceService(), m.EventPublisher, testPolicy())
}

func (m *TestMocks) MarketFeedService() interfaces.MarketFeedService {
	return NewMarketFeedService(m.MarketRepo, m.WagerRepo, m.EventPublisher, testPolicy())
}

func openMarket() *entities.Market {
	return &entities.Market{
		ID:        TestMarketID,
		SideA:     entities.SideInfo{Name: "Hawks"},
		SideB:     entities.SideInfo{Name: "Owls"},
		Line:      decimal.RequireFromString("-3.5"),
		StartTime: testNow.Add(2 * time.Hour),
		Visible:   true,
		Version:   1,
	}
}

func restingWager(id, userID string, isHome bool, remaining int64, createdAt time.Time) *entities.Wager {
	return &entities.Wager{
		ID:              id,
		UserID:          userID,
		MarketID:        TestMarketID,
		Currency:        entities.CurrencyPractice,
		Amount:          remaining,
		IsHomeSide:      isHome,
		RemainingAmount: remaining,
		Status:          entities.WagerStatusPending,
		CreatedAt:       createdAt,
		Version:         1,
	}
}
