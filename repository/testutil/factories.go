package testutil

import (
	"time"

	"wagerbook/domain/entities"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTestUser creates a user with the given balances
func CreateTestUser(id string, practice, real int64) *entities.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &entities.User{
		ID:              id,
		PracticeBalance: practice,
		RealBalance:     real,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CreateTestMarket creates an open market starting in one day
func CreateTestMarket(id string, line string) *entities.Market {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &entities.Market{
		ID:        id,
		SideA:     entities.SideInfo{Name: "Home Team", ShortName: "HOM"},
		SideB:     entities.SideInfo{Name: "Away Team", ShortName: "AWY"},
		Line:      decimal.RequireFromString(line),
		StartTime: now.Add(24 * time.Hour),
		Visible:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestWager creates a pending wager resting on a market
func CreateTestWager(userID string, market *entities.Market, currency entities.Currency, amount int64, isHome bool, createdAt time.Time) *entities.Wager {
	return &entities.Wager{
		ID:              uuid.New().String(),
		UserID:          userID,
		MarketID:        market.ID,
		Currency:        currency,
		Amount:          amount,
		Side:            market.SideName(isHome),
		IsHomeSide:      isHome,
		RequestedLine:   market.Line,
		CurrentLine:     market.Line,
		RemainingAmount: amount,
		Status:          entities.WagerStatusPending,
		CreatedAt:       createdAt.UTC().Truncate(time.Microsecond),
		UpdatedAt:       createdAt.UTC().Truncate(time.Microsecond),
	}
}
