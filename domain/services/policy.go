package services

import (
	"time"

	"wagerbook/domain/utils"
)

// LedgerPolicy carries the ledger rules and clock handed to every domain service
type LedgerPolicy struct {
	MinWagerAmount          int64
	MaxWagerAmount          int64
	DailyRealLimit          int64
	StartingPracticeBalance int64
	Location                *time.Location
	Clock                   func() time.Time
}

// DefaultLedgerPolicy returns the standard rules: stakes of 1..100 and a real spend cap of 100 per day
func DefaultLedgerPolicy() LedgerPolicy {
	return LedgerPolicy{
		MinWagerAmount:          1,
		MaxWagerAmount:          100,
		DailyRealLimit:          100,
		StartingPracticeBalance: 1000,
		Location:                time.UTC,
		Clock:                   time.Now,
	}
}

func (p LedgerPolicy) now() time.Time {
	if p.Clock == nil {
		return time.Now().UTC()
	}
	return p.Clock().UTC()
}

func (p LedgerPolicy) dateOf(t time.Time) time.Time {
	return utils.CalendarDate(t, p.Location)
}

func (p LedgerPolicy) today() time.Time {
	return p.dateOf(p.now())
}

// Now returns the policy clock's current time in UTC
func (p LedgerPolicy) Now() time.Time {
	return p.now()
}

// Today returns the current date in the reference calendar
func (p LedgerPolicy) Today() time.Time {
	return p.today()
}
