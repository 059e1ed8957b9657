package entities

import (
	"fmt"
	"time"
)

// User holds a user's two balances and the rolling daily real spend counter
type User struct {
	ID              string     `json:"id"`
	PracticeBalance int64      `json:"practiceBalance"`
	RealBalance     int64      `json:"realBalance"`
	DailyRealSpend  int64      `json:"dailyRealSpend"`
	LastWagerDate   *time.Time `json:"lastWagerDate,omitempty"` // Calendar date, midnight UTC
	Version         int64      `json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Balance returns the balance for the given currency
func (u *User) Balance(currency Currency) int64 {
	if currency == CurrencyReal {
		return u.RealBalance
	}
	return u.PracticeBalance
}

// ApplyDelta applies a signed change to one balance. The user is left untouched
// when the result would be negative.
func (u *User) ApplyDelta(currency Currency, delta int64) error {
	if err := currency.Validate(); err != nil {
		return err
	}
	newBalance := u.Balance(currency) + delta
	if newBalance < 0 {
		return fmt.Errorf("%w: %s balance %d cannot cover %d", ErrInsufficientFunds, currency, u.Balance(currency), -delta)
	}
	if currency == CurrencyReal {
		u.RealBalance = newBalance
	} else {
		u.PracticeBalance = newBalance
	}
	return nil
}

// SpendToday returns the real spend counted against today's cap
func (u *User) SpendToday(today time.Time) int64 {
	if u.LastWagerDate == nil || !SameDate(*u.LastWagerDate, today) {
		return 0
	}
	return u.DailyRealSpend
}

// ChargeDailyRealSpend adds amount to today's real spend, resetting the counter
// first when the last wager was placed on an earlier date.
func (u *User) ChargeDailyRealSpend(amount int64, today time.Time, limit int64) error {
	spent := u.SpendToday(today)
	if spent+amount > limit {
		return fmt.Errorf("%w: %d of %d already spent today, %d requested", ErrDailyLimitExceeded, spent, limit, amount)
	}
	date := today
	u.DailyRealSpend = spent + amount
	u.LastWagerDate = &date
	return nil
}

// RestoreDailyRealSpend gives back headroom for a refunded stake. Only stakes
// placed on the date the counter currently tracks are restored.
func (u *User) RestoreDailyRealSpend(amount int64, placedOn time.Time) bool {
	if u.LastWagerDate == nil || !SameDate(*u.LastWagerDate, placedOn) {
		return false
	}
	u.DailyRealSpend -= amount
	if u.DailyRealSpend < 0 {
		u.DailyRealSpend = 0
	}
	return true
}

// SameDate compares the calendar dates of two date values
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
