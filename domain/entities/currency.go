package entities

import "fmt"

// Currency identifies which of a user's two balances a wager or ledger entry uses
type Currency string

const (
	CurrencyPractice Currency = "practice"
	CurrencyReal     Currency = "real"
)

// Validate returns ErrInvalidCurrency for anything but practice or real
func (c Currency) Validate() error {
	switch c {
	case CurrencyPractice, CurrencyReal:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, string(c))
	}
}

// IsReal reports whether the currency counts against the daily spend cap
func (c Currency) IsReal() bool {
	return c == CurrencyReal
}
