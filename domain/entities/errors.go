package entities

import "errors"

// Ledger error taxonomy. Callers classify with errors.Is; every service wraps
// these with context using %w.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDailyLimitExceeded = errors.New("daily real spend limit exceeded")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrInvalidLine        = errors.New("invalid line")
	ErrMarketLocked       = errors.New("market is locked")
	ErrMarketNotFinal     = errors.New("market has no final score")
	ErrNotCancellable     = errors.New("wager has no unmatched remainder to cancel")
	ErrAlreadySettled     = errors.New("wager already settled")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")

	// ErrStoreConflict is transient: a concurrent writer changed a record after it was read.
	ErrStoreConflict = errors.New("store conflict")
	// ErrTransactionFailed is returned once conflict retries are exhausted.
	ErrTransactionFailed = errors.New("transaction failed")
)
