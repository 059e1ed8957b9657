package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WagerStatus represents where a wager is in its lifecycle
type WagerStatus string

const (
	WagerStatusPending          WagerStatus = "pending"
	WagerStatusPartiallyMatched WagerStatus = "partiallyMatched"
	WagerStatusFullyMatched     WagerStatus = "fullyMatched"
	WagerStatusActive           WagerStatus = "active"
	WagerStatusWon              WagerStatus = "won"
	WagerStatusLost             WagerStatus = "lost"
	WagerStatusPush             WagerStatus = "push"
	WagerStatusCancelled        WagerStatus = "cancelled"
)

// PayoutMultiplier is the total returned per unit of matched stake on a win
const PayoutMultiplier = 2

// IsTerminal reports whether the status can never change again
func (s WagerStatus) IsTerminal() bool {
	return s == WagerStatusWon || s == WagerStatusLost || s == WagerStatusPush || s == WagerStatusCancelled
}

// Wager is a stake on one side of a market
type Wager struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	MarketID        string          `json:"marketId"`
	Currency        Currency        `json:"currency"`
	Amount          int64           `json:"amount"`
	Side            string          `json:"side"`
	IsHomeSide      bool            `json:"isHomeSide"`
	RequestedLine   decimal.Decimal `json:"requestedLine"`
	CurrentLine     decimal.Decimal `json:"currentLine"`
	RemainingAmount int64           `json:"remainingAmount"`
	RefundedAmount  int64           `json:"refundedAmount"`
	Payout          int64           `json:"payout"`
	Status          WagerStatus     `json:"status"`
	Version         int64           `json:"-"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	SettledAt       *time.Time      `json:"settledAt,omitempty"`
}

// WagerFill records one match between a new wager (taker) and a resting wager (maker)
type WagerFill struct {
	ID           string    `json:"id"`
	MarketID     string    `json:"marketId"`
	TakerWagerID string    `json:"takerWagerId"`
	MakerWagerID string    `json:"makerWagerId"`
	Amount       int64     `json:"amount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsOpen reports whether the wager is resting in the book with unmatched stake
func (w *Wager) IsOpen() bool {
	return w.Status == WagerStatusPending || w.Status == WagerStatusPartiallyMatched
}

// CanBeCancelled reports whether the owner may cancel the unmatched remainder
func (w *Wager) CanBeCancelled() bool {
	return w.IsOpen() && w.UnrefundedRemainder() > 0
}

// IsTerminal reports whether the wager has been resolved
func (w *Wager) IsTerminal() bool {
	return w.Status.IsTerminal()
}

// MatchedAmount is the stake backed by opposing wagers
func (w *Wager) MatchedAmount() int64 {
	return w.Amount - w.RemainingAmount
}

// UnrefundedRemainder is unmatched stake still held by the ledger
func (w *Wager) UnrefundedRemainder() int64 {
	return w.RemainingAmount - w.RefundedAmount
}

// IsOpposing reports whether other rests on the opposite side of the same book
func (w *Wager) IsOpposing(other *Wager) bool {
	return w.MarketID == other.MarketID &&
		w.Currency == other.Currency &&
		w.IsHomeSide != other.IsHomeSide
}

// Fill consumes amount of the unmatched remainder
func (w *Wager) Fill(amount int64, now time.Time) error {
	if !w.IsOpen() {
		return fmt.Errorf("cannot fill wager %s in status %s", w.ID, w.Status)
	}
	if amount <= 0 || amount > w.RemainingAmount {
		return fmt.Errorf("%w: fill of %d against remaining %d", ErrInvalidAmount, amount, w.RemainingAmount)
	}

	w.RemainingAmount -= amount
	if w.RemainingAmount == 0 {
		w.Status = WagerStatusFullyMatched
	} else {
		w.Status = WagerStatusPartiallyMatched
	}
	w.UpdatedAt = now
	return nil
}

// ReleaseRemainder takes the unmatched remainder off the book and returns the
// amount to refund. A wager with nothing matched becomes cancelled; one with a
// matched portion becomes active so that portion still settles.
func (w *Wager) ReleaseRemainder(now time.Time) (int64, error) {
	if !w.CanBeCancelled() {
		return 0, fmt.Errorf("%w: wager %s is %s", ErrNotCancellable, w.ID, w.Status)
	}

	refund := w.UnrefundedRemainder()
	w.RefundedAmount = w.RemainingAmount
	if w.MatchedAmount() == 0 {
		w.Status = WagerStatusCancelled
		w.SettledAt = &now
	} else {
		w.Status = WagerStatusActive
	}
	w.UpdatedAt = now
	return refund, nil
}

// Lock moves the wager to its post-lock state and returns the remainder to refund
func (w *Wager) Lock(now time.Time) (int64, error) {
	switch w.Status {
	case WagerStatusPending, WagerStatusPartiallyMatched:
		return w.ReleaseRemainder(now)
	case WagerStatusFullyMatched:
		w.Status = WagerStatusActive
		w.UpdatedAt = now
		return 0, nil
	default:
		return 0, nil
	}
}

// SettlementAmounts describes the balance effects of resolving a wager
type SettlementAmounts struct {
	Outcome         Outcome
	Payout          int64 // Credit for a win
	PushRefund      int64 // Matched stake returned on a push
	RemainderRefund int64 // Unmatched stake returned
}

// Settle resolves the wager against an outcome for its side. Unmatched stake
// is always refunded; a wager with nothing matched is cancelled.
func (w *Wager) Settle(outcome Outcome, now time.Time) (SettlementAmounts, error) {
	if w.IsTerminal() {
		return SettlementAmounts{}, fmt.Errorf("%w: wager %s is %s", ErrAlreadySettled, w.ID, w.Status)
	}

	amounts := SettlementAmounts{
		Outcome:         outcome,
		RemainderRefund: w.UnrefundedRemainder(),
	}
	w.RefundedAmount = w.RemainingAmount

	matched := w.MatchedAmount()
	switch {
	case matched == 0:
		amounts.Outcome = OutcomeVoid
		w.Status = WagerStatusCancelled
	case outcome == OutcomeWon:
		amounts.Payout = matched * PayoutMultiplier
		w.Payout = amounts.Payout
		w.Status = WagerStatusWon
	case outcome == OutcomeLost:
		w.Status = WagerStatusLost
	default:
		amounts.Outcome = OutcomePush
		amounts.PushRefund = matched
		w.Payout = matched
		w.Status = WagerStatusPush
	}

	w.UpdatedAt = now
	w.SettledAt = &now
	return amounts, nil
}
