package entities

import "time"

// TransactionKind classifies a ledger entry
type TransactionKind string

const (
	TransactionKindDebit      TransactionKind = "debit"
	TransactionKindCredit     TransactionKind = "credit"
	TransactionKindRefund     TransactionKind = "refund"
	TransactionKindAdjustment TransactionKind = "adjustment"
)

// TransactionStatus is recorded on every entry; entries are written only once committed
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
)

// Transaction is an append-only ledger entry. Amount is signed: debits are
// negative, credits and refunds positive.
type Transaction struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId"`
	Kind         TransactionKind   `json:"kind"`
	Currency     Currency          `json:"currency"`
	Amount       int64             `json:"amount"`
	BalanceAfter int64             `json:"balanceAfter"`
	WagerID      *string           `json:"wagerId,omitempty"`
	Status       TransactionStatus `json:"status"`
	Description  string            `json:"description"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// IsWagerRelated reports whether the entry references a wager
func (t *Transaction) IsWagerRelated() bool {
	return t.WagerID != nil
}

// LedgerEntry describes the entry written alongside a balance change
type LedgerEntry struct {
	Kind        TransactionKind
	WagerID     *string
	Description string
}
