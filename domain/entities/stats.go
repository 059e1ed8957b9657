package entities

// CurrencyStats aggregates a user's wagers in one currency
type CurrencyStats struct {
	Currency  Currency `json:"currency"`
	Placed    int64    `json:"placed"`
	Open      int64    `json:"open"`
	Won       int64    `json:"won"`
	Lost      int64    `json:"lost"`
	Pushed    int64    `json:"pushed"`
	Cancelled int64    `json:"cancelled"`
	Staked    int64    `json:"staked"`
	Refunded  int64    `json:"refunded"`
	Returned  int64    `json:"returned"`
}

// Net is what the user is up or down on settled and refunded stake
func (s CurrencyStats) Net() int64 {
	return s.Returned + s.Refunded - s.Staked
}

// UserStats groups per-currency statistics
type UserStats struct {
	UserID     string          `json:"userId"`
	ByCurrency []CurrencyStats `json:"byCurrency"`
}

// CurrencyAudit compares a balance against the replayed ledger
type CurrencyAudit struct {
	Currency  Currency `json:"currency"`
	Balance   int64    `json:"balance"`
	LedgerSum int64    `json:"ledgerSum"`
}

// Drift is the difference between balance and ledger; zero when consistent
func (a CurrencyAudit) Drift() int64 {
	return a.Balance - a.LedgerSum
}

// AuditResult is a per-user ledger replay
type AuditResult struct {
	UserID     string          `json:"userId"`
	Currencies []CurrencyAudit `json:"currencies"`
}

// Balanced reports whether every currency replays to its balance
func (r *AuditResult) Balanced() bool {
	for _, c := range r.Currencies {
		if c.Drift() != 0 {
			return false
		}
	}
	return true
}
