package interfaces

import (
	"context"
	"time"

	"wagerbook/domain/entities"
)

// BalanceService mutates user balances. Every mutation writes exactly one ledger entry.
type BalanceService interface {
	// AdjustBalance applies delta to one currency, failing with ErrInsufficientFunds
	// if the balance would go negative
	AdjustBalance(ctx context.Context, userID string, currency entities.Currency, delta int64, entry entities.LedgerEntry) (*entities.Transaction, error)

	// DebitStake reserves a wager stake; for real currency the daily spend charge
	// is applied in the same user write
	DebitStake(ctx context.Context, userID string, currency entities.Currency, amount int64, wagerID string) (*entities.Transaction, error)

	// RefundStake returns stake to the user. When restoreSpend is set and the stake
	// is real currency placed on the tracked day, daily spend headroom is restored.
	RefundStake(ctx context.Context, userID string, currency entities.Currency, amount int64, wagerID string, placedAt time.Time, restoreSpend bool, description string) (*entities.Transaction, error)
}

// TransactionLogService reads the append-only ledger
type TransactionLogService interface {
	History(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error)
	WagerEntries(ctx context.Context, wagerID string) ([]*entities.Transaction, error)
	Fills(ctx context.Context, wagerID string) ([]*entities.WagerFill, error)
	Audit(ctx context.Context, userID string) (*entities.AuditResult, error)
	Stats(ctx context.Context, userID string) (*entities.UserStats, error)
}

// SubmitWagerRequest is a request to place a wager
type SubmitWagerRequest struct {
	UserID     string            `json:"userId"`
	MarketID   string            `json:"marketId"`
	Currency   entities.Currency `json:"currency"`
	Amount     int64             `json:"amount"`
	IsHomeSide bool              `json:"isHomeSide"`
}

// SubmitWagerResult is the accepted wager and the fills it produced
type SubmitWagerResult struct {
	Wager *entities.Wager       `json:"wager"`
	Fills []*entities.WagerFill `json:"fills"`
	Debit *entities.Transaction `json:"debit"`
}

// CancelWagerResult is the wager after its remainder was released
type CancelWagerResult struct {
	Wager  *entities.Wager       `json:"wager"`
	Refund *entities.Transaction `json:"refund,omitempty"`
}

// WagerService owns wager lifecycle transitions and matching
type WagerService interface {
	SubmitWager(ctx context.Context, req SubmitWagerRequest) (*SubmitWagerResult, error)
	CancelWager(ctx context.Context, userID, wagerID string, isAdmin bool) (*CancelWagerResult, error)
	// ApplyMarketLock moves one wager to its post-lock state, refunding any unmatched remainder
	ApplyMarketLock(ctx context.Context, wagerID string) (*CancelWagerResult, error)
	GetWager(ctx context.Context, wagerID, userID string, isAdmin bool) (*entities.Wager, error)
	ListUserWagers(ctx context.Context, userID string, limit int) ([]*entities.Wager, error)
}

// SettlementResult is the outcome of settling one wager
type SettlementResult struct {
	Wager   *entities.Wager            `json:"wager"`
	Amounts entities.SettlementAmounts `json:"amounts"`
}

// SettlementService resolves wagers on finalized markets
type SettlementService interface {
	SettleWager(ctx context.Context, wagerID string, market *entities.Market) (*SettlementResult, error)
}

// MarketFeedService merges upstream and administrative market data
type MarketFeedService interface {
	GetMarket(ctx context.Context, marketID string) (*entities.Market, error)
	ApplyFeedUpdate(ctx context.Context, update entities.FeedUpdate) (*entities.Market, entities.MarketChanges, error)
	SetOverrides(ctx context.Context, marketID string, patch entities.OverridesPatch) (*entities.Market, entities.MarketChanges, error)
	LockMarket(ctx context.Context, marketID string) (*entities.Market, bool, error)
	// MarkSettled stamps the market once every wager on it is terminal; it reports whether it did
	MarkSettled(ctx context.Context, marketID string) (bool, error)
}

// UserService provisions users
type UserService interface {
	EnsureUser(ctx context.Context, userID string) (*entities.User, bool, error)
	GetUser(ctx context.Context, userID string) (*entities.User, error)
}
