package interfaces

import (
	"context"
	"time"

	"wagerbook/domain/entities"
	"wagerbook/domain/events"

	"github.com/shopspring/decimal"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID returns nil, nil when the user does not exist
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// Create inserts a new user
	Create(ctx context.Context, user *entities.User) error

	// Update writes balances and daily spend if the stored version still matches
	// user.Version, returning ErrStoreConflict otherwise. Version is bumped on success.
	Update(ctx context.Context, user *entities.User) error
}

// WagerRepository defines the interface for wager data access
type WagerRepository interface {
	// Create inserts a new wager
	Create(ctx context.Context, wager *entities.Wager) error

	// GetByID returns nil, nil when the wager does not exist
	GetByID(ctx context.Context, id string) (*entities.Wager, error)

	// Update writes a wager if its version still matches, bumping it on success
	Update(ctx context.Context, wager *entities.Wager) error

	// GetOpenCandidates returns open wagers on one side of a book in FIFO order,
	// excluding the given user's own wagers
	GetOpenCandidates(ctx context.Context, marketID string, currency entities.Currency, isHomeSide bool, excludeUserID string) ([]*entities.Wager, error)

	// GetByMarket returns wagers on a market, optionally filtered by status
	GetByMarket(ctx context.Context, marketID string, statuses ...entities.WagerStatus) ([]*entities.Wager, error)

	// GetByUser returns a user's most recent wagers
	GetByUser(ctx context.Context, userID string, limit int) ([]*entities.Wager, error)

	// UpdateCurrentLine refreshes the display line of open wagers on a market
	UpdateCurrentLine(ctx context.Context, marketID string, line decimal.Decimal) error

	// RecordFill appends a fill
	RecordFill(ctx context.Context, fill *entities.WagerFill) error

	// GetFills returns fills where the wager was taker or maker
	GetFills(ctx context.Context, wagerID string) ([]*entities.WagerFill, error)

	// GetStats aggregates a user's wagers by currency
	GetStats(ctx context.Context, userID string) (*entities.UserStats, error)
}

// TransactionRepository defines the append-only ledger
type TransactionRepository interface {
	// Record appends an entry, assigning ID and CreatedAt when unset
	Record(ctx context.Context, tx *entities.Transaction) error

	// GetByUser returns a user's most recent entries
	GetByUser(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error)

	// GetByWager returns all entries referencing a wager in order
	GetByWager(ctx context.Context, wagerID string) ([]*entities.Transaction, error)

	// SumByCurrency returns the signed sum of a user's entries per currency
	SumByCurrency(ctx context.Context, userID string) (map[entities.Currency]int64, error)
}

// MarketRepository defines the interface for market data access
type MarketRepository interface {
	// GetByID returns nil, nil when the market does not exist
	GetByID(ctx context.Context, id string) (*entities.Market, error)

	// GetByIDForShare reads a market and holds a share lock until the unit of work
	// ends, so a concurrent lock or finalization waits for it
	GetByIDForShare(ctx context.Context, id string) (*entities.Market, error)

	// Create inserts a new market
	Create(ctx context.Context, market *entities.Market) error

	// Update writes a market if its version still matches, bumping it on success
	Update(ctx context.Context, market *entities.Market) error

	// GetDueForLock returns ids of unlocked markets whose start time is at or before now
	GetDueForLock(ctx context.Context, now time.Time) ([]string, error)

	// GetLockedWithOpenWagers returns ids of locked markets that still have open or fully matched wagers
	GetLockedWithOpenWagers(ctx context.Context) ([]string, error)

	// GetFinalizedUnsettled returns ids of markets with a final score but no settlement stamp
	GetFinalizedUnsettled(ctx context.Context) ([]string, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(event events.Event) error
}
