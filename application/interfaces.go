package application

import (
	"context"
	"time"

	"wagerbook/domain/entities"
	"wagerbook/domain/events"
	"wagerbook/domain/interfaces"
)

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes buffered events
	Commit() error

	// Rollback rolls back the transaction and discards buffered events
	Rollback() error

	// Repository getters
	UserRepository() interfaces.UserRepository
	WagerRepository() interfaces.WagerRepository
	TransactionRepository() interfaces.TransactionRepository
	MarketRepository() interfaces.MarketRepository
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// TransactionalEventPublisher buffers events until the surrounding transaction finishes
type TransactionalEventPublisher interface {
	interfaces.EventPublisher
	Flush(ctx context.Context) error
	Discard()
}

// BalanceCache caches balance views for display. Misses and errors fall back to the store.
// Every invalidation bumps a per-user generation; Set only writes when the
// generation read before the store read is still current.
type BalanceCache interface {
	Get(ctx context.Context, userID string) (*entities.User, bool)
	Generation(ctx context.Context, userID string) (int64, bool)
	Set(ctx context.Context, user *entities.User, generation int64)
	Invalidate(ctx context.Context, userID string)
}

// MarketChangeSource delivers committed market changes to in-process consumers
type MarketChangeSource interface {
	// Subscribe returns a channel of changes and a function that ends the subscription
	Subscribe() (<-chan events.MarketChangedEvent, func())
}

// AtomicObserver receives the result of every atomic update
type AtomicObserver interface {
	ObserveAtomic(ctx context.Context, op string, attempts int, duration time.Duration, err error)
}
