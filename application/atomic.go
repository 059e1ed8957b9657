package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wagerbook/domain/entities"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// RetryPolicy bounds how often a conflicting unit of work is re-run
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns five attempts starting at 10ms
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Atomic runs functions inside a unit of work. Update retries the whole unit
// when the store reports a conflict.
type Atomic struct {
	uowFactory UnitOfWorkFactory
	retry      RetryPolicy
	observer   AtomicObserver
}

// NewAtomic creates an Atomic bound to a unit of work factory
func NewAtomic(uowFactory UnitOfWorkFactory, retry RetryPolicy) *Atomic {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Atomic{
		uowFactory: uowFactory,
		retry:      retry,
	}
}

// WithObserver attaches an observer notified after every Update
func (a *Atomic) WithObserver(observer AtomicObserver) *Atomic {
	a.observer = observer
	return a
}

// Update runs fn in a fresh unit of work and commits it. Either every write
// made by fn becomes visible or none does. On ErrStoreConflict the unit is
// rolled back and fn is re-run from scratch; once attempts are exhausted the
// error wraps ErrTransactionFailed. Any other error is returned immediately.
func (a *Atomic) Update(ctx context.Context, op string, fn func(uow UnitOfWork) error) error {
	start := time.Now()
	attempts := 0

	operation := func() error {
		attempts++
		err := a.runOnce(ctx, fn, true)
		if err == nil {
			return nil
		}
		if errors.Is(err, entities.ErrStoreConflict) {
			log.WithFields(log.Fields{
				"op":      op,
				"attempt": attempts,
				"error":   err,
			}).Debug("Store conflict, retrying unit of work")
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.retry.InitialInterval
	if a.retry.MaxInterval > 0 {
		policy.MaxInterval = a.retry.MaxInterval
	}
	policy.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(a.retry.MaxAttempts-1)), ctx))
	if err != nil && errors.Is(err, entities.ErrStoreConflict) {
		log.WithFields(log.Fields{
			"op":       op,
			"attempts": attempts,
		}).Warn("Unit of work abandoned after repeated conflicts")
		err = fmt.Errorf("%w: %s after %d attempts: %w", entities.ErrTransactionFailed, op, attempts, err)
	}

	if a.observer != nil {
		a.observer.ObserveAtomic(ctx, op, attempts, time.Since(start), err)
	}
	return err
}

// View runs fn once in a unit of work that is always rolled back
func (a *Atomic) View(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return a.runOnce(ctx, fn, false)
}

func (a *Atomic) runOnce(ctx context.Context, fn func(uow UnitOfWork) error, commit bool) error {
	uow := a.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	if !commit {
		return nil
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
