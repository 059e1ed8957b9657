package application

import (
	"context"
	"sync"
	"time"

	"wagerbook/domain/interfaces"
	"wagerbook/domain/testhelpers"
)

// fakeUnitOfWork hands out shared mocks and records its lifecycle
type fakeUnitOfWork struct {
	factory    *fakeUnitOfWorkFactory
	began      bool
	committed  bool
	rolledBack bool
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error {
	u.began = true
	return nil
}

func (u *fakeUnitOfWork) Commit() error {
	f := u.factory
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	if len(f.commitErrs) > 0 {
		err := f.commitErrs[0]
		f.commitErrs = f.commitErrs[1:]
		if err != nil {
			return err
		}
	}
	u.committed = true
	return nil
}

func (u *fakeUnitOfWork) Rollback() error {
	if !u.committed {
		u.rolledBack = true
	}
	return nil
}

func (u *fakeUnitOfWork) UserRepository() interfaces.UserRepository { return u.factory.UserRepo }
func (u *fakeUnitOfWork) WagerRepository() interfaces.WagerRepository {
	return u.factory.WagerRepo
}
func (u *fakeUnitOfWork) TransactionRepository() interfaces.TransactionRepository {
	return u.factory.TransactionRepo
}
func (u *fakeUnitOfWork) MarketRepository() interfaces.MarketRepository { return u.factory.MarketRepo }
func (u *fakeUnitOfWork) EventBus() interfaces.EventPublisher           { return u.factory.EventPublisher }

type fakeUnitOfWorkFactory struct {
	mu         sync.Mutex
	created    []*fakeUnitOfWork
	commits    int
	commitErrs []error

	UserRepo        *testhelpers.MockUserRepository
	WagerRepo       *testhelpers.MockWagerRepository
	TransactionRepo *testhelpers.MockTransactionRepository
	MarketRepo      *testhelpers.MockMarketRepository
	EventPublisher  *testhelpers.MockEventPublisher
}

func newFakeUnitOfWorkFactory() *fakeUnitOfWorkFactory {
	return &fakeUnitOfWorkFactory{
		UserRepo:        &testhelpers.MockUserRepository{},
		WagerRepo:       &testhelpers.MockWagerRepository{},
		TransactionRepo: &testhelpers.MockTransactionRepository{},
		MarketRepo:      &testhelpers.MockMarketRepository{},
		EventPublisher:  &testhelpers.MockEventPublisher{},
	}
}

func (f *fakeUnitOfWorkFactory) Create() UnitOfWork {
	f.mu.Lock()
	defer f.mu.Unlock()
	uow := &fakeUnitOfWork{factory: f}
	f.created = append(f.created, uow)
	return uow
}

func testRetryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

type recordingObserver struct {
	ops      []string
	attempts []int
	errs     []error
}

func (o *recordingObserver) ObserveAtomic(ctx context.Context, op string, attempts int, duration time.Duration, err error) {
	o.ops = append(o.ops, op)
	o.attempts = append(o.attempts, attempts)
	o.errs = append(o.errs, err)
}
