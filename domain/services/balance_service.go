package services

import (
	"context"
	"fmt"
	"time"

	"wagerbook/domain/entities"
	"wagerbook/domain/interfaces"
	"wagerbook/domain/utils"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type balanceService struct {
	userRepo        interfaces.UserRepository
	transactionRepo interfaces.TransactionRepository
	eventPublisher  interfaces.EventPublisher
	policy          LedgerPolicy
}

// NewBalanceService creates a balance service bound to one unit of work's repositories
func NewBalanceService(userRepo interfaces.UserRepository, transactionRepo interfaces.TransactionRepository, eventPublisher interfaces.EventPublisher, policy LedgerPolicy) interfaces.BalanceService {
	return &balanceService{
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		eventPublisher:  eventPublisher,
		policy:          policy,
	}
}

func (s *balanceService) AdjustBalance(ctx context.Context, userID string, currency entities.Currency, delta int64, entry entities.LedgerEntry) (*entities.Transaction, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: balance adjustment must be non-zero", entities.ErrInvalidAmount)
	}
	return s.apply(ctx, userID, currency, delta, entry, nil)
}

func (s *balanceService) DebitStake(ctx context.Context, userID string, currency entities.Currency, amount int64, wagerID string) (*entities.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: stake must be positive", entities.ErrInvalidAmount)
	}

	entry := entities.LedgerEntry{
		Kind:        entities.TransactionKindDebit,
		WagerID:     &wagerID,
		Description: fmt.Sprintf("Stake for wager %s", wagerID),
	}

	var chargeSpend func(*entities.User) error
	if currency.IsReal() {
		chargeSpend = func(u *entities.User) error {
			return u.ChargeDailyRealSpend(amount, s.policy.today(), s.policy.DailyRealLimit)
		}
	}

	return s.apply(ctx, userID, currency, -amount, entry, chargeSpend)
}

func (s *balanceService) RefundStake(ctx context.Context, userID string, currency entities.Currency, amount int64, wagerID string, placedAt time.Time, restoreSpend bool, description string) (*entities.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: refund must be positive", entities.ErrInvalidAmount)
	}

	entry := entities.LedgerEntry{
		Kind:        entities.TransactionKindRefund,
		WagerID:     &wagerID,
		Description: description,
	}

	var restore func(*entities.User) error
	if restoreSpend && currency.IsReal() {
		placedOn := s.policy.dateOf(placedAt)
		restore = func(u *entities.User) error {
			if !u.RestoreDailyRealSpend(amount, placedOn) {
				log.WithFields(log.Fields{
					"userID":   userID,
					"wagerID":  wagerID,
					"placedOn": placedOn.Format(time.DateOnly),
				}).Debug("Refunded stake was placed on an earlier day, spend headroom unchanged")
			}
			return nil
		}
	}

	return s.apply(ctx, userID, currency, amount, entry, restore)
}

// apply is the read-modify-write shared by every balance mutation. The user
// write is version checked, so a concurrent writer surfaces as ErrStoreConflict.
func (s *balanceService) apply(ctx context.Context, userID string, currency entities.Currency, delta int64, entry entities.LedgerEntry, mutate func(*entities.User) error) (*entities.Transaction, error) {
	if err := currency.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", entities.ErrNotFound, userID)
	}

	if mutate != nil {
		if err := mutate(user); err != nil {
			return nil, err
		}
	}
	if err := user.ApplyDelta(currency, delta); err != nil {
		return nil, err
	}

	now := s.policy.now()
	user.UpdatedAt = now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user balance: %w", err)
	}

	tx := &entities.Transaction{
		ID:           uuid.New().String(),
		UserID:       userID,
		Kind:         entry.Kind,
		Currency:     currency,
		Amount:       delta,
		BalanceAfter: user.Balance(currency),
		WagerID:      entry.WagerID,
		Status:       entities.TransactionStatusCompleted,
		Description:  entry.Description,
		CreatedAt:    now,
	}
	if err := utils.RecordTransaction(ctx, s.transactionRepo, s.eventPublisher, tx); err != nil {
		return nil, err
	}

	return tx, nil
}
