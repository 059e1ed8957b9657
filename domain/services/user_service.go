package services

import (
	"context"
	"fmt"

	"wagerbook/domain/entities"
	"wagerbook/domain/events"
	"wagerbook/domain/interfaces"
	"wagerbook/domain/utils"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type userService struct {
	userRepo        interfaces.UserRepository
	transactionRepo interfaces.TransactionRepository
	eventPublisher  interfaces.EventPublisher
	policy          LedgerPolicy
}

// NewUserService creates a user service bound to one unit of work's repositories
func NewUserService(userRepo interfaces.UserRepository, transactionRepo interfaces.TransactionRepository, eventPublisher interfaces.EventPublisher, policy LedgerPolicy) interfaces.UserService {
	return &userService{
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		eventPublisher:  eventPublisher,
		policy:          policy,
	}
}

// EnsureUser returns the user, creating it with the starting practice balance on first use.
// The opening balance is written as an adjustment so the ledger replays to the balance.
func (s *userService) EnsureUser(ctx context.Context, userID string) (*entities.User, bool, error) {
	if userID == "" {
		return nil, false, fmt.Errorf("user id is required")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}
	if user != nil {
		return user, false, nil
	}

	now := s.policy.now()
	user = &entities.User{
		ID:              userID,
		PracticeBalance: s.policy.StartingPracticeBalance,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	if user.PracticeBalance > 0 {
		opening := &entities.Transaction{
			ID:           uuid.New().String(),
			UserID:       userID,
			Kind:         entities.TransactionKindAdjustment,
			Currency:     entities.CurrencyPractice,
			Amount:       user.PracticeBalance,
			BalanceAfter: user.PracticeBalance,
			Description:  "Opening practice balance",
			CreatedAt:    now,
		}
		if err := utils.RecordTransaction(ctx, s.transactionRepo, s.eventPublisher, opening); err != nil {
			return nil, false, err
		}
	}

	if err := s.eventPublisher.Publish(events.UserCreatedEvent{
		UserID:                 userID,
		InitialPracticeBalance: user.PracticeBalance,
	}); err != nil {
		log.WithError(err).Error("Failed to publish user created event")
	}

	log.WithFields(log.Fields{
		"userID":          userID,
		"practiceBalance": user.PracticeBalance,
	}).Info("Provisioned new user")

	return user, true, nil
}

// GetUser returns the user as displayed: spend recorded on an earlier day reads as zero
func (s *userService) GetUser(ctx context.Context, userID string) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", entities.ErrNotFound, userID)
	}
	user.DailyRealSpend = user.SpendToday(s.policy.today())
	return user, nil
}
