package services

import (
	"context"
	"fmt"

	"wagerbook/domain/entities"
	"wagerbook/domain/interfaces"
)

const maxHistoryLimit = 500

type transactionLogService struct {
	userRepo        interfaces.UserRepository
	wagerRepo       interfaces.WagerRepository
	transactionRepo interfaces.TransactionRepository
}

// NewTransactionLogService creates a read-side service over the ledger
func NewTransactionLogService(userRepo interfaces.UserRepository, wagerRepo interfaces.WagerRepository, transactionRepo interfaces.TransactionRepository) interfaces.TransactionLogService {
	return &transactionLogService{
		userRepo:        userRepo,
		wagerRepo:       wagerRepo,
		transactionRepo: transactionRepo,
	}
}

func (s *transactionLogService) History(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	txs, err := s.transactionRepo.GetByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return txs, nil
}

func (s *transactionLogService) WagerEntries(ctx context.Context, wagerID string) ([]*entities.Transaction, error) {
	txs, err := s.transactionRepo.GetByWager(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager transactions: %w", err)
	}
	return txs, nil
}

func (s *transactionLogService) Fills(ctx context.Context, wagerID string) ([]*entities.WagerFill, error) {
	fills, err := s.wagerRepo.GetFills(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager fills: %w", err)
	}
	return fills, nil
}

// Audit replays the ledger for a user and compares the sums with the stored balances
func (s *transactionLogService) Audit(ctx context.Context, userID string) (*entities.AuditResult, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", entities.ErrNotFound, userID)
	}

	sums, err := s.transactionRepo.SumByCurrency(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}

	result := &entities.AuditResult{UserID: userID}
	for _, currency := range []entities.Currency{entities.CurrencyPractice, entities.CurrencyReal} {
		result.Currencies = append(result.Currencies, entities.CurrencyAudit{
			Currency:  currency,
			Balance:   user.Balance(currency),
			LedgerSum: sums[currency],
		})
	}
	return result, nil
}

func (s *transactionLogService) Stats(ctx context.Context, userID string) (*entities.UserStats, error) {
	stats, err := s.wagerRepo.GetStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager stats: %w", err)
	}
	return stats, nil
}
