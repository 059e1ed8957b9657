package application

import (
	"context"
	"fmt"

	"wagerbook/domain/entities"
	"wagerbook/domain/services"

	log "github.com/sirupsen/logrus"
)

// AccountHandler serves user provisioning, balances and ledger reads
type AccountHandler struct {
	atomic *Atomic
	policy services.LedgerPolicy
	cache  BalanceCache
}

// NewAccountHandler creates a new account handler. cache may be nil.
func NewAccountHandler(atomic *Atomic, policy services.LedgerPolicy, cache BalanceCache) *AccountHandler {
	return &AccountHandler{
		atomic: atomic,
		policy: policy,
		cache:  cache,
	}
}

// EnsureUser returns the user, creating it with the starting practice balance on first use
func (h *AccountHandler) EnsureUser(ctx context.Context, userID string) (*entities.User, bool, error) {
	var user *entities.User
	var created bool
	err := h.atomic.Update(ctx, "ensure_user", func(uow UnitOfWork) error {
		var err error
		user, created, err = newDomainServices(uow, h.policy).users.EnsureUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

// GetBalance returns the user's balances, served from the display cache when possible
func (h *AccountHandler) GetBalance(ctx context.Context, userID string) (*entities.User, error) {
	var generation int64
	cacheable := false
	if h.cache != nil {
		if user, ok := h.cache.Get(ctx, userID); ok {
			user.DailyRealSpend = user.SpendToday(h.policy.Today())
			return user, nil
		}
		generation, cacheable = h.cache.Generation(ctx, userID)
	}

	var user *entities.User
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		var err error
		user, err = newDomainServices(uow, h.policy).users.GetUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if cacheable {
		h.cache.Set(ctx, user, generation)
	}
	return user, nil
}

// History returns the user's most recent ledger entries
func (h *AccountHandler) History(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	var txs []*entities.Transaction
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		var err error
		txs, err = newDomainServices(uow, h.policy).ledger.History(ctx, userID, limit)
		return err
	})
	return txs, err
}

// Stats returns the user's per-currency wager statistics
func (h *AccountHandler) Stats(ctx context.Context, userID string) (*entities.UserStats, error) {
	var stats *entities.UserStats
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		var err error
		stats, err = newDomainServices(uow, h.policy).ledger.Stats(ctx, userID)
		return err
	})
	return stats, err
}

// Audit replays the user's ledger against the stored balances
func (h *AccountHandler) Audit(ctx context.Context, userID string) (*entities.AuditResult, error) {
	var result *entities.AuditResult
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		var err error
		result, err = newDomainServices(uow, h.policy).ledger.Audit(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !result.Balanced() {
		log.WithFields(log.Fields{
			"userID":     userID,
			"currencies": result.Currencies,
		}).Error("Ledger does not replay to stored balance")
	}
	return result, nil
}

// AdjustBalance applies an administrative balance change recorded as an adjustment entry
func (h *AccountHandler) AdjustBalance(ctx context.Context, userID string, currency entities.Currency, delta int64, description string) (*entities.Transaction, error) {
	if description == "" {
		description = fmt.Sprintf("Administrative adjustment of %d", delta)
	}

	var tx *entities.Transaction
	err := h.atomic.Update(ctx, "adjust_balance", func(uow UnitOfWork) error {
		var err error
		tx, err = newDomainServices(uow, h.policy).balance.AdjustBalance(ctx, userID, currency, delta, entities.LedgerEntry{
			Kind:        entities.TransactionKindAdjustment,
			Description: description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"userID":       userID,
		"currency":     currency,
		"delta":        delta,
		"balanceAfter": tx.BalanceAfter,
	}).Info("Applied balance adjustment")
	return tx, nil
}
