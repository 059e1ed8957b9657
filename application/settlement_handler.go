package application

import (
	"context"
	"errors"
	"fmt"

	"wagerbook/domain/entities"
	"wagerbook/domain/services"

	log "github.com/sirupsen/logrus"
)

var unresolvedStatuses = []entities.WagerStatus{
	entities.WagerStatusPending,
	entities.WagerStatusPartiallyMatched,
	entities.WagerStatusFullyMatched,
	entities.WagerStatusActive,
}

var lockableStatuses = []entities.WagerStatus{
	entities.WagerStatusPending,
	entities.WagerStatusPartiallyMatched,
	entities.WagerStatusFullyMatched,
}

// MarketSettlementSummary reports one settlement pass over a market
type MarketSettlementSummary struct {
	MarketID      string `json:"marketId"`
	Settled       int    `json:"settled"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	MarketSettled bool   `json:"marketSettled"`
}

// SettlementHandler moves wagers through lock and settlement. Each wager is
// its own unit of work so one failure never blocks the rest of the market.
type SettlementHandler struct {
	atomic *Atomic
	policy services.LedgerPolicy
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(atomic *Atomic, policy services.LedgerPolicy) *SettlementHandler {
	return &SettlementHandler{
		atomic: atomic,
		policy: policy,
	}
}

// ReleaseLockedRemainders applies the lock transition to every open wager on a
// locked market and returns how many wagers changed
func (h *SettlementHandler) ReleaseLockedRemainders(ctx context.Context, marketID string) (int, error) {
	var wagers []*entities.Wager
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		market, err := newDomainServices(uow, h.policy).markets.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if !market.IsLocked {
			return nil
		}
		wagers, err = uow.WagerRepository().GetByMarket(ctx, marketID, lockableStatuses...)
		return err
	})
	if err != nil {
		return 0, err
	}

	released := 0
	for _, wager := range wagers {
		err := h.atomic.Update(ctx, "apply_market_lock", func(uow UnitOfWork) error {
			_, err := newDomainServices(uow, h.policy).wagers.ApplyMarketLock(ctx, wager.ID)
			return err
		})
		if err != nil {
			log.WithFields(log.Fields{
				"marketID": marketID,
				"wagerID":  wager.ID,
				"error":    err,
			}).Error("Failed to apply market lock to wager")
			continue
		}
		released++
	}

	if len(wagers) > 0 {
		log.WithFields(log.Fields{
			"marketID": marketID,
			"wagers":   len(wagers),
			"released": released,
		}).Info("Applied market lock to open wagers")
	}
	return released, nil
}

// SettleMarket settles every unresolved wager on a finalized market and
// stamps the market settled once none remain. Running it again is a no-op.
func (h *SettlementHandler) SettleMarket(ctx context.Context, marketID string) (*MarketSettlementSummary, error) {
	var wagers []*entities.Wager
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		market, err := newDomainServices(uow, h.policy).markets.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if !market.IsFinal() {
			return fmt.Errorf("%w: market %s", entities.ErrMarketNotFinal, marketID)
		}
		wagers, err = uow.WagerRepository().GetByMarket(ctx, marketID, unresolvedStatuses...)
		return err
	})
	if err != nil {
		return nil, err
	}

	summary := &MarketSettlementSummary{MarketID: marketID}
	for _, wager := range wagers {
		err := h.atomic.Update(ctx, "settle_wager", func(uow UnitOfWork) error {
			svc := newDomainServices(uow, h.policy)
			market, err := svc.markets.GetMarket(ctx, marketID)
			if err != nil {
				return err
			}
			_, err = svc.settlement.SettleWager(ctx, wager.ID, market)
			return err
		})
		switch {
		case err == nil:
			summary.Settled++
		case errors.Is(err, entities.ErrAlreadySettled):
			summary.Skipped++
		default:
			summary.Failed++
			log.WithFields(log.Fields{
				"marketID": marketID,
				"wagerID":  wager.ID,
				"error":    err,
			}).Error("Failed to settle wager")
		}
	}

	err = h.atomic.Update(ctx, "mark_market_settled", func(uow UnitOfWork) error {
		var err error
		summary.MarketSettled, err = newDomainServices(uow, h.policy).markets.MarkSettled(ctx, marketID)
		return err
	})
	if err != nil {
		return summary, err
	}

	log.WithFields(log.Fields{
		"marketID":      marketID,
		"settled":       summary.Settled,
		"skipped":       summary.Skipped,
		"failed":        summary.Failed,
		"marketSettled": summary.MarketSettled,
	}).Info("Market settlement pass complete")

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%d of %d wagers failed to settle on market %s", summary.Failed, len(wagers), marketID)
	}
	return summary, nil
}

// Reconcile finishes lock and settlement work left behind by a previous run
func (h *SettlementHandler) Reconcile(ctx context.Context) error {
	var locked, finalized []string
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		var err error
		if locked, err = uow.MarketRepository().GetLockedWithOpenWagers(ctx); err != nil {
			return err
		}
		finalized, err = uow.MarketRepository().GetFinalizedUnsettled(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to find markets to reconcile: %w", err)
	}

	log.WithFields(log.Fields{
		"lockedWithOpenWagers": len(locked),
		"finalizedUnsettled":   len(finalized),
	}).Info("Reconciling markets")

	var errs []error
	for _, marketID := range locked {
		if _, err := h.ReleaseLockedRemainders(ctx, marketID); err != nil {
			errs = append(errs, err)
		}
	}
	for _, marketID := range finalized {
		if _, err := h.SettleMarket(ctx, marketID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
