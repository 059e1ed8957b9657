package application

import (
	"context"

	"wagerbook/domain/entities"
	"wagerbook/domain/services"

	log "github.com/sirupsen/logrus"
)

// MarketHandler applies feed refreshes and administrative actions to markets
type MarketHandler struct {
	atomic *Atomic
	policy services.LedgerPolicy
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(atomic *Atomic, policy services.LedgerPolicy) *MarketHandler {
	return &MarketHandler{
		atomic: atomic,
		policy: policy,
	}
}

func (h *MarketHandler) GetMarket(ctx context.Context, marketID string) (*entities.Market, error) {
	var market *entities.Market
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		var err error
		market, err = newDomainServices(uow, h.policy).markets.GetMarket(ctx, marketID)
		return err
	})
	return market, err
}

// ApplyFeedUpdate merges one upstream refresh. Lock and finalization are
// published as market changes once the unit commits.
func (h *MarketHandler) ApplyFeedUpdate(ctx context.Context, update entities.FeedUpdate) (*entities.Market, entities.MarketChanges, error) {
	var market *entities.Market
	var changes entities.MarketChanges
	err := h.atomic.Update(ctx, "apply_feed_update", func(uow UnitOfWork) error {
		var err error
		market, changes, err = newDomainServices(uow, h.policy).markets.ApplyFeedUpdate(ctx, update)
		return err
	})
	if err != nil {
		return nil, changes, err
	}
	return market, changes, nil
}

// SetOverrides applies administrative overrides to a market
func (h *MarketHandler) SetOverrides(ctx context.Context, marketID string, patch entities.OverridesPatch) (*entities.Market, error) {
	var market *entities.Market
	err := h.atomic.Update(ctx, "set_market_overrides", func(uow UnitOfWork) error {
		var err error
		market, _, err = newDomainServices(uow, h.policy).markets.SetOverrides(ctx, marketID, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return market, nil
}

// LockMarket closes a market to new wagers and freezes its line
func (h *MarketHandler) LockMarket(ctx context.Context, marketID string) (*entities.Market, bool, error) {
	var market *entities.Market
	var locked bool
	err := h.atomic.Update(ctx, "lock_market", func(uow UnitOfWork) error {
		var err error
		market, locked, err = newDomainServices(uow, h.policy).markets.LockMarket(ctx, marketID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if locked {
		log.WithFields(log.Fields{
			"marketID":   marketID,
			"lockedLine": market.MatchingLine().String(),
		}).Info("Market locked")
	}
	return market, locked, nil
}

// LockDueMarkets locks every open market whose start time has passed
func (h *MarketHandler) LockDueMarkets(ctx context.Context) (int, error) {
	var due []string
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		var err error
		due, err = uow.MarketRepository().GetDueForLock(ctx, h.policy.Now())
		return err
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, marketID := range due {
		_, locked, err := h.LockMarket(ctx, marketID)
		if err != nil {
			log.WithFields(log.Fields{
				"marketID": marketID,
				"error":    err,
			}).Error("Failed to lock due market")
			continue
		}
		if locked {
			count++
		}
	}
	return count, nil
}
