package services

import (
	"context"
	"fmt"

	"wagerbook/domain/entities"
	"wagerbook/domain/events"
	"wagerbook/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

type marketFeedService struct {
	marketRepo     interfaces.MarketRepository
	wagerRepo      interfaces.WagerRepository
	eventPublisher interfaces.EventPublisher
	policy         LedgerPolicy
}

// NewMarketFeedService creates a market feed service bound to one unit of work's repositories
func NewMarketFeedService(marketRepo interfaces.MarketRepository, wagerRepo interfaces.WagerRepository, eventPublisher interfaces.EventPublisher, policy LedgerPolicy) interfaces.MarketFeedService {
	return &marketFeedService{
		marketRepo:     marketRepo,
		wagerRepo:      wagerRepo,
		eventPublisher: eventPublisher,
		policy:         policy,
	}
}

func (s *marketFeedService) GetMarket(ctx context.Context, marketID string) (*entities.Market, error) {
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, fmt.Errorf("%w: market %s", entities.ErrNotFound, marketID)
	}
	return market, nil
}

// ApplyFeedUpdate merges one upstream refresh into the stored market, creating it on first sight
func (s *marketFeedService) ApplyFeedUpdate(ctx context.Context, update entities.FeedUpdate) (*entities.Market, entities.MarketChanges, error) {
	if update.MarketID == "" {
		return nil, entities.MarketChanges{}, fmt.Errorf("feed update has no market id")
	}
	if update.Line != nil {
		if err := entities.ValidateLine(*update.Line); err != nil {
			return nil, entities.MarketChanges{}, err
		}
	}

	now := s.policy.now()
	market, err := s.marketRepo.GetByID(ctx, update.MarketID)
	if err != nil {
		return nil, entities.MarketChanges{}, fmt.Errorf("failed to get market: %w", err)
	}

	if market == nil {
		if update.SideA == nil || update.SideB == nil || update.StartTime == nil {
			return nil, entities.MarketChanges{}, fmt.Errorf("%w: unknown market %s needs sides and start time", entities.ErrNotFound, update.MarketID)
		}
		market = entities.NewMarketFromFeed(update, now)
		changes := market.ApplyFeed(update, now)
		if err := s.marketRepo.Create(ctx, market); err != nil {
			return nil, changes, fmt.Errorf("failed to create market: %w", err)
		}
		log.WithFields(log.Fields{
			"marketID": market.ID,
			"line":     market.Line.String(),
			"start":    market.StartTime,
		}).Info("Market created from feed")
		s.publishChanges(market, changes)
		return market, changes, nil
	}

	changes := market.ApplyFeed(update, now)
	s.logIgnored(market, changes)
	if !changes.Any() {
		return market, changes, nil
	}

	if err := s.persist(ctx, market, changes); err != nil {
		return nil, changes, err
	}
	return market, changes, nil
}

// SetOverrides applies administrative overrides, which later feed refreshes will not overwrite
func (s *marketFeedService) SetOverrides(ctx context.Context, marketID string, patch entities.OverridesPatch) (*entities.Market, entities.MarketChanges, error) {
	if patch.PreservedLine != nil && !patch.ClearPreservedLine {
		if err := entities.ValidateLine(*patch.PreservedLine); err != nil {
			return nil, entities.MarketChanges{}, err
		}
	}
	market, err := s.GetMarket(ctx, marketID)
	if err != nil {
		return nil, entities.MarketChanges{}, err
	}

	changes := market.ApplyOverrides(patch, s.policy.now())
	s.logIgnored(market, changes)
	if err := s.persist(ctx, market, changes); err != nil {
		return nil, changes, err
	}
	return market, changes, nil
}

// LockMarket closes a market to new wagers and freezes its line
func (s *marketFeedService) LockMarket(ctx context.Context, marketID string) (*entities.Market, bool, error) {
	market, err := s.GetMarket(ctx, marketID)
	if err != nil {
		return nil, false, err
	}
	if !market.Lock(s.policy.now()) {
		return market, false, nil
	}

	if err := s.persist(ctx, market, entities.MarketChanges{Locked: true}); err != nil {
		return nil, false, err
	}
	return market, true, nil
}

func (s *marketFeedService) MarkSettled(ctx context.Context, marketID string) (bool, error) {
	market, err := s.GetMarket(ctx, marketID)
	if err != nil {
		return false, err
	}
	if market.SettledAt != nil {
		return false, nil
	}
	if !market.IsFinal() {
		return false, fmt.Errorf("%w: market %s", entities.ErrMarketNotFinal, marketID)
	}

	open, err := s.wagerRepo.GetByMarket(ctx, marketID,
		entities.WagerStatusPending,
		entities.WagerStatusPartiallyMatched,
		entities.WagerStatusFullyMatched,
		entities.WagerStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("failed to get unsettled wagers: %w", err)
	}
	if len(open) > 0 {
		return false, nil
	}

	now := s.policy.now()
	market.SettledAt = &now
	market.UpdatedAt = now
	if err := s.marketRepo.Update(ctx, market); err != nil {
		return false, fmt.Errorf("failed to update market: %w", err)
	}
	return true, nil
}

func (s *marketFeedService) persist(ctx context.Context, market *entities.Market, changes entities.MarketChanges) error {
	if err := s.marketRepo.Update(ctx, market); err != nil {
		return fmt.Errorf("failed to update market: %w", err)
	}
	if changes.LineChanged && !market.IsLocked {
		if err := s.wagerRepo.UpdateCurrentLine(ctx, market.ID, market.Line); err != nil {
			return fmt.Errorf("failed to refresh wager lines: %w", err)
		}
	}
	s.publishChanges(market, changes)
	return nil
}

func (s *marketFeedService) publishChanges(market *entities.Market, changes entities.MarketChanges) {
	var kinds []events.MarketChangeKind
	if changes.LineChanged || changes.Metadata {
		kinds = append(kinds, events.MarketChangeUpdated)
	}
	if changes.Locked {
		kinds = append(kinds, events.MarketChangeLocked)
	}
	if changes.Finalized {
		kinds = append(kinds, events.MarketChangeFinalized)
	}

	for _, kind := range kinds {
		if err := s.eventPublisher.Publish(events.NewMarketChangedEvent(market, kind)); err != nil {
			log.WithFields(log.Fields{
				"marketID": market.ID,
				"kind":     kind,
				"error":    err,
			}).Error("Failed to publish market change")
		}
	}
}

func (s *marketFeedService) logIgnored(market *entities.Market, changes entities.MarketChanges) {
	fields := log.Fields{"marketID": market.ID, "isLocked": market.IsLocked}
	if changes.IgnoredLine {
		log.WithFields(fields).Warn("Ignored line change on locked or preserved market")
	}
	if changes.IgnoredScore {
		log.WithFields(fields).Warn("Ignored conflicting final score")
	}
	if changes.IgnoredUnlock {
		log.WithFields(fields).Warn("Ignored attempt to unlock market")
	}
}
