package services

import (
	"context"
	"fmt"

	"wagerbook/domain/entities"
	"wagerbook/domain/events"
	"wagerbook/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

type settlementService struct {
	wagerRepo      interfaces.WagerRepository
	balanceService interfaces.BalanceService
	eventPublisher interfaces.EventPublisher
	policy         LedgerPolicy
}

// NewSettlementService creates a settlement service bound to one unit of work's repositories
func NewSettlementService(wagerRepo interfaces.WagerRepository, balanceService interfaces.BalanceService, eventPublisher interfaces.EventPublisher, policy LedgerPolicy) interfaces.SettlementService {
	return &settlementService{
		wagerRepo:      wagerRepo,
		balanceService: balanceService,
		eventPublisher: eventPublisher,
		policy:         policy,
	}
}

// SettleWager resolves one wager against the market's final score and locked line.
// A wager already in a terminal state returns ErrAlreadySettled and is not touched.
func (s *settlementService) SettleWager(ctx context.Context, wagerID string, market *entities.Market) (*interfaces.SettlementResult, error) {
	if market.FinalScore == nil {
		return nil, fmt.Errorf("%w: market %s", entities.ErrMarketNotFinal, market.ID)
	}

	wager, err := s.wagerRepo.GetByID(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return nil, fmt.Errorf("%w: wager %s", entities.ErrNotFound, wagerID)
	}
	if wager.MarketID != market.ID {
		return nil, fmt.Errorf("wager %s belongs to market %s, not %s", wager.ID, wager.MarketID, market.ID)
	}

	outcome := market.FinalScore.OutcomeFor(wager.IsHomeSide, market.MatchingLine())
	amounts, err := wager.Settle(outcome, s.policy.now())
	if err != nil {
		return nil, err
	}

	if amounts.Payout > 0 {
		_, err := s.balanceService.AdjustBalance(ctx, wager.UserID, wager.Currency, amounts.Payout, entities.LedgerEntry{
			Kind:        entities.TransactionKindCredit,
			WagerID:     &wager.ID,
			Description: fmt.Sprintf("Winnings for wager %s on %s", wager.ID, wager.Side),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to credit winnings: %w", err)
		}
	}
	if amounts.PushRefund > 0 {
		_, err := s.balanceService.RefundStake(ctx, wager.UserID, wager.Currency, amounts.PushRefund, wager.ID, wager.CreatedAt, false,
			fmt.Sprintf("Push refund for wager %s", wager.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to refund push: %w", err)
		}
	}
	if amounts.RemainderRefund > 0 {
		_, err := s.balanceService.RefundStake(ctx, wager.UserID, wager.Currency, amounts.RemainderRefund, wager.ID, wager.CreatedAt, true,
			fmt.Sprintf("Unmatched stake returned at settlement for wager %s", wager.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to refund unmatched stake: %w", err)
		}
	}

	if err := s.wagerRepo.Update(ctx, wager); err != nil {
		return nil, fmt.Errorf("failed to update wager: %w", err)
	}

	event := events.WagerSettledEvent{
		WagerID:       wager.ID,
		UserID:        wager.UserID,
		MarketID:      wager.MarketID,
		Currency:      wager.Currency,
		Status:        wager.Status,
		MatchedAmount: wager.MatchedAmount(),
		Payout:        amounts.Payout,
		RefundAmount:  amounts.PushRefund + amounts.RemainderRefund,
		SideName:      wager.Side,
	}
	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish wager settled event")
	}

	log.WithFields(log.Fields{
		"wagerID":  wager.ID,
		"marketID": market.ID,
		"outcome":  amounts.Outcome,
		"status":   wager.Status,
		"payout":   amounts.Payout,
		"refund":   amounts.PushRefund + amounts.RemainderRefund,
	}).Info("Wager settled")

	return &interfaces.SettlementResult{Wager: wager, Amounts: amounts}, nil
}
