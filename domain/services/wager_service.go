package services

import (
	"context"
	"fmt"

	"wagerbook/domain/entities"
	"wagerbook/domain/events"
	"wagerbook/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type wagerService struct {
	wagerRepo      interfaces.WagerRepository
	marketRepo     interfaces.MarketRepository
	balanceService interfaces.BalanceService
	eventPublisher interfaces.EventPublisher
	engine         *MatchingEngine
	policy         LedgerPolicy
}

// NewWagerService creates a wager service bound to one unit of work's repositories
func NewWagerService(
	wagerRepo interfaces.WagerRepository,
	marketRepo interfaces.MarketRepository,
	balanceService interfaces.BalanceService,
	eventPublisher interfaces.EventPublisher,
	policy LedgerPolicy,
) interfaces.WagerService {
	return &wagerService{
		wagerRepo:      wagerRepo,
		marketRepo:     marketRepo,
		balanceService: balanceService,
		eventPublisher: eventPublisher,
		engine:         NewMatchingEngine(),
		policy:         policy,
	}
}

// SubmitWager validates, reserves the stake, matches and persists a new wager.
// All writes belong to the caller's unit of work, so a failure at any step
// leaves balances, daily spend and the book untouched.
func (s *wagerService) SubmitWager(ctx context.Context, req interfaces.SubmitWagerRequest) (*interfaces.SubmitWagerResult, error) {
	if err := req.Currency.Validate(); err != nil {
		return nil, err
	}
	if req.Amount < s.policy.MinWagerAmount || req.Amount > s.policy.MaxWagerAmount {
		return nil, fmt.Errorf("%w: amount must be between %d and %d", entities.ErrInvalidAmount, s.policy.MinWagerAmount, s.policy.MaxWagerAmount)
	}

	market, err := s.marketRepo.GetByIDForShare(ctx, req.MarketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, fmt.Errorf("%w: market %s", entities.ErrNotFound, req.MarketID)
	}

	now := s.policy.now()
	if !market.IsOpenForWagers(now) {
		return nil, fmt.Errorf("%w: market %s", entities.ErrMarketLocked, market.ID)
	}

	wager := &entities.Wager{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		MarketID:        market.ID,
		Currency:        req.Currency,
		Amount:          req.Amount,
		Side:            market.SideName(req.IsHomeSide),
		IsHomeSide:      req.IsHomeSide,
		RequestedLine:   market.Line,
		CurrentLine:     market.Line,
		RemainingAmount: req.Amount,
		Status:          entities.WagerStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	debit, err := s.balanceService.DebitStake(ctx, req.UserID, req.Currency, req.Amount, wager.ID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.wagerRepo.GetOpenCandidates(ctx, market.ID, req.Currency, !req.IsHomeSide, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match candidates: %w", err)
	}

	match, err := s.engine.Match(wager, candidates, now)
	if err != nil {
		return nil, fmt.Errorf("failed to match wager: %w", err)
	}

	if err := s.wagerRepo.Create(ctx, wager); err != nil {
		return nil, fmt.Errorf("failed to create wager: %w", err)
	}
	for _, maker := range match.Makers {
		if err := s.wagerRepo.Update(ctx, maker); err != nil {
			return nil, fmt.Errorf("failed to update matched wager %s: %w", maker.ID, err)
		}
	}
	for _, fill := range match.Fills {
		if err := s.wagerRepo.RecordFill(ctx, fill); err != nil {
			return nil, fmt.Errorf("failed to record fill: %w", err)
		}
	}

	s.publish(events.WagerPlacedEvent{
		WagerID:    wager.ID,
		UserID:     wager.UserID,
		MarketID:   wager.MarketID,
		Currency:   wager.Currency,
		Amount:     wager.Amount,
		IsHomeSide: wager.IsHomeSide,
		Line:       wager.RequestedLine,
	})
	for _, fill := range match.Fills {
		s.publish(events.WagerMatchedEvent{
			FillID:       fill.ID,
			MarketID:     fill.MarketID,
			TakerWagerID: fill.TakerWagerID,
			MakerWagerID: fill.MakerWagerID,
			Amount:       fill.Amount,
		})
	}

	log.WithFields(log.Fields{
		"wagerID":   wager.ID,
		"userID":    wager.UserID,
		"marketID":  wager.MarketID,
		"currency":  wager.Currency,
		"amount":    wager.Amount,
		"matched":   match.Filled(),
		"fillCount": len(match.Fills),
		"status":    wager.Status,
	}).Info("Wager accepted")

	return &interfaces.SubmitWagerResult{
		Wager: wager,
		Fills: match.Fills,
		Debit: debit,
	}, nil
}

// CancelWager releases the unmatched remainder of a wager at its owner's request
func (s *wagerService) CancelWager(ctx context.Context, userID, wagerID string, isAdmin bool) (*interfaces.CancelWagerResult, error) {
	wager, err := s.GetWager(ctx, wagerID, userID, isAdmin)
	if err != nil {
		return nil, err
	}
	if !wager.CanBeCancelled() {
		return nil, fmt.Errorf("%w: wager %s is %s", entities.ErrNotCancellable, wager.ID, wager.Status)
	}
	return s.release(ctx, wager, events.CancelReasonOwner)
}

// ApplyMarketLock moves a wager to its post-lock state
func (s *wagerService) ApplyMarketLock(ctx context.Context, wagerID string) (*interfaces.CancelWagerResult, error) {
	wager, err := s.wagerRepo.GetByID(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return nil, fmt.Errorf("%w: wager %s", entities.ErrNotFound, wagerID)
	}

	switch {
	case wager.CanBeCancelled():
		return s.release(ctx, wager, events.CancelReasonMarketLock)
	case wager.Status == entities.WagerStatusFullyMatched:
		if _, err := wager.Lock(s.policy.now()); err != nil {
			return nil, err
		}
		if err := s.wagerRepo.Update(ctx, wager); err != nil {
			return nil, fmt.Errorf("failed to update wager: %w", err)
		}
		return &interfaces.CancelWagerResult{Wager: wager}, nil
	default:
		// Already active or terminal
		return &interfaces.CancelWagerResult{Wager: wager}, nil
	}
}

func (s *wagerService) release(ctx context.Context, wager *entities.Wager, reason events.CancelReason) (*interfaces.CancelWagerResult, error) {
	refundAmount, err := wager.ReleaseRemainder(s.policy.now())
	if err != nil {
		return nil, err
	}

	refund, err := s.balanceService.RefundStake(ctx, wager.UserID, wager.Currency, refundAmount, wager.ID, wager.CreatedAt, true,
		fmt.Sprintf("Unmatched stake returned for wager %s (%s)", wager.ID, reason))
	if err != nil {
		return nil, err
	}

	if err := s.wagerRepo.Update(ctx, wager); err != nil {
		return nil, fmt.Errorf("failed to update wager: %w", err)
	}

	s.publish(events.WagerCancelledEvent{
		WagerID:      wager.ID,
		UserID:       wager.UserID,
		MarketID:     wager.MarketID,
		RefundAmount: refundAmount,
		Status:       wager.Status,
		Reason:       reason,
	})

	log.WithFields(log.Fields{
		"wagerID": wager.ID,
		"userID":  wager.UserID,
		"refund":  refundAmount,
		"status":  wager.Status,
		"reason":  reason,
	}).Info("Released unmatched stake")

	return &interfaces.CancelWagerResult{Wager: wager, Refund: refund}, nil
}

// GetWager returns a wager visible to the caller. Other users' wagers read as not found.
func (s *wagerService) GetWager(ctx context.Context, wagerID, userID string, isAdmin bool) (*entities.Wager, error) {
	wager, err := s.wagerRepo.GetByID(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil || (!isAdmin && wager.UserID != userID) {
		return nil, fmt.Errorf("%w: wager %s", entities.ErrNotFound, wagerID)
	}
	return wager, nil
}

func (s *wagerService) ListUserWagers(ctx context.Context, userID string, limit int) ([]*entities.Wager, error) {
	wagers, err := s.wagerRepo.GetByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}
	return wagers, nil
}

func (s *wagerService) publish(event events.Event) {
	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to publish wager event")
	}
}
