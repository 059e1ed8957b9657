package application

import (
	"context"

	"wagerbook/domain/entities"
	"wagerbook/domain/interfaces"
	"wagerbook/domain/services"

	log "github.com/sirupsen/logrus"
)

// WagerHandler runs wager lifecycle operations as atomic units
type WagerHandler struct {
	atomic *Atomic
	policy services.LedgerPolicy
}

// NewWagerHandler creates a new wager handler
func NewWagerHandler(atomic *Atomic, policy services.LedgerPolicy) *WagerHandler {
	return &WagerHandler{
		atomic: atomic,
		policy: policy,
	}
}

// SubmitWager provisions the user if needed, then debits, matches and records
// the wager in a single unit of work.
func (h *WagerHandler) SubmitWager(ctx context.Context, req interfaces.SubmitWagerRequest) (*interfaces.SubmitWagerResult, error) {
	var result *interfaces.SubmitWagerResult
	err := h.atomic.Update(ctx, "submit_wager", func(uow UnitOfWork) error {
		svc := newDomainServices(uow, h.policy)
		if _, _, err := svc.users.EnsureUser(ctx, req.UserID); err != nil {
			return err
		}
		var err error
		result, err = svc.wagers.SubmitWager(ctx, req)
		return err
	})
	if err != nil {
		log.WithFields(log.Fields{
			"userID":   req.UserID,
			"marketID": req.MarketID,
			"amount":   req.Amount,
			"currency": req.Currency,
			"error":    err,
		}).Info("Wager rejected")
		return nil, err
	}
	return result, nil
}

// CancelWager releases the unmatched remainder of a wager
func (h *WagerHandler) CancelWager(ctx context.Context, userID, wagerID string, isAdmin bool) (*interfaces.CancelWagerResult, error) {
	var result *interfaces.CancelWagerResult
	err := h.atomic.Update(ctx, "cancel_wager", func(uow UnitOfWork) error {
		var err error
		result, err = newDomainServices(uow, h.policy).wagers.CancelWager(ctx, userID, wagerID, isAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetWager returns a wager visible to the caller
func (h *WagerHandler) GetWager(ctx context.Context, wagerID, userID string, isAdmin bool) (*entities.Wager, error) {
	var wager *entities.Wager
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		var err error
		wager, err = newDomainServices(uow, h.policy).wagers.GetWager(ctx, wagerID, userID, isAdmin)
		return err
	})
	return wager, err
}

// GetFills returns the fills of a wager visible to the caller
func (h *WagerHandler) GetFills(ctx context.Context, wagerID, userID string, isAdmin bool) ([]*entities.WagerFill, error) {
	var fills []*entities.WagerFill
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		svc := newDomainServices(uow, h.policy)
		if _, err := svc.wagers.GetWager(ctx, wagerID, userID, isAdmin); err != nil {
			return err
		}
		var err error
		fills, err = svc.ledger.Fills(ctx, wagerID)
		return err
	})
	return fills, err
}

// ListUserWagers returns a user's most recent wagers
func (h *WagerHandler) ListUserWagers(ctx context.Context, userID string, limit int) ([]*entities.Wager, error) {
	var wagers []*entities.Wager
	err := h.atomic.View(ctx, func(uow UnitOfWork) error {
		var err error
		wagers, err = newDomainServices(uow, h.policy).wagers.ListUserWagers(ctx, userID, limit)
		return err
	})
	return wagers, err
}
