package application

import (
	"context"

	"wagerbook/domain/events"

	log "github.com/sirupsen/logrus"
)

// MarketEventWorker reacts to committed market changes: a lock releases
// unmatched stake and a final score triggers settlement
type MarketEventWorker struct {
	source     MarketChangeSource
	settlement *SettlementHandler
}

// NewMarketEventWorker creates a new market event worker
func NewMarketEventWorker(source MarketChangeSource, settlement *SettlementHandler) *MarketEventWorker {
	return &MarketEventWorker{
		source:     source,
		settlement: settlement,
	}
}

// Run reconciles outstanding work, then consumes market changes until ctx is done
func (w *MarketEventWorker) Run(ctx context.Context) error {
	changes, unsubscribe := w.source.Subscribe()
	defer unsubscribe()

	log.Info("Market event worker started")
	if err := w.settlement.Reconcile(ctx); err != nil {
		log.WithError(err).Error("Startup reconciliation incomplete")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("Market event worker shutting down (context cancelled)...")
			return nil
		case event, ok := <-changes:
			if !ok {
				log.Info("Market change stream closed")
				return nil
			}
			w.handle(ctx, event)
		}
	}
}

func (w *MarketEventWorker) handle(ctx context.Context, event events.MarketChangedEvent) {
	switch event.Kind {
	case events.MarketChangeLocked:
		if _, err := w.settlement.ReleaseLockedRemainders(ctx, event.MarketID); err != nil {
			log.WithFields(log.Fields{
				"marketID": event.MarketID,
				"error":    err,
			}).Error("Failed to release remainders after lock")
		}
	case events.MarketChangeFinalized:
		if _, err := w.settlement.SettleMarket(ctx, event.MarketID); err != nil {
			log.WithFields(log.Fields{
				"marketID": event.MarketID,
				"error":    err,
			}).Error("Failed to settle finalized market")
		}
	}
}
