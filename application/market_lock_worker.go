package application

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// MarketLockWorker locks markets once their start time passes
type MarketLockWorker struct {
	markets  *MarketHandler
	interval time.Duration
}

// NewMarketLockWorker creates a new market lock worker
func NewMarketLockWorker(markets *MarketHandler, interval time.Duration) *MarketLockWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &MarketLockWorker{
		markets:  markets,
		interval: interval,
	}
}

// Run checks for due markets on every tick until ctx is done
func (w *MarketLockWorker) Run(ctx context.Context) error {
	log.WithField("interval", w.interval).Info("Market lock worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			log.Info("Market lock worker shutting down (context cancelled)...")
			return nil
		case <-ticker.C:
		}
	}
}

func (w *MarketLockWorker) tick(ctx context.Context) {
	locked, err := w.markets.LockDueMarkets(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to lock due markets")
		return
	}
	if locked > 0 {
		log.WithField("count", locked).Info("Locked markets past start time")
	}
}
