package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wagerbook/domain/entities"

	log "github.com/sirupsen/logrus"
)

// FeedStream is the JetStream stream carrying upstream market updates
const FeedStream = "wagerbook_feed"

// FeedApplier applies one upstream market refresh
type FeedApplier interface {
	ApplyFeedUpdate(ctx context.Context, update entities.FeedUpdate) (*entities.Market, entities.MarketChanges, error)
}

// FeedSubscriber ingests JSON market updates from the odds/score feed subject
type FeedSubscriber struct {
	natsClient *NATSClient
	subject    string
	applier    FeedApplier
	timeout    time.Duration
	observer   ReceiveObserver
}

// NewFeedSubscriber creates a new feed subscriber
func NewFeedSubscriber(natsClient *NATSClient, subject string, applier FeedApplier) *FeedSubscriber {
	return &FeedSubscriber{
		natsClient: natsClient,
		subject:    subject,
		applier:    applier,
		timeout:    10 * time.Second,
	}
}

// WithObserver sets the observer told about received feed messages
func (s *FeedSubscriber) WithObserver(observer ReceiveObserver) *FeedSubscriber {
	s.observer = observer
	return s
}

// Start ensures the feed stream exists and subscribes to it
func (s *FeedSubscriber) Start() error {
	if err := s.natsClient.EnsureStream(FeedStream, "Upstream market line and score updates", []string{s.subject}); err != nil {
		return err
	}
	return s.natsClient.Subscribe(s.subject, s.HandleMessage)
}

// HandleMessage decodes and applies one feed message. Malformed messages are
// dropped; store failures are returned so the message is redelivered.
func (s *FeedSubscriber) HandleMessage(data []byte) error {
	var update entities.FeedUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		log.WithFields(log.Fields{
			"subject": s.subject,
			"error":   err,
		}).Warn("Dropping malformed feed message")
		return nil
	}
	if update.MarketID == "" {
		log.WithField("subject", s.subject).Warn("Dropping feed message without market id")
		return nil
	}

	if s.observer != nil {
		s.observer.RecordNATSMessageReceived("feed_update")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	market, changes, err := s.applier.ApplyFeedUpdate(ctx, update)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			log.WithFields(log.Fields{
				"marketID": update.MarketID,
				"error":    err,
			}).Warn("Dropping feed update for unknown market")
			return nil
		}
		if errors.Is(err, entities.ErrInvalidLine) {
			log.WithFields(log.Fields{
				"marketID": update.MarketID,
				"error":    err,
			}).Warn("Dropping feed update with unusable line")
			return nil
		}
		return fmt.Errorf("failed to apply feed update for market %s: %w", update.MarketID, err)
	}

	log.WithFields(log.Fields{
		"marketID":  market.ID,
		"line":      market.Line.String(),
		"isLocked":  market.IsLocked,
		"changed":   changes.Any(),
		"finalized": changes.Finalized,
	}).Debug("Applied feed update")
	return nil
}
