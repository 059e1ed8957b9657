package infrastructure

import (
	"context"
	"sync"

	"wagerbook/domain/events"

	log "github.com/sirupsen/logrus"
)

const marketStreamBuffer = 256

// MarketStream fans committed market changes out to channel subscribers.
// Deliveries to one subscriber keep publish order.
type MarketStream struct {
	mu          sync.RWMutex
	subscribers map[int]*marketSubscriber
	nextID      int
	closed      bool
}

type marketSubscriber struct {
	ch   chan events.MarketChangedEvent
	done chan struct{}
	once sync.Once
}

// NewMarketStream creates an empty market change stream
func NewMarketStream() *MarketStream {
	return &MarketStream{
		subscribers: make(map[int]*marketSubscriber),
	}
}

// Subscribe returns a channel of changes and a function that ends the subscription
func (s *MarketStream) Subscribe() (<-chan events.MarketChangedEvent, func()) {
	sub := &marketSubscriber{
		ch:   make(chan events.MarketChangedEvent, marketStreamBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subscribers[id] = sub
	s.mu.Unlock()

	unsubscribe := func() {
		sub.once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(sub.done)
		})
	}
	return sub.ch, unsubscribe
}

// Publish delivers a change to every subscriber. A full subscriber buffer
// blocks the publisher until the subscriber catches up, unsubscribes, or ctx ends.
func (s *MarketStream) Publish(ctx context.Context, event events.MarketChangedEvent) {
	s.mu.RLock()
	subs := make([]*marketSubscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-ctx.Done():
			log.WithFields(log.Fields{
				"marketID": event.MarketID,
				"kind":     event.Kind,
			}).Warn("Market change not delivered before context ended")
			return
		}
	}
}

// HandleEvent adapts Publish to a local event handler
func (s *MarketStream) HandleEvent(ctx context.Context, event events.Event) error {
	change, ok := event.(events.MarketChangedEvent)
	if !ok {
		return nil
	}
	s.Publish(ctx, change)
	return nil
}

// Close drops every subscription. Later publishes are discarded and later
// subscribers receive a closed channel.
func (s *MarketStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subscribers {
		delete(s.subscribers, id)
		sub.once.Do(func() { close(sub.done) })
	}
}
