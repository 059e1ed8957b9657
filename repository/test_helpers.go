package repository

import (
	"context"
	"sync"

	"wagerbook/application"
	"wagerbook/database"
	"wagerbook/domain/events"
)

// EventSink collects events flushed by committed units of work
type EventSink struct {
	mu     sync.Mutex
	events []events.Event
}

// Events returns a copy of everything flushed so far
func (s *EventSink) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

// bufferingPublisher holds one unit of work's events until commit
type bufferingPublisher struct {
	sink    *EventSink
	pending []events.Event
}

func (p *bufferingPublisher) Publish(event events.Event) error {
	p.pending = append(p.pending, event)
	return nil
}

func (p *bufferingPublisher) Flush(ctx context.Context) error {
	p.sink.mu.Lock()
	p.sink.events = append(p.sink.events, p.pending...)
	p.sink.mu.Unlock()
	p.pending = nil
	return nil
}

func (p *bufferingPublisher) Discard() {
	p.pending = nil
}

// TestUnitOfWorkFactory creates units of work whose committed events land in Sink
type TestUnitOfWorkFactory struct {
	inner *unitOfWorkFactory
	Sink  *EventSink
}

// NewTestUnitOfWorkFactory creates a unit of work factory for tests
func NewTestUnitOfWorkFactory(db *database.DB) *TestUnitOfWorkFactory {
	return &TestUnitOfWorkFactory{
		inner: NewUnitOfWorkFactory(db),
		Sink:  &EventSink{},
	}
}

func (f *TestUnitOfWorkFactory) Create() application.UnitOfWork {
	return f.inner.CreateWithPublisher(&bufferingPublisher{sink: f.Sink})
}
