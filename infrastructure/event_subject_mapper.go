package infrastructure

import (
	"fmt"

	"wagerbook/domain/events"
)

// DomainEventStream is the JetStream stream that carries every published domain event
const DomainEventStream = "wagerbook_events"

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	return m.MapEventTypeToSubject(event.Type())
}

// MapEventTypeToSubject converts an event type to its NATS subject
func (m *EventSubjectMapper) MapEventTypeToSubject(eventType events.EventType) string {
	switch eventType {
	case events.EventTypeBalanceChange:
		return "ledger.balance_changed"
	case events.EventTypeUserCreated:
		return "ledger.users.created"
	case events.EventTypeWagerPlaced:
		return "wagers.placed"
	case events.EventTypeWagerMatched:
		return "wagers.matched"
	case events.EventTypeWagerCancelled:
		return "wagers.cancelled"
	case events.EventTypeWagerSettled:
		return "wagers.settled"
	case events.EventTypeMarketChanged:
		return "markets.changed"
	default:
		return fmt.Sprintf("unknown.%s", eventType)
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case "ledger.balance_changed":
		return events.EventTypeBalanceChange
	case "ledger.users.created":
		return events.EventTypeUserCreated
	case "wagers.placed":
		return events.EventTypeWagerPlaced
	case "wagers.matched":
		return events.EventTypeWagerMatched
	case "wagers.cancelled":
		return events.EventTypeWagerCancelled
	case "wagers.settled":
		return events.EventTypeWagerSettled
	case "markets.changed":
		return events.EventTypeMarketChanged
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"ledger.balance_changed",
		"ledger.users.created",
		"wagers.placed",
		"wagers.matched",
		"wagers.cancelled",
		"wagers.settled",
		"markets.changed",
	}
}
