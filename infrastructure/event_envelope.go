package infrastructure

import (
	"encoding/json"
	"fmt"
	"time"

	"wagerbook/domain/events"
)

// EventEnvelope is the wire format of every event published to NATS
type EventEnvelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"sourceService"`
	Payload       json.RawMessage `json:"payload"`
}

// DecodeEvent turns an envelope payload back into its typed domain event
func DecodeEvent(envelope EventEnvelope) (events.Event, error) {
	var event events.Event
	switch events.EventType(envelope.EventType) {
	case events.EventTypeBalanceChange:
		event = &events.BalanceChangeEvent{}
	case events.EventTypeUserCreated:
		event = &events.UserCreatedEvent{}
	case events.EventTypeWagerPlaced:
		event = &events.WagerPlacedEvent{}
	case events.EventTypeWagerMatched:
		event = &events.WagerMatchedEvent{}
	case events.EventTypeWagerCancelled:
		event = &events.WagerCancelledEvent{}
	case events.EventTypeWagerSettled:
		event = &events.WagerSettledEvent{}
	case events.EventTypeMarketChanged:
		event = &events.MarketChangedEvent{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", envelope.EventType)
	}

	if err := json.Unmarshal(envelope.Payload, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", envelope.EventType, err)
	}
	return deref(event), nil
}

// deref returns the value form of a decoded event so it compares equal to what was published
func deref(event events.Event) events.Event {
	switch e := event.(type) {
	case *events.BalanceChangeEvent:
		return *e
	case *events.UserCreatedEvent:
		return *e
	case *events.WagerPlacedEvent:
		return *e
	case *events.WagerMatchedEvent:
		return *e
	case *events.WagerCancelledEvent:
		return *e
	case *events.WagerSettledEvent:
		return *e
	case *events.MarketChangedEvent:
		return *e
	}
	return event
}
