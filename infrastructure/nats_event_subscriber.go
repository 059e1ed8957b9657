package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"wagerbook/domain/events"

	log "github.com/sirupsen/logrus"
)

// ReceiveObserver is told about every event received from NATS
type ReceiveObserver interface {
	RecordNATSMessageReceived(eventType string)
}

// NATSEventSubscriber subscribes to NATS subjects and decodes envelopes for event handlers
type NATSEventSubscriber struct {
	natsClient    *NATSClient
	subjectMapper *EventSubjectMapper
	observer      ReceiveObserver
}

// NewNATSEventSubscriber creates a new NATS event subscriber
func NewNATSEventSubscriber(natsClient *NATSClient, subjectMapper *EventSubjectMapper) *NATSEventSubscriber {
	return &NATSEventSubscriber{
		natsClient:    natsClient,
		subjectMapper: subjectMapper,
	}
}

// WithObserver sets the observer told about received events
func (s *NATSEventSubscriber) WithObserver(observer ReceiveObserver) *NATSEventSubscriber {
	s.observer = observer
	return s
}

// Subscribe registers a durable handler for one event type
func (s *NATSEventSubscriber) Subscribe(eventType events.EventType, handler EventHandler) error {
	subject := s.subjectMapper.MapEventTypeToSubject(eventType)

	log.WithFields(log.Fields{
		"eventType": eventType,
		"subject":   subject,
	}).Info("Registering event handler for subject")

	return s.natsClient.Subscribe(subject, func(data []byte) error {
		return s.handleMessage(subject, data, handler)
	})
}

// handleMessage decodes a NATS message and passes the event to handler
func (s *NATSEventSubscriber) handleMessage(subject string, data []byte, handler EventHandler) error {
	var envelope EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	event, err := DecodeEvent(envelope)
	if err != nil {
		log.WithFields(log.Fields{
			"subject":     subject,
			"eventType":   envelope.EventType,
			"eventId":     envelope.EventID,
			"payloadSize": len(envelope.Payload),
			"error":       err,
		}).Error("Failed to deserialize event payload")
		return err
	}

	if s.observer != nil {
		s.observer.RecordNATSMessageReceived(envelope.EventType)
	}

	log.WithFields(log.Fields{
		"subject":   subject,
		"eventType": envelope.EventType,
		"eventId":   envelope.EventID,
	}).Debug("Dispatching event from NATS")

	return handler(context.Background(), event)
}
