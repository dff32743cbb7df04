package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownEventType = errors.New("unknown event type")

// SchemaVersion is stamped on every envelope so consumers can evolve
// payload shapes without breaking old subscribers.
const SchemaVersion = "1"

type EventType string

const (
	EventUserCreated         EventType = "user.created"
	EventUserDeleted         EventType = "user.deleted"
	EventSubscriptionCreated EventType = "subscription.created"
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventPaymentSuccess      EventType = "payment.success"
	EventPaymentFailed       EventType = "payment.failed"
	EventSummaryCompleted    EventType = "summary.completed"
	EventSlackConnected      EventType = "slack.connected"
	EventSlackDisconnected   EventType = "slack.disconnected"
	EventFileProcessed       EventType = "file.processed"
	EventExportCompleted     EventType = "export.completed"
)

var knownEventTypes = map[EventType]struct{}{
	EventUserCreated:         {},
	EventUserDeleted:         {},
	EventSubscriptionCreated: {},
	EventSubscriptionUpdated: {},
	EventPaymentSuccess:      {},
	EventPaymentFailed:       {},
	EventSummaryCompleted:    {},
	EventSlackConnected:      {},
	EventSlackDisconnected:   {},
	EventFileProcessed:       {},
	EventExportCompleted:     {},
}

func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// EventTypes returns every known event type. Order is alphabetical by name
// only by accident of the constant list; callers must not rely on it.
func EventTypes() []EventType {
	types := make([]EventType, 0, len(knownEventTypes))
	for t := range knownEventTypes {
		types = append(types, t)
	}
	return types
}

// Envelope is the immutable wrapper around one event occurrence. Two
// envelopes built from the same inputs differ in ID and OccurredAt; there
// is no deduplication at this layer.
type Envelope struct {
	ID            string         `json:"id"`
	EventType     EventType      `json:"event_type"`
	Data          map[string]any `json:"data"`
	Scope         string         `json:"scope,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
	SchemaVersion string         `json:"schema_version"`
}

func NewEnvelope(eventType EventType, data map[string]any, scope string) *Envelope {
	return &Envelope{
		ID:            uuid.New().String(),
		EventType:     eventType,
		Data:          data,
		Scope:         scope,
		OccurredAt:    time.Now().UTC(),
		SchemaVersion: SchemaVersion,
	}
}
