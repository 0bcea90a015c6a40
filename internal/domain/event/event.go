package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event. Events are ephemeral: the bus retains a
// bounded history ring for diagnostics, nothing here is a source of truth.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	AggregateID   int64                  `json:"aggregate_id"`
	AggregateType string                 `json:"aggregate_type"`
	Payload       map[string]interface{} `json:"payload"`
	CorrelationID string                 `json:"correlation_id"`
	CausationID   string                 `json:"causation_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// New creates a domain event with a fresh ID and correlation ID
func New(eventType Type, aggregateID int64, aggregateType string, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Payload:       payload,
		CorrelationID: id,
		Timestamp:     time.Now(),
	}
}

// NewCaused creates an event linked to an existing correlation chain. The
// causing event's ID becomes the new event's causation ID.
func NewCaused(eventType Type, aggregateID int64, aggregateType string, payload map[string]interface{}, cause *Event) *Event {
	evt := New(eventType, aggregateID, aggregateType, payload)
	if cause != nil {
		evt.CorrelationID = cause.CorrelationID
		evt.CausationID = cause.ID
	}
	return evt
}

// WithPayload returns a copy of the event with an added payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	clone := *e
	clone.Payload = newPayload
	return &clone
}

// PayloadString retrieves a string value from the payload
func (e *Event) PayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// PayloadInt retrieves an int64 value from the payload
func (e *Event) PayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
