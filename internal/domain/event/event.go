package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event published after a trip transition commits
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	TripID        int64                  `json:"trip_id"`
	ReferenceCode string                 `json:"reference_code"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, tripID int64, referenceCode string, payload map[string]interface{}) *Event {
	id := generateID()
	return &Event{
		ID:            id,
		Type:          eventType,
		TripID:        tripID,
		ReferenceCode: referenceCode,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
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

// GetPayloadMap retrieves a nested object from the payload
func (e *Event) GetPayloadMap(key string) map[string]interface{} {
	if val, ok := e.Payload[key]; ok {
		if m, ok := val.(map[string]interface{}); ok {
			return m
		}
	}
	return nil
}

func generateID() string {
	return uuid.NewString()
}
