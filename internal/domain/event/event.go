package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain event emitted after a workflow transition commits.
// Subscribers (inventory, invoicing, accrual) react to terminal states; the
// engine never waits on them.
type Event struct {
	ID               string                 `json:"id"`
	Type             Type                   `json:"type"`
	InstanceID       string                 `json:"instance_id,omitempty"`
	SourceDocumentID string                 `json:"source_document_id,omitempty"`
	Payload          map[string]interface{} `json:"payload,omitempty"`
	Timestamp        time.Time              `json:"timestamp"`
	CorrelationID    string                 `json:"correlation_id"`
}

// New creates an event with a generated id and correlation id.
func New(eventType Type, instanceID, sourceDocumentID string, payload map[string]interface{}) *Event {
	return &Event{
		ID:               uuid.NewString(),
		Type:             eventType,
		InstanceID:       instanceID,
		SourceDocumentID: sourceDocumentID,
		Payload:          payload,
		Timestamp:        time.Now(),
		CorrelationID:    uuid.NewString(),
	}
}

// GetString retrieves a string payload value, or "".
func (e *Event) GetString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}
