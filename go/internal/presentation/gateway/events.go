package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

// SessionEvent is the envelope pushed to presentation screens
type SessionEvent struct {
	ID          string          `json:"id"`           // Event UUID
	SessionCode string          `json:"session_code"` // Session the record belongs to
	Type        EventType       `json:"type"`         // Event type
	Timestamp   time.Time       `json:"timestamp"`    // Event creation time
	Data        json.RawMessage `json:"data"`         // The session record
}

// EventType represents the type of session event
type EventType string

const (
	// EventTypeSessionSnapshot is sent once when a screen connects
	EventTypeSessionSnapshot EventType = "SessionSnapshot"
	// EventTypeSessionUpdated is sent for every committed write
	EventTypeSessionUpdated EventType = "SessionUpdated"
)

// NewSessionEvent wraps a record in an event envelope
func NewSessionEvent(eventType EventType, code string, rec session.Record) (*SessionEvent, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal session record: %w", err)
	}
	return &SessionEvent{
		ID:          uuid.New().String(),
		SessionCode: code,
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		Data:        data,
	}, nil
}

// Record decodes the session record carried by the event
func (e *SessionEvent) Record() (session.Record, error) {
	switch e.Type {
	case EventTypeSessionSnapshot, EventTypeSessionUpdated:
	default:
		return session.Record{}, fmt.Errorf("unexpected event type %q", e.Type)
	}

	var rec session.Record
	if err := json.Unmarshal(e.Data, &rec); err != nil {
		return session.Record{}, fmt.Errorf("unmarshal session record: %w", err)
	}
	return rec, nil
}
