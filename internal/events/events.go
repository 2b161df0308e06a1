package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type identifiers.
const (
	// TypeReminderScheduled is emitted when a reminder row has been persisted
	// and needs a corresponding queue entry. This event is the insertion
	// contract between reminder creation and the dispatch queue.
	TypeReminderScheduled = "reminder_scheduled"
)

// ReminderScheduledPayload carries the queue projection of a new reminder.
type ReminderScheduledPayload struct {
	ReminderID int64     `json:"reminder_id"`
	OwnerID    int64     `json:"owner_id"`
	TaskID     int64     `json:"task_id"`
	FireAt     time.Time `json:"fire_at"`
}

// Event represents a fact about the reminder lifecycle published by a
// service and consumed by registered handlers. It decouples the service
// layer from the queue without a direct dependency.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates the event type
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an Event with the specified type and payload.
func NewEvent(eventType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}
