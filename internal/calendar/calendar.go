package calendar

import (
	"context"
	"time"
)

// Event describes a calendar entry to be created for a task with a due time.
type Event struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// Client is the narrow contract with the external calendar collaborator.
// Both calls are fire-and-forget relative to the reminder engine: their
// failure is logged and never blocks task creation or reminder registration.
type Client interface {
	// CreateEvent creates a calendar event and returns an opaque reference
	// that is stored on the task.
	CreateEvent(ctx context.Context, event Event) (string, error)

	// DeleteEvent removes a previously created event by its reference.
	DeleteEvent(ctx context.Context, ref string) error
}

// Noop is used when calendar integration is disabled.
type Noop struct{}

// CreateEvent returns an empty reference without doing anything.
func (Noop) CreateEvent(ctx context.Context, event Event) (string, error) {
	return "", nil
}

// DeleteEvent does nothing.
func (Noop) DeleteEvent(ctx context.Context, ref string) error {
	return nil
}
