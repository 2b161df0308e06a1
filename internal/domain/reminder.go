package domain

import (
	"errors"
	"time"
)

// Common validation errors for Reminder
var (
	ErrEmptyReminderTask  = errors.New("reminder task ID cannot be empty")
	ErrEmptyReminderOwner = errors.New("reminder owner ID cannot be empty")
	ErrZeroReminderFireAt = errors.New("reminder fire time cannot be zero")
)

// Reminder is a scheduled notice tied to exactly one task, fired once at
// FireAt. Rows are mutated only by marking Sent and are retained afterwards
// for audit.
type Reminder struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	OwnerID   int64     `json:"owner_id"`
	FireAt    time.Time `json:"fire_at"`
	Sent      bool      `json:"sent"`
	CreatedAt time.Time `json:"created_at"`
}

// NewReminder creates an unsent reminder for the given task and owner.
// The ID is assigned by the store on insert.
// Returns an error if validation fails.
func NewReminder(taskID, ownerID int64, fireAt time.Time) (*Reminder, error) {
	reminder := &Reminder{
		TaskID:    taskID,
		OwnerID:   ownerID,
		FireAt:    fireAt.UTC(),
		Sent:      false,
		CreatedAt: time.Now().UTC(),
	}

	if err := reminder.Validate(); err != nil {
		return nil, err
	}

	return reminder, nil
}

// Validate checks if the Reminder has valid data.
func (r *Reminder) Validate() error {
	if r.TaskID == 0 {
		return ErrEmptyReminderTask
	}

	if r.OwnerID == 0 {
		return ErrEmptyReminderOwner
	}

	if r.FireAt.IsZero() {
		return ErrZeroReminderFireAt
	}

	return nil
}
