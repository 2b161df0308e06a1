package domain

import (
	"errors"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskPriority represents how urgent a task is.
type TaskPriority string

// Possible task priority values
const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Common validation errors for Task
var (
	ErrEmptyTaskOwner      = errors.New("task owner ID cannot be empty")
	ErrEmptyTaskTitle      = errors.New("task title cannot be empty")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrInvalidTaskPriority = errors.New("invalid task priority")
	ErrReminderWithoutAt   = errors.New("reminder enabled but reminder time is not set")
)

// Task represents a single to-do item owned by one user. OwnerID is the
// owner's chat identifier, which is also the address the notifier delivers
// to. DueAt and ReminderAt are nil when the user did not set them.
type Task struct {
	ID               int64        `json:"id"`
	OwnerID          int64        `json:"owner_id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Priority         TaskPriority `json:"priority"`
	Status           TaskStatus   `json:"status"`
	DueAt            *time.Time   `json:"due_at,omitempty"`
	ReminderEnabled  bool         `json:"reminder_enabled"`
	ReminderAt       *time.Time   `json:"reminder_at,omitempty"`
	ExternalEventRef string       `json:"external_event_ref,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// NewTask creates a pending task with the given owner, title and optional
// fields. The ID is assigned by the store on insert.
// Returns an error if validation fails.
func NewTask(ownerID int64, title, description string, priority TaskPriority) (*Task, error) {
	if priority == "" {
		priority = TaskPriorityMedium
	}

	now := time.Now().UTC()
	task := &Task{
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.OwnerID == 0 {
		return ErrEmptyTaskOwner
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if !isValidTaskPriority(t.Priority) {
		return ErrInvalidTaskPriority
	}

	if t.ReminderEnabled && t.ReminderAt == nil {
		return ErrReminderWithoutAt
	}

	return nil
}

// IsTerminal reports whether the task has reached a final state. Terminal
// tasks are excluded from overdue scanning and reminder dispatch even if a
// stale queue entry still references them.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusCancelled
}

// UpdateStatus transitions the task to the given status and bumps UpdatedAt.
// Returns an error if the new status is invalid.
func (t *Task) UpdateStatus(status TaskStatus) error {
	if !isValidTaskStatus(status) {
		return ErrInvalidTaskStatus
	}

	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

func isValidTaskPriority(priority TaskPriority) bool {
	switch priority {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}
