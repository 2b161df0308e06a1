package store

import (
	"context"
	"time"

	"github.com/mpetrenko/taskbot/internal/domain"
)

// TaskStore defines persistence for tasks. The durable store is the source
// of truth for task existence, cancellation and completion; queue entries
// are only dispatch hints that must be reconciled against it.
type TaskStore interface {
	// CreateTask persists a new task and assigns its ID.
	CreateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by ID scoped to its owner.
	// Returns ErrTaskNotFound if no such task exists.
	GetTask(ctx context.Context, taskID, ownerID int64) (*domain.Task, error)

	// UpdateTask persists the mutable fields of an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateTask(ctx context.Context, task *domain.Task) error

	// DeleteTask removes a task. Returns ErrTaskNotFound if it did not exist.
	DeleteTask(ctx context.Context, taskID, ownerID int64) error

	// ListTasks returns the owner's tasks, optionally filtered by status.
	// Pass an empty status to list all.
	ListTasks(ctx context.Context, ownerID int64, status domain.TaskStatus) ([]*domain.Task, error)

	// ListOverdue returns the owner's non-terminal tasks whose due time has
	// passed, ordered by due time ascending.
	ListOverdue(ctx context.Context, ownerID int64, now time.Time) ([]*domain.Task, error)

	// ListUpcoming returns the owner's non-terminal tasks due within the next
	// given number of days, ordered by due time ascending.
	ListUpcoming(ctx context.Context, ownerID int64, now time.Time, days int) ([]*domain.Task, error)

	// SetExternalEventRef records the opaque calendar event reference on a task.
	SetExternalEventRef(ctx context.Context, taskID, ownerID int64, ref string) error
}

// UserStore defines persistence for chat users.
type UserStore interface {
	// UpsertUser creates the user on first contact and refreshes the profile
	// fields on subsequent ones.
	UpsertUser(ctx context.Context, telegramID int64, username, firstName string) (*domain.User, error)

	// GetUserByTelegramID returns the user with the given chat ID.
	// Returns ErrUserNotFound if no such user exists.
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)

	// ListAllOwners returns the telegram IDs of all known users.
	ListAllOwners(ctx context.Context) ([]int64, error)
}

// ReminderStore defines persistence for reminders.
type ReminderStore interface {
	// CreateReminder persists a new reminder and assigns its ID.
	CreateReminder(ctx context.Context, reminder *domain.Reminder) error

	// MarkReminderSent flags the reminder as delivered. It is idempotent:
	// marking an already-sent reminder succeeds without error, and marking a
	// missing one is a no-op.
	MarkReminderSent(ctx context.Context, reminderID int64) error

	// ListUnsentReminders returns all reminders not yet marked sent, ordered
	// by fire time ascending. Used to rebuild the dispatch queue on startup.
	ListUnsentReminders(ctx context.Context) ([]*domain.Reminder, error)
}
