package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mpetrenko/taskbot/internal/calendar"
	"github.com/mpetrenko/taskbot/internal/domain"
	"github.com/mpetrenko/taskbot/internal/events"
	"github.com/mpetrenko/taskbot/internal/store"
)

// CreateTaskInput carries the fields a user supplies when creating a task.
type CreateTaskInput struct {
	OwnerID     int64
	Title       string
	Description string
	Priority    domain.TaskPriority
	DueAt       *time.Time

	// ReminderAt schedules a one-time reminder when non-nil.
	ReminderAt *time.Time
}

// TaskService implements the task lifecycle: creation with reminder
// registration and optional calendar mirroring, status transitions, and
// deletion. It is the only writer of reminders into both the durable store
// and, via the event emitter, the dispatch queue.
type TaskService struct {
	tasks     store.TaskStore
	reminders store.ReminderStore
	users     store.UserStore
	emitter   events.EventEmitter
	calendar  calendar.Client
	logger    *slog.Logger
}

// NewTaskService creates a TaskService with its dependencies.
// Returns an error if any required dependency is nil.
func NewTaskService(
	tasks store.TaskStore,
	reminders store.ReminderStore,
	users store.UserStore,
	emitter events.EventEmitter,
	cal calendar.Client,
	logger *slog.Logger,
) (*TaskService, error) {
	if tasks == nil {
		return nil, errors.New("task store is required")
	}
	if reminders == nil {
		return nil, errors.New("reminder store is required")
	}
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if emitter == nil {
		return nil, errors.New("event emitter is required")
	}
	if cal == nil {
		cal = calendar.Noop{}
	}

	return &TaskService{
		tasks:     tasks,
		reminders: reminders,
		users:     users,
		emitter:   emitter,
		calendar:  cal,
		logger:    logger.With("component", "task_service"),
	}, nil
}

// CreateTask persists a new task and, when requested, registers its
// reminder in the durable store and announces it for queue insertion.
// Calendar mirroring is fire-and-forget: its failure never blocks task
// creation or reminder registration.
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	task, err := domain.NewTask(input.OwnerID, input.Title, input.Description, input.Priority)
	if err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}
	task.DueAt = input.DueAt
	if input.ReminderAt != nil {
		task.ReminderEnabled = true
		at := input.ReminderAt.UTC()
		task.ReminderAt = &at
	}

	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.mirrorToCalendar(ctx, task)

	if task.ReminderEnabled {
		if err := s.registerReminder(ctx, task); err != nil {
			// The task exists; a failed registration should not undo it.
			// Surface the error so the caller can tell the user.
			return task, fmt.Errorf("task created but reminder registration failed: %w", err)
		}
	}

	return task, nil
}

// registerReminder persists the reminder row, then emits the scheduling
// event that inserts the queue entry. The short window between the two is
// the only time an unsent reminder lacks a queue entry.
func (s *TaskService) registerReminder(ctx context.Context, task *domain.Task) error {
	reminder, err := domain.NewReminder(task.ID, task.OwnerID, *task.ReminderAt)
	if err != nil {
		return fmt.Errorf("invalid reminder: %w", err)
	}

	if err := s.reminders.CreateReminder(ctx, reminder); err != nil {
		return fmt.Errorf("failed to persist reminder: %w", err)
	}

	event, err := events.NewEvent(events.TypeReminderScheduled, events.ReminderScheduledPayload{
		ReminderID: reminder.ID,
		OwnerID:    reminder.OwnerID,
		TaskID:     reminder.TaskID,
		FireAt:     reminder.FireAt,
	})
	if err != nil {
		return fmt.Errorf("failed to build reminder event: %w", err)
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		// The reminder row exists, so startup reconciliation will recover
		// the queue entry even if this emission was lost.
		return fmt.Errorf("failed to announce reminder: %w", err)
	}

	s.logger.Info("reminder registered",
		"reminder_id", reminder.ID,
		"task_id", task.ID,
		"fire_at", reminder.FireAt)
	return nil
}

// mirrorToCalendar creates a calendar event for tasks with a due time and
// stores the returned reference. Failures are logged and swallowed.
func (s *TaskService) mirrorToCalendar(ctx context.Context, task *domain.Task) {
	if task.DueAt == nil {
		return
	}

	ref, err := s.calendar.CreateEvent(ctx, calendar.Event{
		Title:       task.Title,
		Description: task.Description,
		Start:       *task.DueAt,
	})
	if err != nil {
		s.logger.Warn("calendar event creation failed", "task_id", task.ID, "error", err)
		return
	}
	if ref == "" {
		return
	}

	if err := s.tasks.SetExternalEventRef(ctx, task.ID, task.OwnerID, ref); err != nil {
		s.logger.Warn("failed to store calendar event ref", "task_id", task.ID, "error", err)
		return
	}
	task.ExternalEventRef = ref
}

// CompleteTask transitions a task to completed. Completed tasks are excluded
// from overdue scanning and reminder dispatch from this point on.
func (s *TaskService) CompleteTask(ctx context.Context, taskID, ownerID int64) (*domain.Task, error) {
	return s.transition(ctx, taskID, ownerID, domain.TaskStatusCompleted)
}

// CancelTask transitions a task to cancelled.
func (s *TaskService) CancelTask(ctx context.Context, taskID, ownerID int64) (*domain.Task, error) {
	return s.transition(ctx, taskID, ownerID, domain.TaskStatusCancelled)
}

// StartTask transitions a task to in progress.
func (s *TaskService) StartTask(ctx context.Context, taskID, ownerID int64) (*domain.Task, error) {
	return s.transition(ctx, taskID, ownerID, domain.TaskStatusInProgress)
}

func (s *TaskService) transition(ctx context.Context, taskID, ownerID int64, status domain.TaskStatus) (*domain.Task, error) {
	task, err := s.tasks.GetTask(ctx, taskID, ownerID)
	if err != nil {
		return nil, err
	}

	if err := task.UpdateStatus(status); err != nil {
		return nil, err
	}

	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// DeleteTask removes a task. If the task carried a calendar reference the
// external event is deleted fire-and-forget.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, ownerID int64) error {
	task, err := s.tasks.GetTask(ctx, taskID, ownerID)
	if err != nil {
		return err
	}

	if err := s.tasks.DeleteTask(ctx, taskID, ownerID); err != nil {
		return err
	}

	if task.ExternalEventRef != "" {
		if err := s.calendar.DeleteEvent(ctx, task.ExternalEventRef); err != nil {
			s.logger.Warn("calendar event deletion failed",
				"task_id", taskID,
				"event_ref", task.ExternalEventRef,
				"error", err)
		}
	}

	return nil
}

// GetTask retrieves a task by ID scoped to its owner.
func (s *TaskService) GetTask(ctx context.Context, taskID, ownerID int64) (*domain.Task, error) {
	return s.tasks.GetTask(ctx, taskID, ownerID)
}

// ListTasks returns the owner's tasks, optionally filtered by status.
func (s *TaskService) ListTasks(ctx context.Context, ownerID int64, status domain.TaskStatus) ([]*domain.Task, error) {
	return s.tasks.ListTasks(ctx, ownerID, status)
}

// ListUpcoming returns the owner's tasks due within the next given number of
// days.
func (s *TaskService) ListUpcoming(ctx context.Context, ownerID int64, days int) ([]*domain.Task, error) {
	return s.tasks.ListUpcoming(ctx, ownerID, time.Now().UTC(), days)
}

// RegisterUser records a chat user on first contact and refreshes the
// profile on later ones.
func (s *TaskService) RegisterUser(ctx context.Context, telegramID int64, username, firstName string) (*domain.User, error) {
	return s.users.UpsertUser(ctx, telegramID, username, firstName)
}
