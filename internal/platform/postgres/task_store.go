package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mpetrenko/taskbot/internal/domain"
	"github.com/mpetrenko/taskbot/internal/store"
)

// TaskStore implements the store.TaskStore interface using PostgreSQL.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskStore creates a new TaskStore.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	return &TaskStore{
		db:     db,
		logger: logger.With("component", "task_store"),
	}
}

// taskColumns is the canonical column list used by every task SELECT.
const taskColumns = `id, owner_id, title, description, priority, status,
	due_at, reminder_enabled, reminder_at, external_event_ref, created_at, updated_at`

// CreateTask persists a new task and assigns its ID.
func (s *TaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (owner_id, title, description, priority, status,
			due_at, reminder_enabled, reminder_at, external_event_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		task.OwnerID,
		task.Title,
		task.Description,
		task.Priority,
		task.Status,
		nullTime(task.DueAt),
		task.ReminderEnabled,
		nullTime(task.ReminderAt),
		nullString(task.ExternalEventRef),
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID)
	if err != nil {
		s.logger.Error("failed to create task", "owner_id", task.OwnerID, "error", err)
		return MapError(err)
	}

	return nil
}

// GetTask retrieves a task by ID scoped to its owner.
func (s *TaskStore) GetTask(ctx context.Context, taskID, ownerID int64) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_id = $2`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, taskID, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		s.logger.Error("failed to get task", "task_id", taskID, "error", err)
		return nil, MapError(err)
	}

	return task, nil
}

// UpdateTask persists the mutable fields of an existing task.
func (s *TaskStore) UpdateTask(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE tasks
		SET title = $1, description = $2, priority = $3, status = $4,
			due_at = $5, reminder_enabled = $6, reminder_at = $7, updated_at = $8
		WHERE id = $9 AND owner_id = $10
	`

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Priority,
		task.Status,
		nullTime(task.DueAt),
		task.ReminderEnabled,
		nullTime(task.ReminderAt),
		now,
		task.ID,
		task.OwnerID,
	)
	if err != nil {
		s.logger.Error("failed to update task", "task_id", task.ID, "error", err)
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return store.ErrTaskNotFound
	}

	task.UpdatedAt = now
	return nil
}

// DeleteTask removes a task.
func (s *TaskStore) DeleteTask(ctx context.Context, taskID, ownerID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, taskID, ownerID)
	if err != nil {
		s.logger.Error("failed to delete task", "task_id", taskID, "error", err)
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// ListTasks returns the owner's tasks, optionally filtered by status.
func (s *TaskStore) ListTasks(ctx context.Context, ownerID int64, status domain.TaskStatus) ([]*domain.Task, error) {
	var rows *sql.Rows
	var err error

	if status != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+taskColumns+` FROM tasks
			 WHERE owner_id = $1 AND status = $2
			 ORDER BY due_at ASC NULLS LAST, created_at DESC`,
			ownerID, status)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+taskColumns+` FROM tasks
			 WHERE owner_id = $1
			 ORDER BY due_at ASC NULLS LAST, created_at DESC`,
			ownerID)
	}
	if err != nil {
		s.logger.Error("failed to list tasks", "owner_id", ownerID, "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	return scanTasks(rows)
}

// ListOverdue returns the owner's non-terminal tasks whose due time has
// passed, ordered by due time ascending.
func (s *TaskStore) ListOverdue(ctx context.Context, ownerID int64, now time.Time) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE owner_id = $1
		  AND due_at IS NOT NULL AND due_at < $2
		  AND status NOT IN ('completed', 'cancelled')
		ORDER BY due_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID, now.UTC())
	if err != nil {
		s.logger.Error("failed to list overdue tasks", "owner_id", ownerID, "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	return scanTasks(rows)
}

// ListUpcoming returns the owner's non-terminal tasks due within the next
// given number of days.
func (s *TaskStore) ListUpcoming(ctx context.Context, ownerID int64, now time.Time, days int) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE owner_id = $1
		  AND due_at >= $2 AND due_at <= $3
		  AND status NOT IN ('completed', 'cancelled')
		ORDER BY due_at ASC
	`

	horizon := now.UTC().AddDate(0, 0, days)
	rows, err := s.db.QueryContext(ctx, query, ownerID, now.UTC(), horizon)
	if err != nil {
		s.logger.Error("failed to list upcoming tasks", "owner_id", ownerID, "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	return scanTasks(rows)
}

// SetExternalEventRef records the opaque calendar event reference on a task.
func (s *TaskStore) SetExternalEventRef(ctx context.Context, taskID, ownerID int64, ref string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET external_event_ref = $1, updated_at = $2 WHERE id = $3 AND owner_id = $4`,
		nullString(ref), time.Now().UTC(), taskID, ownerID)
	if err != nil {
		s.logger.Error("failed to set external event ref", "task_id", taskID, "error", err)
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var dueAt, reminderAt sql.NullTime
	var eventRef sql.NullString

	err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&task.Description,
		&task.Priority,
		&task.Status,
		&dueAt,
		&task.ReminderEnabled,
		&reminderAt,
		&eventRef,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueAt.Valid {
		t := dueAt.Time.UTC()
		task.DueAt = &t
	}
	if reminderAt.Valid {
		t := reminderAt.Time.UTC()
		task.ReminderAt = &t
	}
	if eventRef.Valid {
		task.ExternalEventRef = eventRef.String
	}

	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return tasks, nil
}

// nullTime converts an optional timestamp into its SQL representation.
// Absence is stored as NULL, never as a sentinel date.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
