package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mpetrenko/taskbot/internal/domain"
	"github.com/mpetrenko/taskbot/internal/store"
)

// ReminderStore implements the store.ReminderStore interface using PostgreSQL.
type ReminderStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewReminderStore creates a new ReminderStore.
func NewReminderStore(db store.DBTX, logger *slog.Logger) *ReminderStore {
	return &ReminderStore{
		db:     db,
		logger: logger.With("component", "reminder_store"),
	}
}

// CreateReminder persists a new reminder and assigns its ID.
func (s *ReminderStore) CreateReminder(ctx context.Context, reminder *domain.Reminder) error {
	if err := reminder.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO reminders (task_id, owner_id, fire_at, is_sent, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		reminder.TaskID,
		reminder.OwnerID,
		reminder.FireAt.UTC(),
		reminder.Sent,
		reminder.CreatedAt,
	).Scan(&reminder.ID)
	if err != nil {
		s.logger.Error("failed to create reminder", "task_id", reminder.TaskID, "error", err)
		return MapError(err)
	}

	return nil
}

// MarkReminderSent flags the reminder as delivered. Marking an already-sent
// or missing reminder is a no-op, which keeps redelivery attempts after a
// crash from turning into errors.
func (s *ReminderStore) MarkReminderSent(ctx context.Context, reminderID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET is_sent = TRUE WHERE id = $1`, reminderID)
	if err != nil {
		s.logger.Error("failed to mark reminder sent", "reminder_id", reminderID, "error", err)
		return MapError(err)
	}

	return nil
}

// ListUnsentReminders returns all reminders not yet marked sent, ordered by
// fire time ascending.
func (s *ReminderStore) ListUnsentReminders(ctx context.Context) ([]*domain.Reminder, error) {
	query := `
		SELECT id, task_id, owner_id, fire_at, is_sent, created_at
		FROM reminders
		WHERE is_sent = FALSE
		ORDER BY fire_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.logger.Error("failed to list unsent reminders", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var reminders []*domain.Reminder
	for rows.Next() {
		var r domain.Reminder
		if err := rows.Scan(&r.ID, &r.TaskID, &r.OwnerID, &r.FireAt, &r.Sent, &r.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		r.FireAt = r.FireAt.UTC()
		reminders = append(reminders, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return reminders, nil
}
