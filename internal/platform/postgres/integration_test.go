package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mpetrenko/taskbot/internal/domain"
	"github.com/mpetrenko/taskbot/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestDB connects to the database named by DATABASE_URL and creates a
// throwaway schema so parallel test runs never collide. Skips when no
// database is configured.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping database integration test")
	}

	db, err := sql.Open("pgx", url)
	require.NoError(t, err)
	// search_path is per-connection; one connection keeps it in effect for
	// every statement in the test.
	db.SetMaxOpenConns(1)
	require.NoError(t, db.Ping())

	schema := fmt.Sprintf("taskbot_test_%d", rand.Int63())
	_, err = db.Exec(fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)
	_, err = db.Exec(fmt.Sprintf("SET search_path TO %s", schema))
	require.NoError(t, err)

	createTestTables(t, db)

	t.Cleanup(func() {
		_, _ = db.Exec(fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		_ = db.Close()
	})

	return db
}

func createTestTables(t *testing.T, db *sql.DB) {
	t.Helper()

	// Mirrors cmd/bot/migrations/00001_create_core_tables.sql.
	ddl := `
	CREATE TABLE users (
		id BIGSERIAL PRIMARY KEY,
		telegram_id BIGINT NOT NULL UNIQUE,
		username TEXT,
		first_name TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE tasks (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL REFERENCES users(telegram_id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'medium'
			CHECK (priority IN ('low', 'medium', 'high')),
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'in_progress', 'completed', 'cancelled')),
		due_at TIMESTAMPTZ,
		reminder_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		reminder_at TIMESTAMPTZ,
		external_event_ref TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE reminders (
		id BIGSERIAL PRIMARY KEY,
		task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		owner_id BIGINT NOT NULL REFERENCES users(telegram_id),
		fire_at TIMESTAMPTZ NOT NULL,
		is_sent BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`
	_, err := db.Exec(ddl)
	require.NoError(t, err)
}

func mustCreateUser(t *testing.T, db *sql.DB, telegramID int64) {
	t.Helper()
	users := NewUserStore(db, testLogger())
	_, err := users.UpsertUser(context.Background(), telegramID, "tester", "Tester")
	require.NoError(t, err)
}

func mustCreateTask(t *testing.T, db *sql.DB, ownerID int64, title string, dueAt *time.Time) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(ownerID, title, "", domain.TaskPriorityMedium)
	require.NoError(t, err)
	task.DueAt = dueAt

	tasks := NewTaskStore(db, testLogger())
	require.NoError(t, tasks.CreateTask(context.Background(), task))
	return task
}

func TestUserStoreUpsert(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	users := NewUserStore(db, testLogger())
	ctx := context.Background()

	created, err := users.UpsertUser(ctx, 555, "alice", "Alice")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	// A second upsert refreshes profile fields without a new row.
	updated, err := users.UpsertUser(ctx, 555, "alice_new", "Alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "alice_new", updated.Username)

	fetched, err := users.GetUserByTelegramID(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", fetched.Username)

	owners, err := users.ListAllOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{555}, owners)

	_, err = users.GetUserByTelegramID(ctx, 999)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestTaskStoreLifecycle(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	tasks := NewTaskStore(db, testLogger())
	ctx := context.Background()

	mustCreateUser(t, db, 100)
	dueAt := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
	task := mustCreateTask(t, db, 100, "Buy groceries", &dueAt)
	require.NotZero(t, task.ID)

	fetched, err := tasks.GetTask(ctx, task.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, "Buy groceries", fetched.Title)
	require.NotNil(t, fetched.DueAt)
	assert.True(t, fetched.DueAt.Equal(dueAt))

	// Scoped to owner: another chat cannot see it.
	_, err = tasks.GetTask(ctx, task.ID, 200)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	require.NoError(t, fetched.UpdateStatus(domain.TaskStatusCompleted))
	require.NoError(t, tasks.UpdateTask(ctx, fetched))

	fetched, err = tasks.GetTask(ctx, task.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, fetched.Status)

	require.NoError(t, tasks.SetExternalEventRef(ctx, task.ID, 100, "evt-1"))
	fetched, err = tasks.GetTask(ctx, task.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", fetched.ExternalEventRef)

	require.NoError(t, tasks.DeleteTask(ctx, task.ID, 100))
	assert.ErrorIs(t, tasks.DeleteTask(ctx, task.ID, 100), store.ErrTaskNotFound)
}

func TestTaskStoreListOverdue(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	tasks := NewTaskStore(db, testLogger())
	ctx := context.Background()

	mustCreateUser(t, db, 100)
	now := time.Now().UTC()

	pastEarlier := now.Add(-2 * time.Hour)
	pastLater := now.Add(-1 * time.Hour)
	future := now.Add(time.Hour)

	mustCreateTask(t, db, 100, "older overdue", &pastEarlier)
	mustCreateTask(t, db, 100, "newer overdue", &pastLater)
	mustCreateTask(t, db, 100, "not yet due", &future)
	mustCreateTask(t, db, 100, "no deadline", nil)

	completed := mustCreateTask(t, db, 100, "done late", &pastEarlier)
	require.NoError(t, completed.UpdateStatus(domain.TaskStatusCompleted))
	require.NoError(t, tasks.UpdateTask(ctx, completed))

	overdue, err := tasks.ListOverdue(ctx, 100, now)
	require.NoError(t, err)
	require.Len(t, overdue, 2, "only active tasks with a passed due time are overdue")
	assert.Equal(t, "older overdue", overdue[0].Title, "overdue tasks come back due-time ascending")
	assert.Equal(t, "newer overdue", overdue[1].Title)
}

func TestTaskStoreListUpcoming(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	tasks := NewTaskStore(db, testLogger())
	ctx := context.Background()

	mustCreateUser(t, db, 100)
	now := time.Now().UTC()

	tomorrow := now.Add(24 * time.Hour)
	nextWeek := now.Add(6 * 24 * time.Hour)
	nextMonth := now.Add(30 * 24 * time.Hour)

	mustCreateTask(t, db, 100, "tomorrow", &tomorrow)
	mustCreateTask(t, db, 100, "next week", &nextWeek)
	mustCreateTask(t, db, 100, "next month", &nextMonth)

	upcoming, err := tasks.ListUpcoming(ctx, 100, now, 7)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "tomorrow", upcoming[0].Title)
	assert.Equal(t, "next week", upcoming[1].Title)
}

func TestTaskStoreRejectsUnknownOwner(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	tasks := NewTaskStore(db, testLogger())

	task, err := domain.NewTask(424242, "orphan", "", domain.TaskPriorityLow)
	require.NoError(t, err)

	err = tasks.CreateTask(context.Background(), task)
	assert.ErrorIs(t, err, store.ErrInvalidEntity, "a task without a registered owner violates the foreign key")
}

func TestReminderStoreLifecycle(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	reminders := NewReminderStore(db, testLogger())
	ctx := context.Background()

	mustCreateUser(t, db, 100)
	task := mustCreateTask(t, db, 100, "remind me", nil)

	fireAt := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	reminder, err := domain.NewReminder(task.ID, 100, fireAt)
	require.NoError(t, err)
	require.NoError(t, reminders.CreateReminder(ctx, reminder))
	require.NotZero(t, reminder.ID)

	unsent, err := reminders.ListUnsentReminders(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	assert.Equal(t, reminder.ID, unsent[0].ID)
	assert.True(t, unsent[0].FireAt.Equal(fireAt))

	require.NoError(t, reminders.MarkReminderSent(ctx, reminder.ID))
	// Idempotent: marking again succeeds.
	require.NoError(t, reminders.MarkReminderSent(ctx, reminder.ID))
	// Missing reminders are a no-op.
	require.NoError(t, reminders.MarkReminderSent(ctx, 99999))

	unsent, err = reminders.ListUnsentReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsent)
}

func TestReminderCascadeOnTaskDelete(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	tasks := NewTaskStore(db, testLogger())
	reminders := NewReminderStore(db, testLogger())
	ctx := context.Background()

	mustCreateUser(t, db, 100)
	task := mustCreateTask(t, db, 100, "short-lived", nil)

	reminder, err := domain.NewReminder(task.ID, 100, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, reminders.CreateReminder(ctx, reminder))

	require.NoError(t, tasks.DeleteTask(ctx, task.ID, 100))

	unsent, err := reminders.ListUnsentReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsent, "deleting a task removes its reminders")
}
