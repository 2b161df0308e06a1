package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrenko/taskbot/internal/domain"
	"github.com/mpetrenko/taskbot/internal/queue"
)

func activeTask(id, ownerID int64, title string) *domain.Task {
	return &domain.Task{
		ID:              id,
		OwnerID:         ownerID,
		Title:           title,
		Priority:        domain.TaskPriorityMedium,
		Status:          domain.TaskStatusPending,
		ReminderEnabled: true,
	}
}

func newTestDueSweeper(t *testing.T, q *mockQueue, tasks *mockTaskStore, reminders *mockReminderStore, notifier *mockNotifier) *DueReminderSweeper {
	t.Helper()
	return NewDueReminderSweeper(q, tasks, reminders, notifier,
		testMetrics(t), DueReminderSweeperConfig{}, testLogger())
}

func TestTickSendsDueReminder(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fireAt := base.Add(10 * time.Minute)

	q := &mockQueue{entries: []queue.Entry{
		{ReminderID: 1, OwnerID: 100, TaskID: 10, FireAt: fireAt},
	}}
	tasks := newMockTaskStore()
	tasks.tasks[10] = activeTask(10, 100, "Buy groceries")
	reminders := &mockReminderStore{}
	notifier := &mockNotifier{}

	s := newTestDueSweeper(t, q, tasks, reminders, notifier)

	// One minute before the fire time nothing happens.
	s.now = func() time.Time { return fireAt.Add(-time.Minute) }
	s.Tick(context.Background())
	assert.Empty(t, notifier.sentOwners)
	assert.Len(t, q.entries, 1, "entry must stay queued until due")

	// One minute after, the reminder goes out exactly once.
	s.now = func() time.Time { return fireAt.Add(time.Minute) }
	s.Tick(context.Background())
	require.Len(t, notifier.sentOwners, 1)
	assert.Equal(t, int64(100), notifier.sentOwners[0])
	assert.Contains(t, notifier.sentMessage[0], "Buy groceries")
	assert.Equal(t, []int64{1}, reminders.marked, "reminder must be marked sent")
	assert.Empty(t, q.entries, "delivered entry must leave the queue")

	// The next tick is quiet.
	s.now = func() time.Time { return fireAt.Add(2 * time.Minute) }
	s.Tick(context.Background())
	assert.Len(t, notifier.sentOwners, 1, "a delivered reminder never fires again")
}

func TestTickDeliversInFireTimeOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q := &mockQueue{entries: []queue.Entry{
		{ReminderID: 1, OwnerID: 100, TaskID: 10, FireAt: base.Add(time.Minute)},
		{ReminderID: 2, OwnerID: 200, TaskID: 20, FireAt: base.Add(2 * time.Minute)},
	}}
	tasks := newMockTaskStore()
	tasks.tasks[10] = activeTask(10, 100, "first")
	tasks.tasks[20] = activeTask(20, 200, "second")
	reminders := &mockReminderStore{}
	notifier := &mockNotifier{}

	s := newTestDueSweeper(t, q, tasks, reminders, notifier)
	s.now = func() time.Time { return base.Add(5 * time.Minute) }
	s.Tick(context.Background())

	assert.Equal(t, []int64{100, 200}, notifier.sentOwners)
	assert.Equal(t, []int64{1, 2}, reminders.marked)
}

func TestTickDropsEntryForDeletedTask(t *testing.T) {
	t.Parallel()

	fireAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q := &mockQueue{entries: []queue.Entry{
		{ReminderID: 1, OwnerID: 100, TaskID: 10, FireAt: fireAt},
	}}
	tasks := newMockTaskStore() // task 10 never exists
	reminders := &mockReminderStore{}
	notifier := &mockNotifier{}

	s := newTestDueSweeper(t, q, tasks, reminders, notifier)
	s.now = func() time.Time { return fireAt.Add(time.Minute) }
	s.Tick(context.Background())

	assert.Empty(t, notifier.sentOwners, "a deleted task must not be notified")
	assert.Empty(t, reminders.marked)
	assert.Empty(t, q.entries, "stale entry must be dropped")
}

func TestTickDropsEntryForTerminalTask(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.TaskStatus{domain.TaskStatusCompleted, domain.TaskStatusCancelled} {
		fireAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		q := &mockQueue{entries: []queue.Entry{
			{ReminderID: 1, OwnerID: 100, TaskID: 10, FireAt: fireAt},
		}}
		tasks := newMockTaskStore()
		task := activeTask(10, 100, "done already")
		task.Status = status
		tasks.tasks[10] = task
		notifier := &mockNotifier{}

		s := newTestDueSweeper(t, q, tasks, &mockReminderStore{}, notifier)
		s.now = func() time.Time { return fireAt.Add(time.Minute) }
		s.Tick(context.Background())

		assert.Empty(t, notifier.sentOwners, "status %s must suppress the reminder", status)
		assert.Empty(t, q.entries)
	}
}

func TestTickDropsEntryWhenReminderDisabled(t *testing.T) {
	t.Parallel()

	fireAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q := &mockQueue{entries: []queue.Entry{
		{ReminderID: 1, OwnerID: 100, TaskID: 10, FireAt: fireAt},
	}}
	tasks := newMockTaskStore()
	task := activeTask(10, 100, "quiet please")
	task.ReminderEnabled = false
	tasks.tasks[10] = task
	notifier := &mockNotifier{}

	s := newTestDueSweeper(t, q, tasks, &mockReminderStore{}, notifier)
	s.now = func() time.Time { return fireAt.Add(time.Minute) }
	s.Tick(context.Background())

	assert.Empty(t, notifier.sentOwners)
	assert.Empty(t, q.entries)
}

func TestTickRemovesEntryAfterFailedDelivery(t *testing.T) {
	t.Parallel()

	fireAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q := &mockQueue{entries: []queue.Entry{
		{ReminderID: 1, OwnerID: 100, TaskID: 10, FireAt: fireAt},
	}}
	tasks := newMockTaskStore()
	tasks.tasks[10] = activeTask(10, 100, "unlucky")
	reminders := &mockReminderStore{}
	notifier := &mockNotifier{sendErr: errors.New("chat unreachable")}

	s := newTestDueSweeper(t, q, tasks, reminders, notifier)
	s.now = func() time.Time { return fireAt.Add(time.Minute) }
	s.Tick(context.Background())

	assert.Empty(t, q.entries, "delivery is best-effort, no redelivery after a failed send")
	assert.Empty(t, reminders.marked, "a failed send must not mark the reminder sent")
}

func TestTickKeepsEntryWhenMarkSentFails(t *testing.T) {
	t.Parallel()

	fireAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q := &mockQueue{entries: []queue.Entry{
		{ReminderID: 1, OwnerID: 100, TaskID: 10, FireAt: fireAt},
	}}
	tasks := newMockTaskStore()
	tasks.tasks[10] = activeTask(10, 100, "persistent")
	reminders := &mockReminderStore{markErr: errors.New("database down")}
	notifier := &mockNotifier{}

	s := newTestDueSweeper(t, q, tasks, reminders, notifier)
	s.now = func() time.Time { return fireAt.Add(time.Minute) }
	s.Tick(context.Background())

	assert.Len(t, q.entries, 1, "entry stays queued when the sent flag cannot be persisted")
	assert.Len(t, notifier.sentOwners, 1)
}

func TestTickIsolatesEntryFailures(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q := &mockQueue{entries: []queue.Entry{
		{ReminderID: 1, OwnerID: 100, TaskID: 10, FireAt: base.Add(time.Minute)},
		{ReminderID: 2, OwnerID: 200, TaskID: 20, FireAt: base.Add(2 * time.Minute)},
	}}
	tasks := newMockTaskStore()
	// Task 10 is gone; task 20 is live.
	tasks.tasks[20] = activeTask(20, 200, "still here")
	reminders := &mockReminderStore{}
	notifier := &mockNotifier{failOwners: map[int64]error{}}

	s := newTestDueSweeper(t, q, tasks, reminders, notifier)
	s.now = func() time.Time { return base.Add(5 * time.Minute) }
	s.Tick(context.Background())

	assert.Equal(t, []int64{200}, notifier.sentOwners, "a stale first entry must not block the second")
	assert.Empty(t, q.entries)
}

func TestTickSurvivesPopFailure(t *testing.T) {
	t.Parallel()

	q := &mockQueue{popErr: errors.New("storage unavailable")}
	notifier := &mockNotifier{}

	s := newTestDueSweeper(t, q, newMockTaskStore(), &mockReminderStore{}, notifier)
	s.Tick(context.Background())

	assert.Empty(t, notifier.sentOwners)
}

func TestDueSweeperName(t *testing.T) {
	t.Parallel()

	s := newTestDueSweeper(t, &mockQueue{}, newMockTaskStore(), &mockReminderStore{}, &mockNotifier{})
	assert.Equal(t, "reminders", s.Name())
}

func TestDueSweeperConfigDefaults(t *testing.T) {
	t.Parallel()

	s := newTestDueSweeper(t, &mockQueue{}, newMockTaskStore(), &mockReminderStore{}, &mockNotifier{})
	assert.Equal(t, 30*time.Second, s.config.Interval)
	assert.Equal(t, 30*time.Second, s.config.NotifyTimeout)
}
