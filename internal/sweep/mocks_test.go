package sweep

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mpetrenko/taskbot/internal/domain"
	"github.com/mpetrenko/taskbot/internal/metrics"
	"github.com/mpetrenko/taskbot/internal/queue"
	"github.com/mpetrenko/taskbot/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	return metrics.New(prometheus.NewRegistry())
}

// mockQueue implements queue.Queue in memory with call recording.
type mockQueue struct {
	entries []queue.Entry

	popErr    error
	removeErr error

	removed []queue.Entry
}

func (m *mockQueue) Enqueue(ctx context.Context, entry queue.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockQueue) PopDue(ctx context.Context, now time.Time) ([]queue.Entry, error) {
	if m.popErr != nil {
		return nil, m.popErr
	}

	var due []queue.Entry
	for _, e := range m.entries {
		if !e.FireAt.After(now) {
			due = append(due, e)
		}
	}
	return due, nil
}

func (m *mockQueue) Remove(ctx context.Context, entry queue.Entry) error {
	if m.removeErr != nil {
		return m.removeErr
	}

	m.removed = append(m.removed, entry)
	for i, e := range m.entries {
		if e == entry {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockQueue) Count(ctx context.Context) (int, error) {
	return len(m.entries), nil
}

// mockTaskStore implements store.TaskStore keyed by task ID.
type mockTaskStore struct {
	tasks map[int64]*domain.Task

	getErr     error
	overdue    map[int64][]*domain.Task
	overdueErr error
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{
		tasks:   make(map[int64]*domain.Task),
		overdue: make(map[int64][]*domain.Task),
	}
}

func (m *mockTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	m.tasks[task.ID] = task
	return nil
}

func (m *mockTaskStore) GetTask(ctx context.Context, taskID, ownerID int64) (*domain.Task, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}

	task, ok := m.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return nil, store.ErrTaskNotFound
	}
	return task, nil
}

func (m *mockTaskStore) UpdateTask(ctx context.Context, task *domain.Task) error {
	m.tasks[task.ID] = task
	return nil
}

func (m *mockTaskStore) DeleteTask(ctx context.Context, taskID, ownerID int64) error {
	delete(m.tasks, taskID)
	return nil
}

func (m *mockTaskStore) ListTasks(ctx context.Context, ownerID int64, status domain.TaskStatus) ([]*domain.Task, error) {
	return nil, nil
}

func (m *mockTaskStore) ListOverdue(ctx context.Context, ownerID int64, now time.Time) ([]*domain.Task, error) {
	if m.overdueErr != nil {
		return nil, m.overdueErr
	}
	return m.overdue[ownerID], nil
}

func (m *mockTaskStore) ListUpcoming(ctx context.Context, ownerID int64, now time.Time, days int) ([]*domain.Task, error) {
	return nil, nil
}

func (m *mockTaskStore) SetExternalEventRef(ctx context.Context, taskID, ownerID int64, ref string) error {
	return nil
}

// mockReminderStore records mark-sent calls.
type mockReminderStore struct {
	markErr error
	marked  []int64
}

func (m *mockReminderStore) CreateReminder(ctx context.Context, reminder *domain.Reminder) error {
	return nil
}

func (m *mockReminderStore) MarkReminderSent(ctx context.Context, reminderID int64) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, reminderID)
	return nil
}

func (m *mockReminderStore) ListUnsentReminders(ctx context.Context) ([]*domain.Reminder, error) {
	return nil, nil
}

// mockUserStore serves a fixed owner list.
type mockUserStore struct {
	owners    []int64
	ownersErr error
}

func (m *mockUserStore) UpsertUser(ctx context.Context, telegramID int64, username, firstName string) (*domain.User, error) {
	return &domain.User{TelegramID: telegramID, Username: username, FirstName: firstName}, nil
}

func (m *mockUserStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	return &domain.User{TelegramID: telegramID}, nil
}

func (m *mockUserStore) ListAllOwners(ctx context.Context) ([]int64, error) {
	if m.ownersErr != nil {
		return nil, m.ownersErr
	}
	return m.owners, nil
}

// mockNotifier records sends and can fail selectively per owner.
type mockNotifier struct {
	sendErr     error
	failOwners  map[int64]error
	sentOwners  []int64
	sentMessage []string
}

func (m *mockNotifier) Send(ctx context.Context, ownerID int64, text string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	if err, ok := m.failOwners[ownerID]; ok {
		return err
	}
	m.sentOwners = append(m.sentOwners, ownerID)
	m.sentMessage = append(m.sentMessage, text)
	return nil
}
