package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/mpetrenko/taskbot/internal/metrics"
	"github.com/mpetrenko/taskbot/internal/notify"
	"github.com/mpetrenko/taskbot/internal/queue"
	"github.com/mpetrenko/taskbot/internal/store"
)

// DueReminderSweeperConfig holds the timing knobs for the reminder sweeper.
type DueReminderSweeperConfig struct {
	// Interval is how often a sweep tick runs.
	Interval time.Duration

	// NotifyTimeout bounds the processing of a single queue entry, including
	// the delivery attempt. A hung transport call cannot stall the tick's
	// remaining items beyond this.
	NotifyTimeout time.Duration
}

// DueReminderSweeper pops due entries from the reminder queue, reconciles
// each against the durable store, and hands live ones to the notifier.
// Delivery is best-effort: once an entry is popped and a send attempted, the
// entry is removed whether or not the send succeeded.
type DueReminderSweeper struct {
	queue     queue.Queue
	tasks     store.TaskStore
	reminders store.ReminderStore
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	config    DueReminderSweeperConfig

	// now is the clock; replaced in tests.
	now func() time.Time
}

// NewDueReminderSweeper creates the sweeper with its collaborators.
func NewDueReminderSweeper(
	q queue.Queue,
	tasks store.TaskStore,
	reminders store.ReminderStore,
	notifier notify.Notifier,
	m *metrics.Metrics,
	cfg DueReminderSweeperConfig,
	logger *slog.Logger,
) *DueReminderSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}

	return &DueReminderSweeper{
		queue:     q,
		tasks:     tasks,
		reminders: reminders,
		notifier:  notifier,
		metrics:   m,
		logger:    logger.With("component", "reminder_sweeper"),
		config:    cfg,
		now:       time.Now,
	}
}

// Name identifies the sweeper in logs and metrics.
func (s *DueReminderSweeper) Name() string {
	return metrics.SweeperReminders
}

// Run executes sweep ticks on the configured interval until ctx is
// cancelled. The sweeper itself is never fatal: every failure is logged and
// the next tick retries independently.
func (s *DueReminderSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeTick(ctx)
		}
	}
}

// safeTick confines any escaped panic to the current tick.
func (s *DueReminderSweeper) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep tick panicked", "panic", r)
			s.metrics.SweepErrors.WithLabelValues(s.Name()).Inc()
		}
	}()
	s.Tick(ctx)
}

// Tick runs one sweep pass: pop everything due, process each entry in
// ascending fire-time order. A cancelled ctx stops the pass between entries;
// the entry in flight always finishes, so a shutdown never splits the
// mark-sent and queue-removal steps.
func (s *DueReminderSweeper) Tick(ctx context.Context) {
	now := s.now()

	due, err := s.queue.PopDue(ctx, now)
	if err != nil {
		s.logger.Error("failed to pop due reminders", "error", err)
		s.metrics.SweepErrors.WithLabelValues(s.Name()).Inc()
		return
	}

	for _, entry := range due {
		s.processEntry(entry)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}

	s.metrics.SweepTicks.WithLabelValues(s.Name()).Inc()

	if count, err := s.queue.Count(ctx); err == nil {
		s.metrics.QueueDepth.Set(float64(count))
	}
}

// processEntry resolves one queue entry against the store and attempts
// delivery. Errors are contained here: one entry's failure never aborts the
// remaining entries in the tick. The context is derived from the background
// context on purpose, so an in-flight item survives loop cancellation.
func (s *DueReminderSweeper) processEntry(entry queue.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.NotifyTimeout)
	defer cancel()

	logger := s.logger.With(
		"reminder_id", entry.ReminderID,
		"task_id", entry.TaskID,
		"owner_id", entry.OwnerID,
	)

	task, err := s.tasks.GetTask(ctx, entry.TaskID, entry.OwnerID)
	if err != nil {
		if store.IsNotFoundError(err) {
			// The task was deleted after enqueue. Expected steady-state
			// occurrence, not an error.
			s.removeEntry(ctx, entry, logger)
			logger.Debug("dropped stale queue entry, task gone")
			return
		}
		logger.Error("failed to resolve task for reminder", "error", err)
		s.metrics.SweepErrors.WithLabelValues(s.Name()).Inc()
		return
	}

	if task.IsTerminal() || !task.ReminderEnabled {
		s.removeEntry(ctx, entry, logger)
		logger.Debug("dropped stale queue entry, task no longer wants reminders",
			"status", task.Status)
		return
	}

	text := notify.RenderReminder(task)
	if err := s.notifier.Send(ctx, entry.OwnerID, text); err != nil {
		// Best-effort delivery: the entry is removed without retry.
		logger.Error("reminder delivery failed", "error", err)
		s.metrics.RemindersFailed.Inc()
		s.removeEntry(ctx, entry, logger)
		return
	}

	// Mark sent before removing the queue entry. If the process dies between
	// the two, the worst outcome is one extra delivery attempt, not a lost
	// reminder.
	if err := s.reminders.MarkReminderSent(ctx, entry.ReminderID); err != nil {
		logger.Error("failed to mark reminder sent", "error", err)
		s.metrics.SweepErrors.WithLabelValues(s.Name()).Inc()
		// Leave the entry queued; the next tick retries. Mark-sent is
		// idempotent, so the retry converges even if this update landed.
		return
	}

	s.removeEntry(ctx, entry, logger)
	s.metrics.RemindersSent.Inc()
	logger.Info("reminder sent")
}

func (s *DueReminderSweeper) removeEntry(ctx context.Context, entry queue.Entry, logger *slog.Logger) {
	if err := s.queue.Remove(ctx, entry); err != nil {
		logger.Error("failed to remove queue entry", "error", err)
		s.metrics.SweepErrors.WithLabelValues(s.Name()).Inc()
	}
}
