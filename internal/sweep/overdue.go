package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/mpetrenko/taskbot/internal/domain"
	"github.com/mpetrenko/taskbot/internal/metrics"
	"github.com/mpetrenko/taskbot/internal/notify"
	"github.com/mpetrenko/taskbot/internal/store"
)

// OverdueSweeperConfig holds the timing knobs for the overdue sweeper.
type OverdueSweeperConfig struct {
	// Interval is how often a sweep tick runs.
	Interval time.Duration

	// Window bounds notification to tasks overdue by less than this much.
	// Tasks past the window are silently skipped; they stay visible through
	// on-demand queries.
	Window time.Duration

	// NotifyTimeout bounds a single delivery attempt.
	NotifyTimeout time.Duration
}

// OverdueSweeper scans every user's active tasks for newly-overdue items and
// emits a notice for each one still inside the notification window. It needs
// no queue: overdue detection is a stateless range query. There is no
// persisted already-notified mark, so a task sitting near the window edge
// across consecutive ticks is renotified each tick it remains in-window.
type OverdueSweeper struct {
	users    store.UserStore
	tasks    store.TaskStore
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	config   OverdueSweeperConfig

	// now is the clock; replaced in tests.
	now func() time.Time
}

// NewOverdueSweeper creates the sweeper with its collaborators.
func NewOverdueSweeper(
	users store.UserStore,
	tasks store.TaskStore,
	notifier notify.Notifier,
	m *metrics.Metrics,
	cfg OverdueSweeperConfig,
	logger *slog.Logger,
) *OverdueSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}

	return &OverdueSweeper{
		users:    users,
		tasks:    tasks,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With("component", "overdue_sweeper"),
		config:   cfg,
		now:      time.Now,
	}
}

// Name identifies the sweeper in logs and metrics.
func (s *OverdueSweeper) Name() string {
	return metrics.SweeperOverdue
}

// Run executes sweep ticks on the configured interval until ctx is
// cancelled. Never fatal; every failure is logged and the next tick retries.
func (s *OverdueSweeper) Run(ctx context.Context) {
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

func (s *OverdueSweeper) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep tick panicked", "panic", r)
			s.metrics.SweepErrors.WithLabelValues(s.Name()).Inc()
		}
	}()
	s.Tick(ctx)
}

// Tick runs one overdue scan across all owners. Per-owner and per-task
// failures are isolated: a bad owner never aborts the others, a failed send
// never aborts the owner's remaining tasks.
func (s *OverdueSweeper) Tick(ctx context.Context) {
	now := s.now()

	owners, err := s.users.ListAllOwners(ctx)
	if err != nil {
		s.logger.Error("failed to list owners", "error", err)
		s.metrics.SweepErrors.WithLabelValues(s.Name()).Inc()
		return
	}

	for _, owner := range owners {
		s.sweepOwner(ctx, owner, now)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}

	s.metrics.SweepTicks.WithLabelValues(s.Name()).Inc()
}

func (s *OverdueSweeper) sweepOwner(ctx context.Context, owner int64, now time.Time) {
	overdue, err := s.tasks.ListOverdue(ctx, owner, now)
	if err != nil {
		s.logger.Error("failed to list overdue tasks", "owner_id", owner, "error", err)
		s.metrics.SweepErrors.WithLabelValues(s.Name()).Inc()
		return
	}

	for _, task := range overdue {
		if task.DueAt == nil {
			continue
		}

		elapsed := now.Sub(*task.DueAt)
		if elapsed <= 0 || elapsed >= s.config.Window {
			continue
		}

		s.notifyOverdue(task, owner)
	}
}

func (s *OverdueSweeper) notifyOverdue(task *domain.Task, owner int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.NotifyTimeout)
	defer cancel()

	text := notify.RenderOverdue(task)
	if err := s.notifier.Send(ctx, owner, text); err != nil {
		s.logger.Error("overdue notice delivery failed",
			"task_id", task.ID,
			"owner_id", owner,
			"error", err)
		s.metrics.SweepErrors.WithLabelValues(s.Name()).Inc()
		return
	}

	s.metrics.OverdueNotices.Inc()
	s.logger.Info("overdue notice sent", "task_id", task.ID, "owner_id", owner)
}
