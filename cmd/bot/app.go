package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mpetrenko/taskbot/internal/api"
	"github.com/mpetrenko/taskbot/internal/calendar"
	"github.com/mpetrenko/taskbot/internal/config"
	"github.com/mpetrenko/taskbot/internal/events"
	"github.com/mpetrenko/taskbot/internal/metrics"
	"github.com/mpetrenko/taskbot/internal/notify"
	"github.com/mpetrenko/taskbot/internal/platform/postgres"
	"github.com/mpetrenko/taskbot/internal/queue"
	"github.com/mpetrenko/taskbot/internal/service"
	"github.com/mpetrenko/taskbot/internal/store"
	"github.com/mpetrenko/taskbot/internal/sweep"
)

// queueRegistrationHandler inserts a queue entry for every reminder the
// service layer announces. It is the receiving end of the insertion
// contract between reminder creation and the dispatch queue.
type queueRegistrationHandler struct {
	queue  queue.Queue
	logger *slog.Logger
}

// HandleEvent processes reminder-scheduled events by enqueueing the entry.
func (h *queueRegistrationHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeReminderScheduled {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload events.ReminderScheduledPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	entry := queue.Entry{
		ReminderID: payload.ReminderID,
		OwnerID:    payload.OwnerID,
		TaskID:     payload.TaskID,
		FireAt:     payload.FireAt,
	}
	if err := h.queue.Enqueue(ctx, entry); err != nil {
		h.logger.Error("failed to enqueue reminder",
			"error", err,
			"reminder_id", payload.ReminderID,
			"event_id", event.ID)
		return fmt.Errorf("failed to enqueue reminder: %w", err)
	}

	return nil
}

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	queueDB *badger.DB

	taskStore     store.TaskStore
	userStore     store.UserStore
	reminderStore store.ReminderStore

	reminderQueue queue.Queue
	notifier      notify.Notifier
	calendar      calendar.Client
	eventEmitter  events.EventEmitter
	taskService   *service.TaskService

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	supervisor *sweep.Supervisor
	httpServer *http.Server
}

// newApplication creates an application instance with all dependencies
// explicitly constructed and injected. It accepts the core dependencies that
// must be established before initialization: configuration, logger and the
// database connection.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (_ *application, err error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Stores over the durable source of truth.
	app.taskStore = postgres.NewTaskStore(db, logger)
	app.userStore = postgres.NewUserStore(db, logger)
	app.reminderStore = postgres.NewReminderStore(db, logger)

	// Dispatch queue.
	queueDB, err := queue.Open(queue.Config{
		Path:     cfg.Queue.Path,
		InMemory: cfg.Queue.InMemory,
		Logger:   logger.With("component", "queue_storage"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open reminder queue: %w", err)
	}
	app.queueDB = queueDB
	app.reminderQueue = queue.NewBadgerQueue(queueDB, logger)

	// Later construction steps can still fail; the caller only owns the
	// database handle, so the queue storage is released here.
	defer func() {
		if err != nil {
			_ = queueDB.Close()
		}
	}()

	// Delivery channel and calendar collaborator.
	app.notifier = notify.NewTelegramNotifier(cfg.Telegram)
	if cfg.Calendar.Enabled {
		app.calendar = calendar.NewHTTPClient(cfg.Calendar)
		logger.Info("calendar integration enabled", "base_url", cfg.Calendar.BaseURL)
	} else {
		app.calendar = calendar.Noop{}
	}

	// Metrics.
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector())
	app.metrics = metrics.New(app.registry)

	// Event system wiring: service emits, queue handler inserts.
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(&queueRegistrationHandler{
		queue:  app.reminderQueue,
		logger: logger.With("component", "queue_registration_handler"),
	})
	app.eventEmitter = emitter

	app.taskService, err = service.NewTaskService(
		app.taskStore,
		app.reminderStore,
		app.userStore,
		app.eventEmitter,
		app.calendar,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	if cfg.Queue.ReconcileOnStart {
		if err = app.reconcileQueue(ctx); err != nil {
			return nil, fmt.Errorf("failed to reconcile reminder queue: %w", err)
		}
	}

	app.supervisor = sweep.NewSupervisor(logger,
		sweep.NewDueReminderSweeper(
			app.reminderQueue,
			app.taskStore,
			app.reminderStore,
			app.notifier,
			app.metrics,
			sweep.DueReminderSweeperConfig{
				Interval:      cfg.Sweep.ReminderInterval(),
				NotifyTimeout: cfg.Sweep.NotifyTimeout(),
			},
			logger,
		),
		sweep.NewOverdueSweeper(
			app.userStore,
			app.taskStore,
			app.notifier,
			app.metrics,
			sweep.OverdueSweeperConfig{
				Interval:      cfg.Sweep.OverdueInterval(),
				Window:        cfg.Sweep.OverdueWindow(),
				NotifyTimeout: cfg.Sweep.NotifyTimeout(),
			},
			logger,
		),
	)

	opsHandler := api.NewOpsHandler(db, app.reminderQueue, logger)
	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(opsHandler, app.registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("application initialized")
	return app, nil
}

// reconcileQueue rebuilds the dispatch queue from unsent reminders in the
// durable store. Enqueue is idempotent, so entries that survived in the
// queue directory are simply reasserted.
func (app *application) reconcileQueue(ctx context.Context) error {
	reminders, err := app.reminderStore.ListUnsentReminders(ctx)
	if err != nil {
		return err
	}

	for _, r := range reminders {
		entry := queue.Entry{
			ReminderID: r.ID,
			OwnerID:    r.OwnerID,
			TaskID:     r.TaskID,
			FireAt:     r.FireAt,
		}
		if err := app.reminderQueue.Enqueue(ctx, entry); err != nil {
			return err
		}
	}

	app.logger.Info("reminder queue reconciled", "unsent_reminders", len(reminders))
	return nil
}

// Run starts the sweepers and the ops HTTP server, then blocks until the
// context is cancelled.
func (app *application) Run(ctx context.Context) error {
	app.supervisor.Start()

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("ops server listening", "addr", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		app.logger.Info("shutdown signal received")
		return nil
	case err := <-errCh:
		return fmt.Errorf("ops server error: %w", err)
	}
}

// cleanup handles graceful shutdown of application resources. The sweepers
// are stopped first so no tick is mid-flight when the queue and database
// close underneath it.
func (app *application) cleanup() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if app.httpServer != nil {
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("error shutting down ops server", "error", err)
		}
	}

	if app.supervisor != nil {
		app.supervisor.Stop()
	}

	if app.queueDB != nil {
		if err := app.queueDB.Close(); err != nil {
			app.logger.Error("error closing reminder queue", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
