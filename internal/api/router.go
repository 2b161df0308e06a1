package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mpetrenko/taskbot/internal/queue"
)

// Pinger reports whether the durable store is reachable.
// *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// OpsHandler serves the operational surface: health, metrics, queue depth.
type OpsHandler struct {
	db     Pinger
	queue  queue.Queue
	logger *slog.Logger
}

// NewOpsHandler creates the handler with its dependencies.
func NewOpsHandler(db Pinger, q queue.Queue, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{
		db:     db,
		queue:  q,
		logger: logger.With("component", "ops_api"),
	}
}

// NewRouter builds the ops router.
func NewRouter(h *OpsHandler, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get("/queue/depth", h.QueueDepth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Health reports whether the durable store is reachable.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status: "unavailable",
			Detail: "database unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type queueDepthResponse struct {
	Depth int `json:"depth"`
}

// QueueDepth reports the number of entries in the reminder queue.
func (h *OpsHandler) QueueDepth(w http.ResponseWriter, r *http.Request) {
	count, err := h.queue.Count(r.Context())
	if err != nil {
		h.logger.Error("queue depth check failed", "error", err)
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, queueDepthResponse{Depth: count})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
