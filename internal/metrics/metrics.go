// Package metrics defines the Prometheus collectors for the reminder engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sweeper label values.
const (
	SweeperReminders = "reminders"
	SweeperOverdue   = "overdue"
)

// Metrics holds the collectors shared by the sweepers and the ops surface.
type Metrics struct {
	RemindersSent   prometheus.Counter
	RemindersFailed prometheus.Counter
	OverdueNotices  prometheus.Counter
	SweepTicks      *prometheus.CounterVec
	SweepErrors     *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
}

// New registers all collectors with the given registerer and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RemindersSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_reminders_sent_total",
			Help: "Reminders delivered successfully.",
		}),
		RemindersFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_reminders_failed_total",
			Help: "Reminder delivery attempts that failed.",
		}),
		OverdueNotices: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_overdue_notices_total",
			Help: "Overdue notices delivered successfully.",
		}),
		SweepTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskbot_sweep_ticks_total",
			Help: "Completed sweep ticks per sweeper.",
		}, []string{"sweeper"}),
		SweepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskbot_sweep_errors_total",
			Help: "Errors caught inside sweep ticks per sweeper.",
		}, []string{"sweeper"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taskbot_queue_depth",
			Help: "Entries currently in the reminder queue.",
		}),
	}
}
