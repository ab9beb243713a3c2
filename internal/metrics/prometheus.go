package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/task-alarm/internal/logger"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	alarmsScheduledTotal *prometheus.CounterVec
	alarmsCancelledTotal *prometheus.CounterVec
	alarmsFiredTotal     *prometheus.CounterVec
	liveTimers           prometheus.Gauge

	reconcileDuration prometheus.Histogram
	reconcileOverdue  prometheus.Counter
	reconcileRearmed  prometheus.Counter

	storageErrorsTotal *prometheus.CounterVec
	storageDegraded    prometheus.Gauge

	notificationsDeniedTotal prometheus.Counter
	subscribers              prometheus.Gauge

	commandsTotal *prometheus.CounterVec
}

// NewPrometheusSink creates a sink whose collectors are registered in reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initAlarmMetrics(reg)
	s.initReconcileMetrics(reg)
	s.initRuntimeMetrics(reg)

	return s
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (s *PrometheusSink) initAlarmMetrics(reg prometheus.Registerer) {
	s.alarmsScheduledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskalarm_alarms_scheduled_total",
		Help: "Total number of alarms scheduled, by kind.",
	}, []string{"kind"})
	s.alarmsCancelledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskalarm_alarms_cancelled_total",
		Help: "Total number of alarms cancelled, by kind.",
	}, []string{"kind"})
	s.alarmsFiredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskalarm_alarms_fired_total",
		Help: "Total number of alarms fired, by kind and overdue flag.",
	}, []string{"kind", "overdue"})
	s.liveTimers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskalarm_live_timers",
		Help: "Number of armed timers.",
	})

	s.register(reg, s.alarmsScheduledTotal, "taskalarm_alarms_scheduled_total")
	s.register(reg, s.alarmsCancelledTotal, "taskalarm_alarms_cancelled_total")
	s.register(reg, s.alarmsFiredTotal, "taskalarm_alarms_fired_total")
	s.register(reg, s.liveTimers, "taskalarm_live_timers")
}

func (s *PrometheusSink) initReconcileMetrics(reg prometheus.Registerer) {
	s.reconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "taskalarm_reconcile_duration_seconds",
		Help:    "Duration of each reconciliation tick in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	s.reconcileOverdue = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskalarm_reconcile_overdue_total",
		Help: "Total number of overdue alarms fired by reconciliation.",
	})
	s.reconcileRearmed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskalarm_reconcile_rearmed_total",
		Help: "Total number of missing timers re-armed by reconciliation.",
	})

	s.register(reg, s.reconcileDuration, "taskalarm_reconcile_duration_seconds")
	s.register(reg, s.reconcileOverdue, "taskalarm_reconcile_overdue_total")
	s.register(reg, s.reconcileRearmed, "taskalarm_reconcile_rearmed_total")
}

func (s *PrometheusSink) initRuntimeMetrics(reg prometheus.Registerer) {
	s.storageErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskalarm_storage_errors_total",
		Help: "Total number of failed store operations, by operation.",
	}, []string{"operation"})
	s.storageDegraded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskalarm_storage_degraded",
		Help: "1 when the daemon runs on the in-memory fallback store.",
	})
	s.notificationsDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskalarm_notifications_denied_total",
		Help: "Total number of notifications the host refused to display.",
	})
	s.subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskalarm_subscribers",
		Help: "Number of connected event subscribers.",
	})
	s.commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskalarm_commands_total",
		Help: "Total number of commands handled, by type and outcome.",
	}, []string{"type", "outcome"})

	s.register(reg, s.storageErrorsTotal, "taskalarm_storage_errors_total")
	s.register(reg, s.storageDegraded, "taskalarm_storage_degraded")
	s.register(reg, s.notificationsDeniedTotal, "taskalarm_notifications_denied_total")
	s.register(reg, s.subscribers, "taskalarm_subscribers")
	s.register(reg, s.commandsTotal, "taskalarm_commands_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		logger.Logger().Warnw("Failed to register metric", "name", name, "error", err)
	}
}

func (s *PrometheusSink) AlarmScheduled(kind string) {
	s.alarmsScheduledTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) AlarmCancelled(kind string) {
	s.alarmsCancelledTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) AlarmFired(kind string, overdue bool) {
	s.alarmsFiredTotal.WithLabelValues(kind, strconv.FormatBool(overdue)).Inc()
}

func (s *PrometheusSink) LiveTimersUpdate(count int) {
	s.liveTimers.Set(float64(count))
}

func (s *PrometheusSink) ReconcileCompleted(duration time.Duration, overdue, rearmed int) {
	s.reconcileDuration.Observe(duration.Seconds())
	s.reconcileOverdue.Add(float64(overdue))
	s.reconcileRearmed.Add(float64(rearmed))
}

func (s *PrometheusSink) StorageError(operation string) {
	s.storageErrorsTotal.WithLabelValues(operation).Inc()
}

func (s *PrometheusSink) StorageDegraded() {
	s.storageDegraded.Set(1)
}

func (s *PrometheusSink) NotificationDenied() {
	s.notificationsDeniedTotal.Inc()
}

func (s *PrometheusSink) SubscribersUpdate(count int) {
	s.subscribers.Set(float64(count))
}

func (s *PrometheusSink) CommandHandled(commandType, outcome string) {
	s.commandsTotal.WithLabelValues(commandType, outcome).Inc()
}
