// Package metrics records alarm daemon metrics.
//
// All Sink methods are fire-and-forget: implementations must not block or
// propagate errors. NoopSink is used when the metrics endpoint is disabled.
package metrics

import "time"

// Sink defines the interface for recording metrics.
type Sink interface {
	// Alarm lifecycle.
	AlarmScheduled(kind string)
	AlarmCancelled(kind string)
	AlarmFired(kind string, overdue bool)
	LiveTimersUpdate(count int)

	// Reconciliation loop.
	ReconcileCompleted(duration time.Duration, overdue, rearmed int)

	// Storage.
	StorageError(operation string)
	StorageDegraded()

	// Notifications and clients.
	NotificationDenied()
	SubscribersUpdate(count int)

	// Command router.
	CommandHandled(commandType, outcome string)
}

// Command outcomes for CommandHandled.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeIgnored = "ignored"
)

var (
	_ Sink = (*NoopSink)(nil)
	_ Sink = (*PrometheusSink)(nil)
)
