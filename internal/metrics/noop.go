package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) AlarmScheduled(string)                      {}
func (n *NoopSink) AlarmCancelled(string)                      {}
func (n *NoopSink) AlarmFired(string, bool)                    {}
func (n *NoopSink) LiveTimersUpdate(int)                       {}
func (n *NoopSink) ReconcileCompleted(time.Duration, int, int) {}
func (n *NoopSink) StorageError(string)                        {}
func (n *NoopSink) StorageDegraded()                           {}
func (n *NoopSink) NotificationDenied()                        {}
func (n *NoopSink) SubscribersUpdate(int)                      {}
func (n *NoopSink) CommandHandled(string, string)              {}
