package notifier

import (
	"context"
	"errors"
	"sync"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/logger"
	"github.com/oshokin/task-alarm/internal/metrics"
)

// DefaultSubscriberBuffer is the event buffer of a subscription created with
// a non-positive size.
const DefaultSubscriberBuffer = 32

// Dispatcher shows notifications and broadcasts events to subscribers.
// It is safe for concurrent use.
type Dispatcher struct {
	title     string
	displayer Displayer
	metrics   metrics.Sink

	mu          sync.Mutex
	latest      map[string]Notification
	subscribers map[*Subscription]struct{}
	closed      bool
}

// NewDispatcher creates a dispatcher. An empty title falls back to DefaultTitle
// and a nil displayer to LogDisplayer.
func NewDispatcher(title string, displayer Displayer, sink metrics.Sink) *Dispatcher {
	if title == "" {
		title = DefaultTitle
	}

	if displayer == nil {
		displayer = LogDisplayer{}
	}

	if sink == nil {
		sink = metrics.NewNoopSink()
	}

	return &Dispatcher{
		title:       title,
		displayer:   displayer,
		metrics:     sink,
		latest:      make(map[string]Notification),
		subscribers: make(map[*Subscription]struct{}),
	}
}

// ShowTaskNotification displays the notification of a fired task alarm.
func (d *Dispatcher) ShowTaskNotification(ctx context.Context, taskID, name string, overdue bool) error {
	return d.show(ctx, TaskNotification(d.title, taskID, name, overdue))
}

// ShowDepartureNotification displays the notification of the fired departure alarm.
func (d *Dispatcher) ShowDepartureNotification(
	ctx context.Context,
	departureAt string,
	leadMinutes int,
	overdue bool,
) error {
	return d.show(ctx, DepartureNotification(d.title, departureAt, leadMinutes, overdue))
}

// Latest returns the last notification shown under tag.
func (d *Dispatcher) Latest(tag string) (Notification, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	notification, ok := d.latest[tag]

	return notification, ok
}

// Forget drops the notification tracked under tag once its alarm is handled.
func (d *Dispatcher) Forget(tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.latest, tag)
}

// show displays the notification. A denied notification is logged and
// swallowed so the caller still broadcasts its event.
func (d *Dispatcher) show(ctx context.Context, notification Notification) error {
	d.mu.Lock()
	d.latest[notification.Tag] = notification
	d.mu.Unlock()

	err := d.displayer.Display(ctx, notification)
	if errors.Is(err, ErrNotificationDenied) {
		d.metrics.NotificationDenied()
		logger.WarnKV(ctx, "Notification was not displayed", "tag", notification.Tag, "error", err)

		return nil
	}

	return err
}

// Subscribe registers a new event subscriber with the given buffer size.
// Subscribing to a closed dispatcher returns an already closed subscription.
func (d *Dispatcher) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	sub := &Subscription{
		events:     make(chan *domain.Event, buffer),
		done:       make(chan struct{}),
		dispatcher: d,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		sub.close()

		return sub
	}

	d.subscribers[sub] = struct{}{}
	d.metrics.SubscribersUpdate(len(d.subscribers))

	return sub
}

// Broadcast sends the event to every subscriber without blocking.
// Subscribers whose buffer is full are dropped. It returns the number of
// subscribers that received the event.
func (d *Dispatcher) Broadcast(ctx context.Context, event *domain.Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	delivered := 0

	for sub := range d.subscribers {
		select {
		case sub.events <- event:
			delivered++
		default:
			logger.WarnKV(ctx, "Dropping slow subscriber", "event_type", event.Type, "event_id", event.ID)
			d.dropLocked(sub)
		}
	}

	return delivered
}

// SubscriberCount returns the number of live subscribers.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.subscribers)
}

// Close closes every subscription and rejects new ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true

	for sub := range d.subscribers {
		d.dropLocked(sub)
	}
}

func (d *Dispatcher) unsubscribe(sub *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dropLocked(sub)
}

func (d *Dispatcher) dropLocked(sub *Subscription) {
	if _, ok := d.subscribers[sub]; !ok {
		return
	}

	delete(d.subscribers, sub)
	sub.close()
	d.metrics.SubscribersUpdate(len(d.subscribers))
}

// Subscription receives broadcast events.
type Subscription struct {
	events     chan *domain.Event
	done       chan struct{}
	once       sync.Once
	dispatcher *Dispatcher
}

// Events returns the event channel. It is closed when the subscription ends;
// events buffered before that stay readable.
func (s *Subscription) Events() <-chan *domain.Event {
	return s.events
}

// Done is closed when the subscription ends, either by Close, by the
// dispatcher dropping a slow subscriber or by dispatcher shutdown.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.dispatcher.unsubscribe(s)
}

// close must be called with the dispatcher lock held, so it never races a send.
func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.done)
		close(s.events)
	})
}
