package manager

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/task-alarm/internal/config"
	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/logger"
	"github.com/oshokin/task-alarm/internal/metrics"
	"github.com/oshokin/task-alarm/internal/repository/alarms"
	"github.com/oshokin/task-alarm/internal/service/notifier"
	"github.com/oshokin/task-alarm/internal/service/reconciler"
	"github.com/oshokin/task-alarm/internal/service/router"
	"github.com/oshokin/task-alarm/internal/service/timer"
)

const (
	// requestQueueSize bounds commands waiting for the event loop.
	requestQueueSize = 64
	// firedRetention is how long a fired record stays available to
	// notification actions.
	firedRetention = time.Hour
)

var (
	// ErrStopped is returned by Submit once the event loop has exited.
	ErrStopped = errors.New("alarm manager stopped")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("alarm manager already running")
)

// Deps are the collaborators of a Manager.
type Deps struct {
	// Store persists alarm records. Required.
	Store alarms.Repository
	// Notifier shows notifications and broadcasts events. Defaults to a
	// dispatcher that logs notifications.
	Notifier *notifier.Dispatcher
	// Metrics records manager metrics. Defaults to a no-op sink.
	Metrics metrics.Sink
}

// Options tune a Manager. Zero fields take defaults.
type Options struct {
	ReconcileInterval time.Duration
	GraceWindow       time.Duration
	Snooze            time.Duration
	TimerMaxSleep     time.Duration
	SubscriberBuffer  int
}

// DefaultOptions returns the default manager options.
func DefaultOptions() Options {
	return Options{
		ReconcileInterval: config.DefaultReconcileInterval,
		GraceWindow:       config.DefaultGraceWindow,
		Snooze:            config.DefaultSnooze,
		TimerMaxSleep:     config.DefaultTimerMaxSleep,
		SubscriberBuffer:  config.DefaultSubscriberBuffer,
	}
}

// OptionsFromConfig extracts manager options from daemon settings.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ReconcileInterval: cfg.ReconcileInterval,
		GraceWindow:       cfg.GraceWindow,
		Snooze:            cfg.Snooze,
		TimerMaxSleep:     cfg.TimerMaxSleep,
		SubscriberBuffer:  cfg.SubscriberBuffer,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()

	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = defaults.ReconcileInterval
	}

	if o.GraceWindow <= 0 {
		o.GraceWindow = defaults.GraceWindow
	}

	if o.Snooze <= 0 {
		o.Snooze = defaults.Snooze
	}

	if o.TimerMaxSleep <= 0 {
		o.TimerMaxSleep = defaults.TimerMaxSleep
	}

	if o.SubscriberBuffer <= 0 {
		o.SubscriberBuffer = defaults.SubscriberBuffer
	}

	return o
}

// request is one command waiting for the event loop.
type request struct {
	command domain.Command
	reply   chan *domain.Event
}

// Manager is the alarm subsystem context object.
type Manager struct {
	opts       Options
	store      alarms.Repository
	notifier   *notifier.Dispatcher
	metrics    metrics.Sink
	timers     *timer.Scheduler
	reconciler *reconciler.Reconciler
	router     *router.Router
	clock      func() time.Time

	// fired keeps the records that fired most recently, for notification
	// actions that arrive after the record left the store. Entries expire
	// after firedRetention. Loop-owned.
	fired map[string]firedRecord

	requests chan request
	started  chan struct{}
	ready    chan struct{}
	done     chan struct{}
}

// New creates a manager. Nothing runs until Run is called.
func New(deps Deps, opts Options) *Manager {
	opts = opts.withDefaults()

	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoopSink()
	}

	if deps.Notifier == nil {
		deps.Notifier = notifier.NewDispatcher("", nil, deps.Metrics)
	}

	m := &Manager{
		opts:     opts,
		store:    deps.Store,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		timers:   timer.New(timer.Config{MaxSleep: opts.TimerMaxSleep}),
		clock:    time.Now,
		fired:    make(map[string]firedRecord),
		requests: make(chan request, requestQueueSize),
		started:  make(chan struct{}, 1),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}

	m.reconciler = reconciler.New(reconciler.Config{
		Interval:    opts.ReconcileInterval,
		GraceWindow: opts.GraceWindow,
	}, m.store, m.timers, m, m.metrics)

	m.router = router.New(router.Config{Snooze: opts.Snooze}, m, m.metrics)

	return m
}

// Run restores pending alarms and processes commands, timer fires and
// reconciliation ticks until ctx is cancelled. On exit every timer is
// disarmed and every subscription closed; the store is left open.
func (m *Manager) Run(ctx context.Context) error {
	select {
	case m.started <- struct{}{}:
	default:
		return ErrAlreadyRunning
	}

	ctx = logger.WithName(ctx, "manager")

	defer m.teardown(ctx)

	m.Restore(ctx)
	close(m.ready)

	ticker := time.NewTicker(m.opts.ReconcileInterval)
	defer ticker.Stop()

	logger.InfoKV(ctx, "Alarm manager started",
		"reconcile_interval", m.opts.ReconcileInterval,
		"grace_window", m.opts.GraceWindow,
		"live_timers", m.timers.Len())

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Alarm manager stopped")

			return nil
		case req := <-m.requests:
			req.reply <- m.router.Handle(ctx, req.command)
		case <-m.timers.C():
			m.timers.FireDue(ctx)
		case <-ticker.C:
			m.reconciler.Tick(ctx)
			m.pruneFired(ctx)
		}

		m.metrics.LiveTimersUpdate(m.timers.Len())
	}
}

// Ready is closed once Run restored the pending alarms.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Done is closed once Run has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Submit queues a command and waits for its reply. The reply is nil when the
// command type is unknown and was ignored.
func (m *Manager) Submit(ctx context.Context, command domain.Command) (*domain.Event, error) {
	req := request{
		command: command,
		reply:   make(chan *domain.Event, 1),
	}

	select {
	case m.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrStopped
	}

	select {
	case reply := <-req.reply:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrStopped
	}
}

// Subscribe registers a subscriber for every broadcast event.
func (m *Manager) Subscribe() *notifier.Subscription {
	return m.notifier.Subscribe(m.opts.SubscriberBuffer)
}

func (m *Manager) teardown(ctx context.Context) {
	m.timers.Stop()
	m.notifier.Close()
	m.metrics.LiveTimersUpdate(0)
	close(m.done)

	logger.DebugKV(ctx, "Alarm manager torn down")
}
