// Package reconciler heals drift between the durable alarm store, the wall
// clock and the live timer set.
//
// Each tick walks every active record. Records at least one grace window past
// due are fired as overdue and removed. Records due within the grace window
// that have no live timer are re-armed. Everything else is left alone, so the
// armed timers stay the fast path and the reconciler is the durability path.
package reconciler

import (
	"context"
	"errors"
	"time"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/logger"
	"github.com/oshokin/task-alarm/internal/metrics"
	"github.com/oshokin/task-alarm/internal/service/timer"
)

// Store lists the active alarm records.
type Store interface {
	GetAll(ctx context.Context, kind domain.Kind) ([]domain.Record, error)
}

// Timers reports which keys have a live timer.
type Timers interface {
	Armed(key string) bool
}

// Alarms performs the actions a tick decides on.
type Alarms interface {
	// Arm arms a live timer for the record. It returns timer.ErrAlreadyDue
	// when the record is no longer in the future.
	Arm(ctx context.Context, record domain.Record) error
	// FireOverdue fires the overdue variant of the record, deletes it and
	// disarms its key.
	FireOverdue(ctx context.Context, record domain.Record)
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often the owner calls Tick.
	// Default: 30 seconds.
	Interval time.Duration

	// GraceWindow is how late a record may be before it counts as overdue,
	// and how far ahead a record without a live timer gets re-armed.
	// Default: 60 seconds.
	GraceWindow time.Duration
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		GraceWindow: 60 * time.Second,
	}
}

// Result summarizes one tick.
type Result struct {
	Overdue   int
	Rearmed   int
	Untouched int
	// Err is set when the store could not be read; nothing was touched.
	Err error
}

// Reconciler runs reconciliation ticks. It is not safe for concurrent use
// and is driven by the same loop that owns the live timer set.
type Reconciler struct {
	config  Config
	store   Store
	timers  Timers
	alarms  Alarms
	metrics metrics.Sink
	clock   func() time.Time
}

// New creates a new Reconciler. Zero config fields take their defaults.
func New(config Config, store Store, timers Timers, alarms Alarms, sink metrics.Sink) *Reconciler {
	defaults := DefaultConfig()

	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}

	if config.GraceWindow <= 0 {
		config.GraceWindow = defaults.GraceWindow
	}

	if sink == nil {
		sink = metrics.NewNoopSink()
	}

	return &Reconciler{
		config:  config,
		store:   store,
		timers:  timers,
		alarms:  alarms,
		metrics: sink,
		clock:   time.Now,
	}
}

// Config returns the effective configuration.
func (r *Reconciler) Config() Config {
	return r.config
}

// Tick executes one reconciliation cycle.
func (r *Reconciler) Tick(ctx context.Context) Result {
	started := r.clock()
	ctx = logger.WithName(ctx, "reconciler")

	records, err := r.store.GetAll(ctx, "")
	if err != nil {
		// Storage error: abort the cycle. The next tick retries.
		r.metrics.StorageError("get_all")
		logger.ErrorKV(ctx, "Failed to list alarms", "error", err)

		return Result{Err: err}
	}

	var result Result

	for _, record := range records {
		if ctx.Err() != nil {
			logger.WarnKV(ctx, "Cycle interrupted", "processed", result.Overdue+result.Rearmed+result.Untouched)

			break
		}

		r.reconcile(ctx, record, &result)
	}

	r.metrics.ReconcileCompleted(r.clock().Sub(started), result.Overdue, result.Rearmed)

	if result.Overdue > 0 || result.Rearmed > 0 {
		logger.InfoKV(ctx, "Cycle complete",
			"overdue", result.Overdue,
			"rearmed", result.Rearmed,
			"untouched", result.Untouched)
	}

	return result
}

func (r *Reconciler) reconcile(ctx context.Context, record domain.Record, result *Result) {
	now := r.clock()
	key := record.Key()

	switch {
	case record.Overdue(now, r.config.GraceWindow):
		logger.InfoKV(ctx, "Firing overdue alarm", "key", key, "due_at", record.DueAt, "late", now.Sub(record.DueAt).Round(time.Second))
		r.alarms.FireOverdue(ctx, record)

		result.Overdue++
	case record.DueWithin(now, r.config.GraceWindow) && !r.timers.Armed(key):
		err := r.alarms.Arm(ctx, record)

		switch {
		case errors.Is(err, timer.ErrAlreadyDue):
			r.alarms.FireOverdue(ctx, record)

			result.Overdue++
		case err != nil:
			logger.ErrorKV(ctx, "Failed to re-arm alarm", "key", key, "error", err)

			result.Untouched++
		default:
			logger.InfoKV(ctx, "Re-armed missing timer", "key", key, "due_at", record.DueAt)

			result.Rearmed++
		}
	default:
		result.Untouched++
	}
}
