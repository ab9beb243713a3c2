package timer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oshokin/task-alarm/internal/logger"
)

// DefaultMaxSleep caps a single sleep of the scheduler.
const DefaultMaxSleep = 60 * time.Second

var (
	// ErrAlreadyDue is returned by Arm when the fire time is not in the future.
	// Nothing is armed; the caller fires the alarm through its overdue path.
	ErrAlreadyDue = errors.New("alarm already due")
	// ErrEmptyKey is returned by Arm for an empty key.
	ErrEmptyKey = errors.New("timer key is empty")
)

// Callback runs when an armed entry fires. The entry is already gone from the
// live set when it runs.
type Callback func(ctx context.Context, key string, fireAt time.Time)

// Handle identifies one arming of a key. A handle becomes stale once the key
// is re-armed, disarmed or fired.
type Handle struct {
	key string
	seq uint64
}

// Key returns the key the handle was armed for.
func (h Handle) Key() string {
	return h.key
}

// Config tunes the scheduler.
type Config struct {
	// MaxSleep caps how long the scheduler sleeps before re-reading the clock.
	MaxSleep time.Duration
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Scheduler is the live timer set.
type Scheduler struct {
	maxSleep time.Duration
	clock    func() time.Time

	entries map[string]*entry
	queue   entryHeap
	seq     uint64
	timer   *time.Timer
}

// New creates an empty scheduler. Zero config fields take defaults.
func New(cfg Config) *Scheduler {
	if cfg.MaxSleep <= 0 {
		cfg.MaxSleep = DefaultMaxSleep
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	return &Scheduler{
		maxSleep: cfg.MaxSleep,
		clock:    cfg.Clock,
		entries:  make(map[string]*entry),
		timer:    timer,
	}
}

// Arm schedules callback to run at fireAt under key, replacing any entry
// already armed for the key. It returns ErrAlreadyDue when fireAt is not in
// the future; in that case any previous entry for the key is still disarmed.
func (s *Scheduler) Arm(key string, fireAt time.Time, callback Callback) (Handle, error) {
	if key == "" {
		return Handle{}, ErrEmptyKey
	}

	s.DisarmKey(key)

	if delay := fireAt.Sub(s.clock()); delay <= 0 {
		return Handle{}, fmt.Errorf("%w: %s is %s late", ErrAlreadyDue, key, -delay)
	}

	s.seq++

	e := &entry{
		key:      key,
		fireAt:   fireAt,
		seq:      s.seq,
		callback: callback,
	}

	s.entries[key] = e
	s.queue.push(e)
	s.reset()

	return Handle{key: key, seq: e.seq}, nil
}

// Disarm cancels the entry the handle refers to. Stale handles and repeated
// calls are no-ops.
func (s *Scheduler) Disarm(handle Handle) {
	e, ok := s.entries[handle.key]
	if !ok || e.seq != handle.seq {
		return
	}

	s.remove(e)
}

// DisarmKey cancels whatever entry is armed for key. Unknown keys are a no-op.
func (s *Scheduler) DisarmKey(key string) {
	if e, ok := s.entries[key]; ok {
		s.remove(e)
	}
}

// Armed reports whether a live entry exists for key.
func (s *Scheduler) Armed(key string) bool {
	_, ok := s.entries[key]

	return ok
}

// FireAt returns the fire time of the entry armed for key.
func (s *Scheduler) FireAt(key string) (time.Time, bool) {
	e, ok := s.entries[key]
	if !ok {
		return time.Time{}, false
	}

	return e.fireAt, true
}

// Keys returns the armed keys in sorted order.
func (s *Scheduler) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

// Len returns the number of armed entries.
func (s *Scheduler) Len() int {
	return len(s.entries)
}

// C fires when the earliest entry may be due or the sleep cap elapsed.
// The channel never changes for the lifetime of the scheduler.
func (s *Scheduler) C() <-chan time.Time {
	return s.timer.C
}

// FireDue runs the callbacks of every entry whose fire time has passed, in
// ascending fire time, and re-arms the underlying timer. Each entry leaves the
// live set before its callback runs; a panicking callback is logged and does
// not stop the remaining ones. It returns the number of fired entries.
func (s *Scheduler) FireDue(ctx context.Context) int {
	now := s.clock()
	fired := 0

	for {
		head := s.queue.peek()
		if head == nil || head.fireAt.After(now) {
			break
		}

		s.queue.pop()
		delete(s.entries, head.key)

		s.run(ctx, head)

		fired++
	}

	s.reset()

	return fired
}

// Stop disarms every entry and stops the underlying timer.
func (s *Scheduler) Stop() {
	s.timer.Stop()
	clear(s.entries)
	s.queue = nil
}

func (s *Scheduler) run(ctx context.Context, e *entry) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Alarm callback panicked", "key", e.key, "panic", r)
		}
	}()

	if e.callback != nil {
		e.callback(ctx, e.key, e.fireAt)
	}
}

func (s *Scheduler) remove(e *entry) {
	delete(s.entries, e.key)
	s.queue.remove(e)
	s.reset()
}

// reset points the timer at the earliest entry, sleeping at most maxSleep.
func (s *Scheduler) reset() {
	head := s.queue.peek()
	if head == nil {
		s.timer.Stop()

		return
	}

	delay := max(head.fireAt.Sub(s.clock()), 0)
	delay = min(delay, s.maxSleep)

	s.timer.Reset(delay)
}
