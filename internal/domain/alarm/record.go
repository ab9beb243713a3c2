package alarm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the two alarm record variants.
type Kind string

const (
	// KindTask is an alarm that fires when a timed task ends.
	KindTask Kind = "task"
	// KindDeparture is the singleton alarm that fires ahead of the departure time.
	KindDeparture Kind = "departure"
)

const (
	// DepartureKey is the fixed key of the singleton departure alarm.
	DepartureKey = "departure"
	// taskKeyPrefix prefixes task alarm keys.
	taskKeyPrefix = "task:"
	// TimeOfDayLayout is the layout of departure times (HH:MM).
	TimeOfDayLayout = "15:04"
)

var (
	// ErrInvalidRecord is returned when a record misses required fields.
	ErrInvalidRecord = errors.New("invalid alarm record")
	// ErrUnknownKind is returned for keys and kinds outside the known variants.
	ErrUnknownKind = errors.New("unknown alarm kind")
)

// Record is a persisted alarm. Exactly one of the variant field groups is used,
// depending on Kind.
type Record struct {
	// Kind selects the variant.
	Kind Kind
	// TaskID identifies the task (task alarms only).
	TaskID string
	// Name is the human readable task name (task alarms only).
	Name string
	// DepartureAt is the departure time of day as HH:MM (departure alarm only).
	DepartureAt string
	// LeadMinutes is how many minutes before departure the alarm fires (departure alarm only).
	LeadMinutes int
	// DueAt is the absolute moment the alarm fires.
	DueAt time.Time
	// Active is false once the alarm has been consumed.
	Active bool
}

// NewTaskAlarm builds an active task alarm record.
func NewTaskAlarm(id, name string, dueAt time.Time) Record {
	return Record{
		Kind:   KindTask,
		TaskID: id,
		Name:   name,
		DueAt:  dueAt.UTC(),
		Active: true,
	}
}

// NewDepartureAlarm builds the active departure alarm record.
func NewDepartureAlarm(departureAt string, leadMinutes int, dueAt time.Time) Record {
	return Record{
		Kind:        KindDeparture,
		DepartureAt: departureAt,
		LeadMinutes: leadMinutes,
		DueAt:       dueAt.UTC(),
		Active:      true,
	}
}

// TaskKey returns the live timer and store key of a task alarm.
func TaskKey(id string) string {
	return taskKeyPrefix + id
}

// KindOfKey reports which variant a key belongs to.
func KindOfKey(key string) (Kind, error) {
	switch {
	case key == DepartureKey:
		return KindDeparture, nil
	case strings.HasPrefix(key, taskKeyPrefix) && len(key) > len(taskKeyPrefix):
		return KindTask, nil
	default:
		return "", fmt.Errorf("%w: key %q", ErrUnknownKind, key)
	}
}

// Key returns the unique key of the record.
func (r *Record) Key() string {
	if r.Kind == KindDeparture {
		return DepartureKey
	}

	return TaskKey(r.TaskID)
}

// Validate checks that the fields required by the record variant are set.
func (r *Record) Validate() error {
	if r.DueAt.IsZero() {
		return fmt.Errorf("%w: due time is required", ErrInvalidRecord)
	}

	switch r.Kind {
	case KindTask:
		if strings.TrimSpace(r.TaskID) == "" {
			return fmt.Errorf("%w: task id is required", ErrInvalidRecord)
		}
	case KindDeparture:
		if _, err := time.Parse(TimeOfDayLayout, r.DepartureAt); err != nil {
			return fmt.Errorf("%w: departure time %q: %w", ErrInvalidRecord, r.DepartureAt, err)
		}

		if r.LeadMinutes < 0 {
			return fmt.Errorf("%w: lead minutes must not be negative", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}

	return nil
}

// Overdue reports whether the record is at least grace past its due time.
func (r *Record) Overdue(now time.Time, grace time.Duration) bool {
	return now.Sub(r.DueAt) >= grace
}

// DueWithin reports whether the record falls due within the given window.
func (r *Record) DueWithin(now time.Time, window time.Duration) bool {
	return r.DueAt.Sub(now) <= window
}

// NextDeparture returns the next occurrence of the HH:MM time of day at or after
// now in now's location. A time of day that already passed today rolls over to
// tomorrow.
func NextDeparture(departureAt string, now time.Time) (time.Time, error) {
	clock, err := time.Parse(TimeOfDayLayout, departureAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse departure time %q: %w", departureAt, err)
	}

	year, month, day := now.Date()
	next := time.Date(year, month, day, clock.Hour(), clock.Minute(), 0, 0, now.Location())

	if next.Before(now) {
		next = next.AddDate(0, 0, 1)
	}

	return next, nil
}
