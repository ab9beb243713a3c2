package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/logger"
	"github.com/oshokin/task-alarm/internal/repository/alarms"
	"github.com/oshokin/task-alarm/internal/service/reconciler"
	"github.com/oshokin/task-alarm/internal/service/router"
	"github.com/oshokin/task-alarm/internal/service/timer"
)

// The methods below run on the event loop goroutine only.
var (
	_ router.Alarms     = (*Manager)(nil)
	_ reconciler.Alarms = (*Manager)(nil)
)

// RestoreResult summarizes a restore.
type RestoreResult struct {
	Armed   int
	Overdue int
}

// Restore rebuilds the live timer set from the store: future records are
// armed, records already due fire through the overdue path. Run calls it
// before entering the event loop.
func (m *Manager) Restore(ctx context.Context) RestoreResult {
	var result RestoreResult

	records, err := m.store.GetAll(ctx, "")
	if err != nil {
		m.metrics.StorageError("get_all")
		logger.ErrorKV(ctx, "Failed to restore alarms", "error", err)

		return result
	}

	for _, record := range records {
		err = m.Arm(ctx, record)

		switch {
		case errors.Is(err, timer.ErrAlreadyDue):
			m.FireOverdue(ctx, record)

			result.Overdue++
		case err != nil:
			logger.ErrorKV(ctx, "Failed to restore alarm", "key", record.Key(), "error", err)
		default:
			result.Armed++
		}
	}

	logger.InfoKV(ctx, "Alarms restored", "armed", result.Armed, "overdue", result.Overdue)

	return result
}

// ScheduleTask stores and arms a task alarm.
func (m *Manager) ScheduleTask(ctx context.Context, id, name string, dueAt time.Time) error {
	return m.schedule(ctx, domain.NewTaskAlarm(id, name, dueAt))
}

// CancelTask removes a task alarm.
func (m *Manager) CancelTask(ctx context.Context, id string) error {
	return m.cancel(ctx, domain.TaskKey(id))
}

// ScheduleDeparture stores and arms the departure alarm.
func (m *Manager) ScheduleDeparture(ctx context.Context, departureAt string, leadMinutes int, dueAt time.Time) error {
	return m.schedule(ctx, domain.NewDepartureAlarm(departureAt, leadMinutes, dueAt))
}

// CancelDeparture removes the departure alarm.
func (m *Manager) CancelDeparture(ctx context.Context) error {
	return m.cancel(ctx, domain.DepartureKey)
}

// CancelAll removes every alarm from the store and the live timer set.
func (m *Manager) CancelAll(ctx context.Context) error {
	for _, key := range m.timers.Keys() {
		m.timers.DisarmKey(key)
	}

	if err := m.store.Clear(ctx); err != nil {
		m.metrics.StorageError("clear")

		return fmt.Errorf("clear alarms: %w", err)
	}

	for key := range m.fired {
		m.notifier.Forget(key)
	}

	clear(m.fired)

	logger.InfoKV(ctx, "All alarms cancelled")

	return nil
}

// Status describes every pending alarm.
func (m *Manager) Status(ctx context.Context) (*domain.Event, error) {
	records, err := m.store.GetAll(ctx, "")
	if err != nil {
		m.metrics.StorageError("get_all")

		return nil, fmt.Errorf("list alarms: %w", err)
	}

	event := domain.NewEvent(domain.EventAlarmStatus, m.clock())
	event.TaskAlarms = make([]domain.StatusEntry, 0, len(records))

	for _, record := range records {
		entry := domain.StatusEntry{
			Key:   record.Key(),
			DueAt: record.DueAt,
			Armed: m.timers.Armed(record.Key()),
		}

		switch record.Kind {
		case domain.KindTask:
			entry.TaskID = record.TaskID
			entry.TaskName = record.Name
			event.TaskAlarms = append(event.TaskAlarms, entry)
		case domain.KindDeparture:
			entry.DepartureTime = record.DepartureAt
			entry.AlarmMinutes = record.LeadMinutes
			event.DepartureAlarm = &entry
		}
	}

	return event, nil
}

// Lookup returns the pending record for key, or the one that fired last.
func (m *Manager) Lookup(ctx context.Context, key string) (domain.Record, bool) {
	record, err := m.store.Get(ctx, key)
	if err == nil {
		return record, true
	}

	entry, ok := m.fired[key]

	return entry.record, ok
}

// Broadcast sends an event to every subscriber.
func (m *Manager) Broadcast(ctx context.Context, event *domain.Event) {
	m.notifier.Broadcast(ctx, event)
}

// Arm arms a live timer for the record. It returns timer.ErrAlreadyDue when
// the record is no longer in the future.
func (m *Manager) Arm(_ context.Context, record domain.Record) error {
	_, err := m.timers.Arm(record.Key(), record.DueAt, func(ctx context.Context, _ string, _ time.Time) {
		// A timer that fires late, e.g. after host sleep, reports overdue the
		// same way the reconciler would.
		m.fire(ctx, record, record.Overdue(m.clock(), m.opts.GraceWindow))
	})

	return err
}

// FireOverdue fires the overdue variant of the record.
func (m *Manager) FireOverdue(ctx context.Context, record domain.Record) {
	m.fire(ctx, record, true)
}

// firedRecord is a record that fired and left the store.
type firedRecord struct {
	record  domain.Record
	firedAt time.Time
}

// pruneFired forgets fired records older than firedRetention together with
// their last shown notification.
func (m *Manager) pruneFired(ctx context.Context) {
	now := m.clock()

	for key, entry := range m.fired {
		if now.Sub(entry.firedAt) < firedRetention {
			continue
		}

		delete(m.fired, key)
		m.notifier.Forget(key)

		logger.DebugKV(ctx, "Fired alarm expired", "key", key)
	}
}

func (m *Manager) schedule(ctx context.Context, record domain.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	key := record.Key()

	if err := m.store.Put(ctx, record); err != nil {
		if !errors.Is(err, alarms.ErrStorageUnavailable) {
			return fmt.Errorf("store alarm %s: %w", key, err)
		}

		// Keep the live timer; the reconciler cannot see this record but the
		// timer still fires for the lifetime of the process.
		m.metrics.StorageError("put")
		logger.ErrorKV(ctx, "Failed to persist alarm", "key", key, "error", err)
	}

	delete(m.fired, key)
	m.metrics.AlarmScheduled(string(record.Kind))

	err := m.Arm(ctx, record)

	switch {
	case errors.Is(err, timer.ErrAlreadyDue):
		logger.InfoKV(ctx, "Alarm already due, firing as overdue", "key", key, "due_at", record.DueAt)
		m.FireOverdue(ctx, record)

		return nil
	case err != nil:
		return fmt.Errorf("arm alarm %s: %w", key, err)
	}

	logger.InfoKV(ctx, "Alarm scheduled", "key", key, "due_at", record.DueAt)

	return nil
}

func (m *Manager) cancel(ctx context.Context, key string) error {
	kind, err := domain.KindOfKey(key)
	if err != nil {
		return err
	}

	armed := m.timers.Armed(key)
	m.timers.DisarmKey(key)

	_, getErr := m.store.Get(ctx, key)
	stored := getErr == nil

	if err = m.store.Delete(ctx, key); err != nil {
		m.metrics.StorageError("delete")

		return fmt.Errorf("delete alarm %s: %w", key, err)
	}

	delete(m.fired, key)
	m.notifier.Forget(key)

	if armed || stored {
		m.metrics.AlarmCancelled(string(kind))
		logger.InfoKV(ctx, "Alarm cancelled", "key", key)
	}

	return nil
}

// fire consumes the record and announces it. The record is deleted before
// anything is shown so a crash afterwards cannot fire it twice.
func (m *Manager) fire(ctx context.Context, record domain.Record, overdue bool) {
	key := record.Key()
	ctx = logger.WithKV(ctx, "key", key, "overdue", overdue)

	m.timers.DisarmKey(key)

	if err := m.store.Delete(ctx, key); err != nil {
		m.metrics.StorageError("delete")
		logger.ErrorKV(ctx, "Failed to delete fired alarm", "error", err)
	}

	m.fired[key] = firedRecord{record: record, firedAt: m.clock()}
	m.metrics.AlarmFired(string(record.Kind), overdue)

	event := domain.NewEvent(domain.FiredEventType(record.Kind, overdue), m.clock())

	var err error

	switch record.Kind {
	case domain.KindTask:
		event.TaskID = record.TaskID
		event.TaskName = record.Name
		err = m.notifier.ShowTaskNotification(ctx, record.TaskID, record.Name, overdue)
	case domain.KindDeparture:
		event.DepartureTime = record.DepartureAt
		event.AlarmMinutes = record.LeadMinutes
		err = m.notifier.ShowDepartureNotification(ctx, record.DepartureAt, record.LeadMinutes, overdue)
	}

	if err != nil {
		logger.ErrorKV(ctx, "Failed to show notification", "error", err)
	}

	delivered := m.notifier.Broadcast(ctx, event)

	logger.InfoKV(ctx, "Alarm fired", "event", event.Type, "delivered", delivered)
}
