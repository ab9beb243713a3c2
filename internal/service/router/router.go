package router

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/logger"
	"github.com/oshokin/task-alarm/internal/metrics"
)

// DefaultSnooze is how far snooze actions push an alarm.
const DefaultSnooze = 5 * time.Minute

var (
	// ErrInvalidCommand is returned for commands with missing or malformed fields.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrUnknownCommand is returned for command types the router does not know.
	ErrUnknownCommand = errors.New("unknown command type")
)

// Alarms is the set of operations commands are mapped onto.
type Alarms interface {
	// ScheduleTask stores and arms a task alarm, replacing one with the same id.
	// A due time that already passed fires the alarm as overdue.
	ScheduleTask(ctx context.Context, id, name string, dueAt time.Time) error
	// CancelTask removes a task alarm. Unknown ids are a no-op.
	CancelTask(ctx context.Context, id string) error
	// ScheduleDeparture stores and arms the departure alarm, superseding any previous one.
	ScheduleDeparture(ctx context.Context, departureAt string, leadMinutes int, dueAt time.Time) error
	// CancelDeparture removes the departure alarm.
	CancelDeparture(ctx context.Context) error
	// CancelAll removes every alarm.
	CancelAll(ctx context.Context) error
	// Status describes every pending alarm.
	Status(ctx context.Context) (*domain.Event, error)
	// Lookup returns the pending or most recently fired record for key.
	Lookup(ctx context.Context, key string) (domain.Record, bool)
	// Broadcast sends an event to every subscriber.
	Broadcast(ctx context.Context, event *domain.Event)
}

// Config tunes the router.
type Config struct {
	// Snooze is how far snooze actions push an alarm.
	Snooze time.Duration
}

// Router validates commands and dispatches them to Alarms.
type Router struct {
	alarms   Alarms
	snooze   time.Duration
	validate *validator.Validate
	metrics  metrics.Sink
	clock    func() time.Time
}

// New creates a router.
func New(cfg Config, alarms Alarms, sink metrics.Sink) *Router {
	if cfg.Snooze <= 0 {
		cfg.Snooze = DefaultSnooze
	}

	if sink == nil {
		sink = metrics.NewNoopSink()
	}

	return &Router{
		alarms:   alarms,
		snooze:   cfg.Snooze,
		validate: newValidator(),
		metrics:  sink,
		clock:    time.Now,
	}
}

// Handle processes one command and returns its reply event, or nil when the
// command type is unknown and was ignored.
func (r *Router) Handle(ctx context.Context, command domain.Command) *domain.Event {
	ctx = logger.WithKV(logger.WithName(ctx, "router"), "command", command.Type)

	reply, err := r.dispatch(ctx, command)

	switch {
	case errors.Is(err, ErrUnknownCommand):
		r.metrics.CommandHandled(string(command.Type), metrics.OutcomeIgnored)
		logger.WarnKV(ctx, "Ignoring unknown command")

		return nil
	case err != nil:
		r.metrics.CommandHandled(string(command.Type), metrics.OutcomeError)
		logger.ErrorKV(ctx, "Command failed", "error", err)

		return r.errorEvent(command, err)
	}

	r.metrics.CommandHandled(string(command.Type), metrics.OutcomeOK)
	logger.DebugKV(ctx, "Command handled", "reply", reply.Type)

	return reply
}

func (r *Router) dispatch(ctx context.Context, command domain.Command) (*domain.Event, error) {
	switch command.Type {
	case domain.CommandScheduleTask:
		return r.ack(r.scheduleTask(ctx, command))
	case domain.CommandCancelTask:
		return r.ack(r.cancelTask(ctx, command))
	case domain.CommandScheduleDeparture:
		return r.ack(r.scheduleDeparture(ctx, command))
	case domain.CommandCancelDeparture:
		return r.ack(r.alarms.CancelDeparture(ctx))
	case domain.CommandCancelAll:
		return r.ack(r.alarms.CancelAll(ctx))
	case domain.CommandRegisterAll:
		return r.ack(r.registerAll(ctx, command))
	case domain.CommandGetStatus:
		return r.alarms.Status(ctx)
	case domain.CommandNotificationAction:
		return r.ack(r.notificationAction(ctx, command))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, command.Type)
	}
}

func (r *Router) scheduleTask(ctx context.Context, command domain.Command) error {
	payload := scheduleTaskPayload{
		ID:      command.ID,
		Name:    command.Name,
		EndTime: command.EndTime,
	}

	if err := r.check(&payload); err != nil {
		return err
	}

	dueAt, err := ParseISO8601(payload.EndTime)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	return r.alarms.ScheduleTask(ctx, payload.ID, payload.Name, dueAt)
}

func (r *Router) cancelTask(ctx context.Context, command domain.Command) error {
	payload := cancelTaskPayload{ID: command.ID}
	if err := r.check(&payload); err != nil {
		return err
	}

	return r.alarms.CancelTask(ctx, payload.ID)
}

func (r *Router) scheduleDeparture(ctx context.Context, command domain.Command) error {
	payload := scheduleDeparturePayload{
		DepartureTime: command.DepartureTime,
		AlarmMinutes:  command.AlarmMinutes,
		AlarmTime:     command.AlarmTime,
	}

	if err := r.check(&payload); err != nil {
		return err
	}

	var (
		dueAt time.Time
		err   error
	)

	if payload.AlarmTime != "" {
		dueAt, err = ParseISO8601(payload.AlarmTime)
	} else {
		dueAt, err = r.departureDueAt(payload.DepartureTime, payload.AlarmMinutes)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	return r.alarms.ScheduleDeparture(ctx, payload.DepartureTime, payload.AlarmMinutes, dueAt)
}

// registerAll replaces every alarm with the plan: cancel-all, then the
// departure alarm when enabled, then each task. The whole plan is validated
// before anything is cancelled.
func (r *Router) registerAll(ctx context.Context, command domain.Command) error {
	payload := registerAllPayload{
		DepartureTime:  command.DepartureTime,
		DepartureAlarm: command.DepartureAlarm,
		Tasks:          command.Tasks,
	}

	if err := r.check(&payload); err != nil {
		return err
	}

	if payload.departureEnabled() && payload.DepartureTime == "" {
		return fmt.Errorf("%w: departureTime is required when the departure alarm is enabled", ErrInvalidCommand)
	}

	taskDueTimes := make([]time.Time, len(payload.Tasks))

	for i, task := range payload.Tasks {
		dueAt, err := ParseISO8601(task.EndTime)
		if err != nil {
			return fmt.Errorf("%w: task %s: %w", ErrInvalidCommand, task.ID, err)
		}

		taskDueTimes[i] = dueAt
	}

	if err := r.alarms.CancelAll(ctx); err != nil {
		return err
	}

	var errs []error

	if payload.departureEnabled() {
		minutes := payload.DepartureAlarm.MinutesBefore

		dueAt, err := r.departureDueAt(payload.DepartureTime, minutes)
		if err == nil {
			err = r.alarms.ScheduleDeparture(ctx, payload.DepartureTime, minutes, dueAt)
		}

		if err != nil {
			errs = append(errs, fmt.Errorf("departure: %w", err))
		}
	}

	for i, task := range payload.Tasks {
		if err := r.alarms.ScheduleTask(ctx, task.ID, task.Name, taskDueTimes[i]); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", task.ID, err))
		}
	}

	return errors.Join(errs...)
}

func (r *Router) notificationAction(ctx context.Context, command domain.Command) error {
	payload := notificationActionPayload{
		Action: command.Action,
		ID:     command.ID,
	}

	if err := r.check(&payload); err != nil {
		return err
	}

	switch payload.Action {
	case domain.ActionMarkDone:
		if err := r.alarms.CancelTask(ctx, payload.ID); err != nil {
			return err
		}

		completed := domain.NewEvent(domain.EventTaskCompleted, r.clock())
		completed.TaskID = payload.ID
		r.alarms.Broadcast(ctx, completed)

		return nil
	case domain.ActionSnooze:
		name := command.Name
		if name == "" {
			if record, ok := r.alarms.Lookup(ctx, domain.TaskKey(payload.ID)); ok {
				name = record.Name
			}
		}

		if name == "" {
			name = payload.ID
		}

		return r.alarms.ScheduleTask(ctx, payload.ID, name, r.clock().Add(r.snooze))
	case domain.ActionGotIt:
		return r.alarms.CancelDeparture(ctx)
	case domain.ActionSnooze5:
		record, ok := r.alarms.Lookup(ctx, domain.DepartureKey)
		if !ok {
			return fmt.Errorf("%w: no departure alarm to snooze", ErrInvalidCommand)
		}

		return r.alarms.ScheduleDeparture(ctx, record.DepartureAt, record.LeadMinutes, r.clock().Add(r.snooze))
	default:
		return fmt.Errorf("%w: action %q", ErrInvalidCommand, payload.Action)
	}
}

// departureDueAt returns the next occurrence of departureAt minus the lead time.
func (r *Router) departureDueAt(departureAt string, leadMinutes int) (time.Time, error) {
	departure, err := domain.NextDeparture(departureAt, r.clock())
	if err != nil {
		return time.Time{}, err
	}

	return departure.Add(-time.Duration(leadMinutes) * time.Minute), nil
}

func (r *Router) check(payload any) error {
	if err := r.validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCommand, describeValidation(err))
	}

	return nil
}

func (r *Router) ack(err error) (*domain.Event, error) {
	if err != nil {
		return nil, err
	}

	return domain.NewEvent(domain.EventAck, r.clock()), nil
}

// errorEvent builds an ERROR event carrying a copy of the failed command.
func (r *Router) errorEvent(command domain.Command, err error) *domain.Event {
	event := domain.NewEvent(domain.EventError, r.clock())
	event.Error = err.Error()
	event.Command = cloneCommand(command)

	return event
}

// cloneCommand copies a command so the event does not alias caller data.
func cloneCommand(command domain.Command) *domain.Command {
	clone := command
	clone.Tasks = slices.Clone(command.Tasks)

	if command.DepartureAlarm != nil {
		settings := *command.DepartureAlarm
		clone.DepartureAlarm = &settings
	}

	return &clone
}
