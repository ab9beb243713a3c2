package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

type call struct {
	op          string
	id          string
	name        string
	departureAt string
	lead        int
	dueAt       time.Time
}

// fakeAlarms records every operation.
type fakeAlarms struct {
	calls     []call
	records   map[string]domain.Record
	broadcast []*domain.Event
	failTask  string
}

func newFakeAlarms() *fakeAlarms {
	return &fakeAlarms{records: make(map[string]domain.Record)}
}

var errScheduleFailed = errors.New("schedule failed")

func (f *fakeAlarms) ScheduleTask(_ context.Context, id, name string, dueAt time.Time) error {
	if id == f.failTask {
		return errScheduleFailed
	}

	f.calls = append(f.calls, call{op: "schedule-task", id: id, name: name, dueAt: dueAt})

	return nil
}

func (f *fakeAlarms) CancelTask(_ context.Context, id string) error {
	f.calls = append(f.calls, call{op: "cancel-task", id: id})

	return nil
}

func (f *fakeAlarms) ScheduleDeparture(_ context.Context, departureAt string, leadMinutes int, dueAt time.Time) error {
	f.calls = append(f.calls, call{op: "schedule-departure", departureAt: departureAt, lead: leadMinutes, dueAt: dueAt})

	return nil
}

func (f *fakeAlarms) CancelDeparture(context.Context) error {
	f.calls = append(f.calls, call{op: "cancel-departure"})

	return nil
}

func (f *fakeAlarms) CancelAll(context.Context) error {
	f.calls = append(f.calls, call{op: "cancel-all"})

	return nil
}

func (f *fakeAlarms) Status(context.Context) (*domain.Event, error) {
	return domain.NewEvent(domain.EventAlarmStatus, time.Now()), nil
}

func (f *fakeAlarms) Lookup(_ context.Context, key string) (domain.Record, bool) {
	record, ok := f.records[key]

	return record, ok
}

func (f *fakeAlarms) Broadcast(_ context.Context, event *domain.Event) {
	f.broadcast = append(f.broadcast, event)
}

func (f *fakeAlarms) ops() []string {
	ops := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		ops = append(ops, c.op)
	}

	return ops
}

var testNow = time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)

func newTestRouter(alarms Alarms) *Router {
	r := New(Config{}, alarms, nil)
	r.clock = func() time.Time { return testNow }

	return r
}

func TestScheduleTask(t *testing.T) {
	t.Parallel()

	alarms := newFakeAlarms()
	reply := newTestRouter(alarms).Handle(context.Background(), domain.Command{
		Type:    domain.CommandScheduleTask,
		ID:      "t1",
		Name:    "Write report",
		EndTime: "2026-10-19T07:05:00Z",
	})

	require.NotNil(t, reply)
	require.Equal(t, domain.EventAck, reply.Type)
	require.Equal(t, []call{{
		op:    "schedule-task",
		id:    "t1",
		name:  "Write report",
		dueAt: testNow.Add(5 * time.Minute),
	}}, alarms.calls)
}

func TestInvalidCommandsProduceErrorEvents(t *testing.T) {
	t.Parallel()

	cases := map[string]domain.Command{
		"task without id":          {Type: domain.CommandScheduleTask, Name: "x", EndTime: "2026-10-19T07:05:00Z"},
		"task with bad end time":   {Type: domain.CommandScheduleTask, ID: "t1", Name: "x", EndTime: "tomorrow"},
		"cancel without id":        {Type: domain.CommandCancelTask},
		"departure with bad time":  {Type: domain.CommandScheduleDeparture, DepartureTime: "8h15"},
		"departure negative lead":  {Type: domain.CommandScheduleDeparture, DepartureTime: "08:15", AlarmMinutes: -5},
		"departure bad alarm time": {Type: domain.CommandScheduleDeparture, DepartureTime: "08:15", AlarmTime: "soon"},
		"unknown action":           {Type: domain.CommandNotificationAction, Action: "dance"},
		"mark done without id":     {Type: domain.CommandNotificationAction, Action: domain.ActionMarkDone},
		"register enabled no time": {
			Type:           domain.CommandRegisterAll,
			DepartureAlarm: &domain.DepartureAlarmSettings{Enabled: true, MinutesBefore: 10},
		},
		"register bad task": {
			Type:  domain.CommandRegisterAll,
			Tasks: []domain.TaskEntry{{ID: "t1", Name: "One", EndTime: "later"}},
		},
	}

	for name, command := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			alarms := newFakeAlarms()
			reply := newTestRouter(alarms).Handle(context.Background(), command)

			require.NotNil(t, reply)
			require.Equal(t, domain.EventError, reply.Type)
			require.Contains(t, reply.Error, ErrInvalidCommand.Error())
			require.NotNil(t, reply.Command)
			require.Equal(t, command.Type, reply.Command.Type)
			require.Empty(t, alarms.calls, "nothing may be applied for an invalid command")
		})
	}
}

func TestValidationMessageUsesJSONNames(t *testing.T) {
	t.Parallel()

	reply := newTestRouter(newFakeAlarms()).Handle(context.Background(), domain.Command{
		Type:  domain.CommandRegisterAll,
		Tasks: []domain.TaskEntry{{ID: "t1", EndTime: "2026-10-19T07:05:00Z"}},
	})

	require.Equal(t, domain.EventError, reply.Type)
	require.Contains(t, reply.Error, "tasks[0].name failed required")
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	t.Parallel()

	alarms := newFakeAlarms()
	require.Nil(t, newTestRouter(alarms).Handle(context.Background(), domain.Command{Type: "REBOOT"}))
	require.Empty(t, alarms.calls)
}

func TestScheduleDepartureDueTime(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	alarms := newFakeAlarms()
	r := newTestRouter(alarms)

	// Explicit alarm time wins.
	reply := r.Handle(ctx, domain.Command{
		Type:          domain.CommandScheduleDeparture,
		DepartureTime: "08:15",
		AlarmMinutes:  10,
		AlarmTime:     "2026-10-19T08:05:00Z",
	})
	require.Equal(t, domain.EventAck, reply.Type)

	// Without it the due time is derived; 06:30 already passed and rolls over.
	reply = r.Handle(ctx, domain.Command{
		Type:          domain.CommandScheduleDeparture,
		DepartureTime: "06:30",
		AlarmMinutes:  15,
	})
	require.Equal(t, domain.EventAck, reply.Type)

	require.Equal(t, []call{
		{op: "schedule-departure", departureAt: "08:15", lead: 10, dueAt: time.Date(2026, 10, 19, 8, 5, 0, 0, time.UTC)},
		{op: "schedule-departure", departureAt: "06:30", lead: 15, dueAt: time.Date(2026, 10, 20, 6, 15, 0, 0, time.UTC)},
	}, alarms.calls)
}

func TestRegisterAll(t *testing.T) {
	t.Parallel()

	alarms := newFakeAlarms()
	reply := newTestRouter(alarms).Handle(context.Background(), domain.Command{
		Type:           domain.CommandRegisterAll,
		DepartureTime:  "08:00",
		DepartureAlarm: &domain.DepartureAlarmSettings{Enabled: true, MinutesBefore: 10},
		Tasks: []domain.TaskEntry{
			{ID: "t1", Name: "Shower", EndTime: "2026-10-19T07:15:00Z"},
			{ID: "t2", Name: "Breakfast", EndTime: "2026-10-19T07:40:00Z"},
		},
	})

	require.Equal(t, domain.EventAck, reply.Type)
	require.Equal(t, []string{"cancel-all", "schedule-departure", "schedule-task", "schedule-task"}, alarms.ops())
	require.Equal(t, time.Date(2026, 10, 19, 7, 50, 0, 0, time.UTC), alarms.calls[1].dueAt)
	require.Equal(t, "t2", alarms.calls[3].id)
}

func TestRegisterAllEmptyPlanOnlyCancels(t *testing.T) {
	t.Parallel()

	alarms := newFakeAlarms()
	reply := newTestRouter(alarms).Handle(context.Background(), domain.Command{
		Type:           domain.CommandRegisterAll,
		DepartureAlarm: &domain.DepartureAlarmSettings{Enabled: false},
	})

	require.Equal(t, domain.EventAck, reply.Type)
	require.Equal(t, []string{"cancel-all"}, alarms.ops())
}

func TestRegisterAllReportsPartialFailure(t *testing.T) {
	t.Parallel()

	alarms := newFakeAlarms()
	alarms.failTask = "t1"

	reply := newTestRouter(alarms).Handle(context.Background(), domain.Command{
		Type: domain.CommandRegisterAll,
		Tasks: []domain.TaskEntry{
			{ID: "t1", Name: "One", EndTime: "2026-10-19T07:15:00Z"},
			{ID: "t2", Name: "Two", EndTime: "2026-10-19T07:30:00Z"},
		},
	})

	require.Equal(t, domain.EventError, reply.Type)
	require.Contains(t, reply.Error, "task t1")
	require.Len(t, reply.Command.Tasks, 2)
	require.Equal(t, []string{"cancel-all", "schedule-task"}, alarms.ops())
}

func TestNotificationActions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	alarms := newFakeAlarms()
	alarms.records[domain.TaskKey("t1")] = domain.NewTaskAlarm("t1", "Write report", testNow)
	alarms.records[domain.DepartureKey] = domain.NewDepartureAlarm("08:00", 10, testNow)

	r := newTestRouter(alarms)

	for _, command := range []domain.Command{
		{Type: domain.CommandNotificationAction, Action: domain.ActionMarkDone, ID: "t1"},
		{Type: domain.CommandNotificationAction, Action: domain.ActionSnooze, ID: "t1"},
		{Type: domain.CommandNotificationAction, Action: domain.ActionGotIt},
		{Type: domain.CommandNotificationAction, Action: domain.ActionSnooze5},
	} {
		reply := r.Handle(ctx, command)
		require.Equal(t, domain.EventAck, reply.Type, command.Action)
	}

	snoozedAt := testNow.Add(DefaultSnooze)

	require.Equal(t, []call{
		{op: "cancel-task", id: "t1"},
		{op: "schedule-task", id: "t1", name: "Write report", dueAt: snoozedAt},
		{op: "cancel-departure"},
		{op: "schedule-departure", departureAt: "08:00", lead: 10, dueAt: snoozedAt},
	}, alarms.calls)

	require.Len(t, alarms.broadcast, 1)
	require.Equal(t, domain.EventTaskCompleted, alarms.broadcast[0].Type)
	require.Equal(t, "t1", alarms.broadcast[0].TaskID)
}

func TestSnoozeDepartureWithoutRecord(t *testing.T) {
	t.Parallel()

	reply := newTestRouter(newFakeAlarms()).Handle(context.Background(), domain.Command{
		Type:   domain.CommandNotificationAction,
		Action: domain.ActionSnooze5,
	})

	require.Equal(t, domain.EventError, reply.Type)
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	reply := newTestRouter(newFakeAlarms()).Handle(context.Background(), domain.Command{Type: domain.CommandGetStatus})
	require.Equal(t, domain.EventAlarmStatus, reply.Type)
}

func TestParseISO8601(t *testing.T) {
	t.Parallel()

	parsed, err := ParseISO8601("2026-10-19T07:05:00.123Z")
	require.NoError(t, err)
	require.Equal(t, 123*time.Millisecond, time.Duration(parsed.Nanosecond()))

	parsed, err = ParseISO8601("2026-10-19T09:05:00+02:00")
	require.NoError(t, err)
	require.True(t, parsed.Equal(time.Date(2026, 10, 19, 7, 5, 0, 0, time.UTC)))

	_, err = ParseISO8601("2026-10-19T07:05")
	require.NoError(t, err)

	_, err = ParseISO8601("19.10.2026")
	require.Error(t, err)
}
