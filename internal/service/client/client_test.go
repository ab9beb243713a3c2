package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/service/common"
)

// fakeConn records commands and answers with reply and err.
type fakeConn struct {
	sent    []domain.Command
	reply   *domain.Event
	err     error
	events  []*domain.Event
	closed  bool
	blockFn func(ctx context.Context) error
}

func (f *fakeConn) Command(_ context.Context, command domain.Command) (*domain.Event, error) {
	f.sent = append(f.sent, command)

	return f.reply, f.err
}

func (f *fakeConn) Subscribe(ctx context.Context, handle func(*domain.Event) error) error {
	for _, event := range f.events {
		if err := handle(event); err != nil {
			return err
		}
	}

	if f.blockFn != nil {
		return f.blockFn(ctx)
	}

	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true

	return nil
}

func newTestRunner(t *testing.T, conn *fakeConn, format string) (*Runner, *bytes.Buffer) {
	t.Helper()

	out := new(bytes.Buffer)

	runner, err := NewRunner(conn, format, out)
	require.NoError(t, err)

	return runner, out
}

// TestRunner_Commands checks the command each operation sends.
func TestRunner_Commands(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := &fakeConn{reply: domain.NewEvent(domain.EventAck, time.Now())}
	runner, out := newTestRunner(t, conn, "")

	require.NoError(t, runner.ScheduleTask(ctx, "t1", "Write report", "2026-10-19T09:00:00Z"))
	require.NoError(t, runner.CancelTask(ctx, "t1"))
	require.NoError(t, runner.ScheduleDeparture(ctx, "08:15", 10, ""))
	require.NoError(t, runner.CancelDeparture(ctx))
	require.NoError(t, runner.CancelAll(ctx))
	require.NoError(t, runner.Status(ctx))
	require.NoError(t, runner.Action(ctx, domain.ActionSnooze, "t1", "Write report"))

	require.Equal(t, []domain.Command{
		{Type: domain.CommandScheduleTask, ID: "t1", Name: "Write report", EndTime: "2026-10-19T09:00:00Z"},
		{Type: domain.CommandCancelTask, ID: "t1"},
		{Type: domain.CommandScheduleDeparture, DepartureTime: "08:15", AlarmMinutes: 10},
		{Type: domain.CommandCancelDeparture},
		{Type: domain.CommandCancelAll},
		{Type: domain.CommandGetStatus},
		{Type: domain.CommandNotificationAction, Action: domain.ActionSnooze, ID: "t1", Name: "Write report"},
	}, conn.sent)
	require.Contains(t, out.String(), "ACK")

	require.NoError(t, runner.Close())
	require.True(t, conn.closed)
}

// TestRunner_Rejected prints the error event and returns the error.
func TestRunner_Rejected(t *testing.T) {
	t.Parallel()

	reply := domain.NewEvent(domain.EventError, time.Now())
	reply.Error = "endTime failed iso8601"

	conn := &fakeConn{reply: reply, err: common.ErrCommandRejected}
	runner, out := newTestRunner(t, conn, FormatText)

	err := runner.ScheduleTask(context.Background(), "t1", "Write report", "tomorrow")
	require.ErrorIs(t, err, common.ErrCommandRejected)
	require.Equal(t, "error: endTime failed iso8601\n", out.String())
}

// TestRunner_Status renders the status table.
func TestRunner_Status(t *testing.T) {
	t.Parallel()

	now := time.Now()
	reply := domain.NewEvent(domain.EventAlarmStatus, now)
	reply.TaskAlarms = []domain.StatusEntry{
		{Key: "task:t1", TaskID: "t1", TaskName: "Write report", DueAt: now.Add(time.Hour), Armed: false},
	}
	reply.DepartureAlarm = &domain.StatusEntry{
		Key:           domain.DepartureKey,
		DepartureTime: "08:15",
		AlarmMinutes:  10,
		DueAt:         now.Add(time.Minute),
		Armed:         true,
	}

	runner, out := newTestRunner(t, &fakeConn{reply: reply}, FormatText)
	require.NoError(t, runner.Status(context.Background()))

	text := out.String()
	require.Contains(t, text, "KEY")
	require.Contains(t, text, "departure 08:15, 10 min before")
	require.Contains(t, text, "Write report")

	empty := domain.NewEvent(domain.EventAlarmStatus, now)
	runner, out = newTestRunner(t, &fakeConn{reply: empty}, FormatText)
	require.NoError(t, runner.Status(context.Background()))
	require.Equal(t, "no pending alarms\n", out.String())
}

// TestRunner_JSON prints one JSON document per event.
func TestRunner_JSON(t *testing.T) {
	t.Parallel()

	reply := domain.NewEvent(domain.EventAck, time.Now())
	runner, out := newTestRunner(t, &fakeConn{reply: reply}, FormatJSON)

	require.NoError(t, runner.CancelAll(context.Background()))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Equal(t, reply.ID, decoded.ID)

	_, err := NewRunner(new(fakeConn), "xml", nil)
	require.ErrorIs(t, err, errUnknownFormat)
}

// TestRunner_Watch prints events and treats cancellation as a clean exit.
func TestRunner_Watch(t *testing.T) {
	t.Parallel()

	fired := domain.NewEvent(domain.EventTaskAlarm, time.Now())
	fired.TaskID = "t1"
	fired.TaskName = "Write report"

	ctx, cancel := context.WithCancel(context.Background())

	conn := &fakeConn{
		events: []*domain.Event{fired},
		blockFn: func(ctx context.Context) error {
			cancel()
			<-ctx.Done()

			return errors.New("stream closed")
		},
	}

	runner, out := newTestRunner(t, conn, FormatText)
	require.NoError(t, runner.Watch(ctx))
	require.Contains(t, out.String(), `TASK_ALARM t1 "Write report"`)
}

// TestLoadPlan reads a YAML plan into a register-all command.
func TestLoadPlan(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plan.yaml")
	plan := `departureTime: "08:15"
departureAlarm:
  enabled: true
  minutesBefore: 10
tasks:
  - id: t1
    name: Write report
    endTime: "2026-10-19T17:00:00+02:00"
`
	require.NoError(t, os.WriteFile(path, []byte(plan), 0o600))

	command, err := LoadPlan(path)
	require.NoError(t, err)
	require.Equal(t, domain.CommandRegisterAll, command.Type)
	require.Equal(t, "08:15", command.DepartureTime)
	require.Equal(t, &domain.DepartureAlarmSettings{Enabled: true, MinutesBefore: 10}, command.DepartureAlarm)
	require.Equal(t, []domain.TaskEntry{
		{ID: "t1", Name: "Write report", EndTime: "2026-10-19T17:00:00+02:00"},
	}, command.Tasks)

	conn := &fakeConn{reply: domain.NewEvent(domain.EventAck, time.Now())}
	runner, _ := newTestRunner(t, conn, FormatText)
	require.NoError(t, runner.RegisterAll(context.Background(), path))
	require.Equal(t, command, conn.sent[0])

	_, err = LoadPlan("")
	require.ErrorIs(t, err, errPlanRequired)

	_, err = LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
