package notifier

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/task-alarm/internal/metrics"
)

// noopSink lets test sinks override only what they count.
type noopSink = metrics.NoopSink

type capturedCommand struct {
	name string
	args []string
}

func newTestDesktop(goos string, lookErr, runErr error) (*DesktopDisplayer, *[]capturedCommand) {
	var commands []capturedCommand

	d := &DesktopDisplayer{
		appName: "Task Alarm",
		goos:    goos,
		lookPath: func(file string) (string, error) {
			if lookErr != nil {
				return "", lookErr
			}

			return "/usr/bin/" + file, nil
		},
		run: func(_ context.Context, name string, args ...string) error {
			commands = append(commands, capturedCommand{name: name, args: args})

			return runErr
		},
	}

	return d, &commands
}

func TestDesktopDisplayerLinux(t *testing.T) {
	t.Parallel()

	d, commands := newTestDesktop("linux", nil, nil)

	require.NoError(t, d.Display(context.Background(), DepartureNotification(DefaultTitle, "08:15", 10, false)))
	require.Len(t, *commands, 1)

	command := (*commands)[0]
	require.Equal(t, "/usr/bin/notify-send", command.name)
	require.Contains(t, command.args, "--urgency=critical")
	require.Contains(t, command.args, "--hint=string:x-canonical-private-synchronous:departure")
	require.Equal(t, "Time to go! Departure at 08:15 (in 10 min)", command.args[len(command.args)-1])

	require.NoError(t, d.Display(context.Background(), TaskNotification(DefaultTitle, "t1", "Read", false)))
	require.Contains(t, (*commands)[1].args, "--urgency=normal")
}

func TestDesktopDisplayerDarwin(t *testing.T) {
	t.Parallel()

	d, commands := newTestDesktop("darwin", nil, nil)

	require.NoError(t, d.Display(context.Background(), TaskNotification(DefaultTitle, "t1", `Say "hi"`, true)))
	require.Len(t, *commands, 1)
	require.Equal(t, "/usr/bin/osascript", (*commands)[0].name)
	require.Equal(t, []string{
		"-e",
		`display notification "Task overdue: Say \"hi\"" with title "Task Alarm" subtitle "Task Alarm"`,
	}, (*commands)[0].args)
}

func TestDesktopDisplayerDenied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	notification := TaskNotification(DefaultTitle, "t1", "Read", false)

	d, commands := newTestDesktop("plan9", nil, nil)
	require.ErrorIs(t, d.Display(ctx, notification), ErrNotificationDenied)
	require.Empty(t, *commands)

	d, commands = newTestDesktop("linux", exec.ErrNotFound, nil)
	require.ErrorIs(t, d.Display(ctx, notification), ErrNotificationDenied)
	require.Empty(t, *commands)

	d, _ = newTestDesktop("linux", nil, errors.New("dbus unavailable"))
	require.ErrorIs(t, d.Display(ctx, notification), ErrNotificationDenied)
}

func TestLogDisplayer(t *testing.T) {
	t.Parallel()

	require.NoError(t, LogDisplayer{}.Display(context.Background(), TaskNotification(DefaultTitle, "t1", "Read", false)))
	require.Equal(t, DefaultTitle, NewDesktopDisplayer("").appName)
}
