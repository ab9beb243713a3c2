package notifier

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
)

// commandRunner runs an external command to completion.
type commandRunner func(ctx context.Context, name string, args ...string) error

// DesktopDisplayer shows notifications with the tools every desktop ships:
// - Linux:  `notify-send`
// - macOS:  `osascript -e 'display notification ...'`
// Any other platform, a missing tool or a non-zero exit is ErrNotificationDenied.
type DesktopDisplayer struct {
	appName  string
	goos     string
	lookPath func(file string) (string, error)
	run      commandRunner
}

// NewDesktopDisplayer creates a displayer for the current platform.
func NewDesktopDisplayer(appName string) *DesktopDisplayer {
	if appName == "" {
		appName = DefaultTitle
	}

	return &DesktopDisplayer{
		appName:  appName,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Display shows the notification on the desktop.
func (d *DesktopDisplayer) Display(ctx context.Context, notification Notification) error {
	name, args, err := d.command(notification)
	if err != nil {
		return err
	}

	path, err := d.lookPath(name)
	if err != nil {
		return deniedf("%s not found: %v", name, err)
	}

	if err = d.run(ctx, path, args...); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return deniedf("%s exited with code %d", name, exitErr.ExitCode())
		}

		return deniedf("%s failed: %v", name, err)
	}

	return nil
}

// command builds the platform command line for the notification.
func (d *DesktopDisplayer) command(notification Notification) (string, []string, error) {
	switch d.goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		urgency := "normal"
		if notification.RequireInteraction || notification.Overdue {
			urgency = "critical"
		}

		args := []string{
			"--app-name=" + d.appName,
			"--urgency=" + urgency,
			// Notification servers replace a notification with the same synchronous hint.
			"--hint=string:x-canonical-private-synchronous:" + notification.Tag,
			notification.Title,
			notification.Body,
		}

		return "notify-send", args, nil
	case "darwin":
		script := "display notification " + appleScriptString(notification.Body) +
			" with title " + appleScriptString(notification.Title) +
			" subtitle " + appleScriptString(d.appName)

		return "osascript", []string{"-e", script}, nil
	default:
		return "", nil, deniedf("unsupported operating system: %s", d.goos)
	}
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
