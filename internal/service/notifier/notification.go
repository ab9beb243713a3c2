package notifier

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/logger"
)

// DefaultTitle is the notification title used when no app name is configured.
const DefaultTitle = "Task Alarm"

// ErrNotificationDenied is returned by displayers when the host refuses to show
// a notification (missing tool, permission denied, unsupported platform).
var ErrNotificationDenied = errors.New("notification denied")

// departureVibrate is the vibration pattern of departure notifications.
//
//nolint:gochecknoglobals // Read-only pattern copied into every notification.
var departureVibrate = []int{100, 50, 100}

// Action is a button offered by a notification.
type Action struct {
	// ID is the action identifier routed back as a NOTIFICATION_ACTION command.
	ID string
	// Title is the button label.
	Title string
}

// Notification is one user-visible notification.
type Notification struct {
	// Tag is the alarm key; a newer notification with the same tag replaces the
	// older one instead of stacking.
	Tag   string
	Title string
	Body  string
	// Actions lists the buttons offered to the user.
	Actions []Action
	// Vibrate is the vibration pattern in milliseconds, where supported.
	Vibrate []int
	// RequireInteraction keeps the notification until the user acts on it.
	RequireInteraction bool
	// Overdue marks notifications for alarms that fired late.
	Overdue bool
}

// Displayer shows notifications on the host.
type Displayer interface {
	Display(ctx context.Context, notification Notification) error
}

// TaskNotification builds the notification of a fired task alarm.
func TaskNotification(title, taskID, name string, overdue bool) Notification {
	body := "Task finished: " + name
	if overdue {
		body = "Task overdue: " + name
	}

	return Notification{
		Tag:   domain.TaskKey(taskID),
		Title: title,
		Body:  body,
		Actions: []Action{
			{ID: domain.ActionMarkDone, Title: "Mark done"},
			{ID: domain.ActionSnooze, Title: "Snooze"},
		},
		Overdue: overdue,
	}
}

// DepartureNotification builds the notification of the fired departure alarm
// set leadMinutes before departureAt.
func DepartureNotification(title, departureAt string, leadMinutes int, overdue bool) Notification {
	body := fmt.Sprintf("Time to go! Departure at %s (%s)", departureAt, leadText(leadMinutes))
	if overdue {
		body = fmt.Sprintf("You should already be on your way! Departure at %s (alarm was %d min before)",
			departureAt, leadMinutes)
	}

	return Notification{
		Tag:   domain.DepartureKey,
		Title: title,
		Body:  body,
		Actions: []Action{
			{ID: domain.ActionGotIt, Title: "Got it"},
			{ID: domain.ActionSnooze5, Title: "Snooze 5 min"},
		},
		Vibrate:            append([]int(nil), departureVibrate...),
		RequireInteraction: true,
		Overdue:            overdue,
	}
}

func leadText(leadMinutes int) string {
	if leadMinutes <= 0 {
		return "now"
	}

	return fmt.Sprintf("in %d min", leadMinutes)
}

// LogDisplayer writes notifications to the log instead of the desktop.
type LogDisplayer struct{}

// Display logs the notification.
func (LogDisplayer) Display(ctx context.Context, notification Notification) error {
	logger.InfoKV(ctx, "Notification",
		"tag", notification.Tag,
		"title", notification.Title,
		"body", notification.Body,
		"overdue", notification.Overdue)

	return nil
}

// deniedf wraps a displayer failure as ErrNotificationDenied.
func deniedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotificationDenied, fmt.Sprintf(format, args...))
}
