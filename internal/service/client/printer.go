package client

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

// printer renders events for humans or as JSON lines.
type printer struct {
	out    io.Writer
	format string
}

func (p *printer) print(event *domain.Event) error {
	if p.format == FormatJSON {
		return json.NewEncoder(p.out).Encode(event)
	}

	switch event.Type {
	case domain.EventAlarmStatus:
		return p.printStatus(event)
	case domain.EventError:
		_, err := fmt.Fprintf(p.out, "error: %s\n", event.Error)

		return err
	default:
		_, err := fmt.Fprintln(p.out, describe(event))

		return err
	}
}

func (p *printer) printStatus(event *domain.Event) error {
	if len(event.TaskAlarms) == 0 && event.DepartureAlarm == nil {
		_, err := fmt.Fprintln(p.out, "no pending alarms")

		return err
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "KEY\tDUE\tARMED\tDETAILS")

	if entry := event.DepartureAlarm; entry != nil {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\tdeparture %s, %d min before\n",
			entry.Key, localTime(entry.DueAt), entry.Armed, entry.DepartureTime, entry.AlarmMinutes)
	}

	for _, entry := range event.TaskAlarms {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", entry.Key, localTime(entry.DueAt), entry.Armed, entry.TaskName)
	}

	return w.Flush()
}

func describe(event *domain.Event) string {
	at := localTime(event.Timestamp)

	switch event.Type {
	case domain.EventTaskAlarm, domain.EventTaskAlarmOverdue, domain.EventTaskCompleted:
		return fmt.Sprintf("%s %s %s %q", at, event.Type, event.TaskID, event.TaskName)
	case domain.EventDepartureAlarm, domain.EventDepartureAlarmOverdue:
		return fmt.Sprintf("%s %s departure at %s", at, event.Type, event.DepartureTime)
	default:
		return fmt.Sprintf("%s %s", at, event.Type)
	}
}

func localTime(value time.Time) string {
	return value.Local().Format(time.DateTime)
}
