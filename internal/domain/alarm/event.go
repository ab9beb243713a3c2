package alarm

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an outbound event sent to foreground clients.
type EventType string

const (
	EventTaskAlarm             EventType = "TASK_ALARM"
	EventTaskAlarmOverdue      EventType = "TASK_ALARM_OVERDUE"
	EventDepartureAlarm        EventType = "DEPARTURE_ALARM"
	EventDepartureAlarmOverdue EventType = "DEPARTURE_ALARM_OVERDUE"
	EventAlarmStatus           EventType = "ALARM_STATUS"
	EventError                 EventType = "ERROR"
	EventTaskCompleted         EventType = "TASK_COMPLETED"
	// EventAck confirms that a mutating command was applied.
	EventAck EventType = "ACK"
)

// Event is the wire shape of every outbound event.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"eventId"`
	// Type selects the event.
	Type EventType `json:"type"`
	// Timestamp is when the event was produced.
	Timestamp time.Time `json:"timestamp"`
	// TaskID and TaskName describe the task of task events.
	TaskID   string `json:"taskId,omitempty"`
	TaskName string `json:"taskName,omitempty"`
	// DepartureTime and AlarmMinutes describe the departure of departure
	// events. AlarmMinutes is always sent, a zero lead is a valid setting.
	DepartureTime string `json:"departureTime,omitempty"`
	AlarmMinutes  int    `json:"alarmMinutes"`
	// TaskAlarms and DepartureAlarm carry the status of ALARM_STATUS events.
	// Both are always present: an empty list and null mean nothing is pending.
	TaskAlarms     []StatusEntry `json:"taskAlarms"`
	DepartureAlarm *StatusEntry  `json:"departureAlarm"`
	// Error and Command describe a failed command of ERROR events.
	Error   string   `json:"error,omitempty"`
	Command *Command `json:"command,omitempty"`
	// Payload is the raw message of a command that could not be decoded.
	Payload map[string]any `json:"payload,omitempty"`
}

// StatusEntry describes one pending alarm in an ALARM_STATUS event.
type StatusEntry struct {
	Key           string    `json:"key"`
	TaskID        string    `json:"taskId,omitempty"`
	TaskName      string    `json:"taskName,omitempty"`
	DepartureTime string    `json:"departureTime,omitempty"`
	AlarmMinutes  int       `json:"alarmMinutes"`
	DueAt         time.Time `json:"dueAt"`
	// Armed reports whether a live timer exists for the alarm.
	Armed bool `json:"armed"`
}

// NewEvent creates an event of the given type stamped with a fresh id.
func NewEvent(eventType EventType, now time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: now.UTC(),
	}
}

// IsAlarm reports whether the event announces a fired alarm.
func (e *Event) IsAlarm() bool {
	switch e.Type {
	case EventTaskAlarm, EventTaskAlarmOverdue, EventDepartureAlarm, EventDepartureAlarmOverdue:
		return true
	default:
		return false
	}
}

// FiredEventType returns the event type announcing a fired record.
func FiredEventType(kind Kind, overdue bool) EventType {
	switch {
	case kind == KindDeparture && overdue:
		return EventDepartureAlarmOverdue
	case kind == KindDeparture:
		return EventDepartureAlarm
	case overdue:
		return EventTaskAlarmOverdue
	default:
		return EventTaskAlarm
	}
}
