package alarm

// CommandType names an inbound command sent by a foreground client.
type CommandType string

const (
	// CommandScheduleTask schedules (or replaces) a task alarm.
	CommandScheduleTask CommandType = "SCHEDULE_TASK_ALARM"
	// CommandCancelTask cancels a task alarm.
	CommandCancelTask CommandType = "CANCEL_TASK_ALARM"
	// CommandScheduleDeparture schedules (or supersedes) the departure alarm.
	CommandScheduleDeparture CommandType = "SCHEDULE_DEPARTURE_ALARM"
	// CommandCancelDeparture cancels the departure alarm.
	CommandCancelDeparture CommandType = "CANCEL_DEPARTURE_ALARM"
	// CommandCancelAll cancels every alarm.
	CommandCancelAll CommandType = "CANCEL_ALL_ALARMS"
	// CommandRegisterAll replaces every alarm with the supplied plan.
	CommandRegisterAll CommandType = "REGISTER_ALL_ALARMS"
	// CommandGetStatus asks for the current alarm status.
	CommandGetStatus CommandType = "GET_ALARM_STATUS"
	// CommandNotificationAction reports a notification action the user clicked.
	CommandNotificationAction CommandType = "NOTIFICATION_ACTION"
)

// Notification action identifiers.
const (
	ActionMarkDone = "mark-done"
	ActionSnooze   = "snooze"
	ActionGotIt    = "got-it"
	ActionSnooze5  = "snooze-5"
)

// Command is the wire shape of every inbound command. Which fields are required
// depends on Type.
type Command struct {
	// Type selects the command.
	Type CommandType `json:"type" yaml:"type"`
	// ID is the task id (task commands and task notification actions).
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
	// Name is the task name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// EndTime is the ISO-8601 moment a task ends.
	EndTime string `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	// DepartureTime is the HH:MM departure time.
	DepartureTime string `json:"departureTime,omitempty" yaml:"departureTime,omitempty"`
	// AlarmMinutes is how many minutes before departure the alarm fires.
	AlarmMinutes int `json:"alarmMinutes,omitempty" yaml:"alarmMinutes,omitempty"`
	// AlarmTime is the ISO-8601 moment the departure alarm fires.
	AlarmTime string `json:"alarmTime,omitempty" yaml:"alarmTime,omitempty"`
	// DepartureAlarm configures the departure alarm of a register-all plan.
	DepartureAlarm *DepartureAlarmSettings `json:"departureAlarm,omitempty" yaml:"departureAlarm,omitempty"`
	// Tasks is the task list of a register-all plan.
	Tasks []TaskEntry `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	// Action is the notification action identifier.
	Action string `json:"action,omitempty" yaml:"action,omitempty"`
}

// DepartureAlarmSettings is the departure part of a register-all plan.
type DepartureAlarmSettings struct {
	Enabled       bool `json:"enabled" yaml:"enabled"`
	MinutesBefore int  `json:"minutesBefore" yaml:"minutesBefore" validate:"gte=0,lte=1440"`
}

// TaskEntry is one task of a register-all plan.
type TaskEntry struct {
	ID      string `json:"id" yaml:"id" validate:"required"`
	Name    string `json:"name" yaml:"name" validate:"required"`
	EndTime string `json:"endTime" yaml:"endTime" validate:"required,iso8601"`
}
