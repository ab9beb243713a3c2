package router

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

// iso8601Layouts are accepted in order. Timestamps without an offset are read
// in the local zone, the way browsers format datetime-local inputs.
//
//nolint:gochecknoglobals // Read-only layout table.
var iso8601Layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseISO8601 parses an ISO-8601 timestamp.
func ParseISO8601(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	var errs []error

	for _, layout := range iso8601Layouts {
		parsed, err := time.ParseInLocation(layout, value, time.Local)
		if err == nil {
			return parsed, nil
		}

		errs = append(errs, err)
	}

	return time.Time{}, fmt.Errorf("parse ISO-8601 time %q: %w", value, errors.Join(errs...))
}

func validateISO8601(fl validator.FieldLevel) bool {
	_, err := ParseISO8601(fl.Field().String())

	return err == nil
}

// newValidator builds the command validator. Field names in messages use the
// JSON names clients send.
func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	_ = validate.RegisterValidation("iso8601", validateISO8601)

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return validate
}

type scheduleTaskPayload struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	EndTime string `json:"endTime" validate:"required,iso8601"`
}

type cancelTaskPayload struct {
	ID string `json:"id" validate:"required"`
}

type scheduleDeparturePayload struct {
	DepartureTime string `json:"departureTime" validate:"required,datetime=15:04"`
	AlarmMinutes  int    `json:"alarmMinutes" validate:"gte=0,lte=1440"`
	// AlarmTime is optional; without it the alarm time is derived from
	// DepartureTime and AlarmMinutes.
	AlarmTime string `json:"alarmTime" validate:"omitempty,iso8601"`
}

type registerAllPayload struct {
	DepartureTime  string                         `json:"departureTime" validate:"omitempty,datetime=15:04"`
	DepartureAlarm *domain.DepartureAlarmSettings `json:"departureAlarm"`
	Tasks          []domain.TaskEntry             `json:"tasks" validate:"dive"`
}

type notificationActionPayload struct {
	Action string `json:"action" validate:"required,oneof=mark-done snooze got-it snooze-5"`
	ID     string `json:"id" validate:"required_if=Action mark-done,required_if=Action snooze"`
}

// departureEnabled reports whether the plan schedules a departure alarm.
func (p *registerAllPayload) departureEnabled() bool {
	return p.DepartureAlarm != nil && p.DepartureAlarm.Enabled
}

// describeValidation flattens validator errors into one readable message.
func describeValidation(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))

	for _, fieldErr := range validationErrors {
		field := fieldErr.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}

		rule := fieldErr.Tag()
		if fieldErr.Param() != "" {
			rule += "=" + fieldErr.Param()
		}

		messages = append(messages, fmt.Sprintf("%s failed %s", field, rule))
	}

	return strings.Join(messages, "; ")
}
