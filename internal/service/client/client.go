package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/task-alarm/internal/config"
	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/logger"
	"github.com/oshokin/task-alarm/internal/service/common"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures how the CLI reaches the daemon and prints replies.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Format is FormatText or FormatJSON.
	Format string
	// Out receives printed events; os.Stdout when nil.
	Out io.Writer
}

// Conn is the part of common.Client the CLI uses.
type Conn interface {
	Command(ctx context.Context, command domain.Command) (*domain.Event, error)
	Subscribe(ctx context.Context, handle func(*domain.Event) error) error
	Close() error
}

// Runner executes CLI operations over one daemon connection.
type Runner struct {
	conn    Conn
	printer *printer
}

var (
	// errUnknownFormat is returned for output formats other than text and json.
	errUnknownFormat = errors.New("unknown output format")
	// errPlanRequired is returned when register-all gets no plan file.
	errPlanRequired = errors.New("plan file is required")
)

// Connect loads settings and dials the daemon.
func Connect(ctx context.Context, opts *Options) (*Runner, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	dialOptions := []common.Option{common.WithCallTimeout(cfg.Timeout)}

	// Identify current user and hostname for the daemon's audit log.
	actor, err := common.DetectActor()
	if err != nil {
		logger.Warnf(ctx, "Unable to detect actor: %v", err)
	} else {
		dialOptions = append(dialOptions, common.WithActor(actor))
	}

	conn, err := common.Dial(ctx, serverAddress, dialOptions...)
	if err != nil {
		return nil, err
	}

	runner, err := NewRunner(conn, opts.Format, opts.Out)
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	return runner, nil
}

// NewRunner wraps an established connection.
func NewRunner(conn Conn, format string, out io.Writer) (*Runner, error) {
	if out == nil {
		out = os.Stdout
	}

	switch format {
	case "", FormatText:
		format = FormatText
	case FormatJSON:
	default:
		return nil, fmt.Errorf("%w %q", errUnknownFormat, format)
	}

	return &Runner{
		conn:    conn,
		printer: &printer{out: out, format: format},
	}, nil
}

// Close releases the connection.
func (r *Runner) Close() error {
	return r.conn.Close()
}

// ScheduleTask schedules (or replaces) the alarm of a task.
func (r *Runner) ScheduleTask(ctx context.Context, id, name, endTime string) error {
	return r.send(ctx, domain.Command{
		Type:    domain.CommandScheduleTask,
		ID:      id,
		Name:    name,
		EndTime: endTime,
	})
}

// CancelTask cancels the alarm of a task.
func (r *Runner) CancelTask(ctx context.Context, id string) error {
	return r.send(ctx, domain.Command{
		Type: domain.CommandCancelTask,
		ID:   id,
	})
}

// ScheduleDeparture schedules the departure alarm. alarmTime may be empty.
func (r *Runner) ScheduleDeparture(ctx context.Context, departureTime string, alarmMinutes int, alarmTime string) error {
	return r.send(ctx, domain.Command{
		Type:          domain.CommandScheduleDeparture,
		DepartureTime: departureTime,
		AlarmMinutes:  alarmMinutes,
		AlarmTime:     alarmTime,
	})
}

// CancelDeparture cancels the departure alarm.
func (r *Runner) CancelDeparture(ctx context.Context) error {
	return r.send(ctx, domain.Command{Type: domain.CommandCancelDeparture})
}

// CancelAll cancels every alarm.
func (r *Runner) CancelAll(ctx context.Context) error {
	return r.send(ctx, domain.Command{Type: domain.CommandCancelAll})
}

// RegisterAll replaces every alarm with the plan stored in a YAML file.
func (r *Runner) RegisterAll(ctx context.Context, planPath string) error {
	command, err := LoadPlan(planPath)
	if err != nil {
		return err
	}

	return r.send(ctx, command)
}

// Status prints the pending alarms.
func (r *Runner) Status(ctx context.Context) error {
	return r.send(ctx, domain.Command{Type: domain.CommandGetStatus})
}

// Action reports a notification action. id and name only matter for task actions.
func (r *Runner) Action(ctx context.Context, action, id, name string) error {
	return r.send(ctx, domain.Command{
		Type:   domain.CommandNotificationAction,
		Action: action,
		ID:     id,
		Name:   name,
	})
}

// Watch prints broadcast events until ctx is cancelled.
func (r *Runner) Watch(ctx context.Context) error {
	err := r.conn.Subscribe(ctx, r.printer.print)
	if err != nil && ctx.Err() != nil {
		return nil
	}

	return err
}

func (r *Runner) send(ctx context.Context, command domain.Command) error {
	event, err := r.conn.Command(ctx, command)
	if event != nil {
		if printErr := r.printer.print(event); printErr != nil {
			return printErr
		}
	}

	return err
}

// LoadPlan reads a register-all plan from a YAML file:
//
//	departureTime: "08:15"
//	departureAlarm:
//	  enabled: true
//	  minutesBefore: 10
//	tasks:
//	  - id: t1
//	    name: Write report
//	    endTime: 2026-10-19T17:00:00+02:00
func LoadPlan(path string) (domain.Command, error) {
	if strings.TrimSpace(path) == "" {
		return domain.Command{}, errPlanRequired
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return domain.Command{}, fmt.Errorf("read plan: %w", err)
	}

	var command domain.Command
	if err = yaml.Unmarshal(contents, &command); err != nil {
		return domain.Command{}, fmt.Errorf("unmarshal plan: %w", err)
	}

	command.Type = domain.CommandRegisterAll

	return command, nil
}
