package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/service/client"
)

func newScheduleTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule-task <id> <name> <end-time>",
		Short: "Schedule (or replace) the alarm of a task.",
		Long: `Schedules an alarm for the moment a task ends.

The end time is ISO-8601, e.g. 2026-10-19T17:00:00+02:00 or 2026-10-19T17:00 (local time).
An end time in the past fires the alarm immediately as overdue.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, runner *client.Runner) error {
				return runner.ScheduleTask(ctx, args[0], args[1], args[2])
			})(cmd, args)
		},
	}
}

func newCancelTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-task <id>",
		Short: "Cancel the alarm of a task.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, runner *client.Runner) error {
				return runner.CancelTask(ctx, args[0])
			})(cmd, args)
		},
	}
}

func newScheduleDepartureCmd() *cobra.Command {
	var alarmTime string

	command := &cobra.Command{
		Use:   "schedule-departure <HH:MM> <minutes-before>",
		Short: "Schedule the departure alarm.",
		Long: `Schedules the single departure alarm, replacing any previous one.

The alarm fires the given number of minutes before the next occurrence of the
departure time. Use --alarm-time to set the exact ISO-8601 firing moment instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}

			return withRunner(func(ctx context.Context, runner *client.Runner) error {
				return runner.ScheduleDeparture(ctx, args[0], minutes, alarmTime)
			})(cmd, args)
		},
	}

	command.Flags().StringVar(&alarmTime, "alarm-time", "", "exact ISO-8601 moment the alarm fires")

	return command
}

func newCancelDepartureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-departure",
		Short: "Cancel the departure alarm.",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(ctx context.Context, runner *client.Runner) error {
			return runner.CancelDeparture(ctx)
		}),
	}
}

func newCancelAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-all",
		Short: "Cancel every alarm.",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(ctx context.Context, runner *client.Runner) error {
			return runner.CancelAll(ctx)
		}),
	}
}

func newRegisterAllCmd() *cobra.Command {
	var planPath string

	command := &cobra.Command{
		Use:   "register-all --file plan.yaml",
		Short: "Replace every alarm with a plan.",
		Long: `Cancels every alarm and schedules the departure alarm and task alarms of a YAML plan:

  departureTime: "08:15"
  departureAlarm:
    enabled: true
    minutesBefore: 10
  tasks:
    - id: t1
      name: Write report
      endTime: "2026-10-19T17:00:00+02:00"

departureTime is required while the departure alarm is enabled.`,
		Args: cobra.NoArgs,
		RunE: withRunner(func(ctx context.Context, runner *client.Runner) error {
			return runner.RegisterAll(ctx, planPath)
		}),
	}

	command.Flags().StringVarP(&planPath, "file", "f", "", "path to the YAML plan")

	err := command.MarkFlagRequired("file")
	if err != nil {
		panic(err)
	}

	return command
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending alarms.",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(ctx context.Context, runner *client.Runner) error {
			return runner.Status(ctx)
		}),
	}
}

func newActionCmd() *cobra.Command {
	var (
		taskID   string
		taskName string
	)

	command := &cobra.Command{
		Use:   "action <mark-done|snooze|got-it|snooze-5>",
		Short: "Answer an alarm notification.",
		Long: `Reports the action picked on an alarm notification.

mark-done and snooze act on a task alarm and need --id; got-it and snooze-5 act on the departure alarm.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{domain.ActionMarkDone, domain.ActionSnooze, domain.ActionGotIt, domain.ActionSnooze5},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(ctx context.Context, runner *client.Runner) error {
				return runner.Action(ctx, args[0], taskID, taskName)
			})(cmd, args)
		},
	}

	command.Flags().StringVar(&taskID, "id", "", "task id of task actions")
	command.Flags().StringVar(&taskName, "name", "", "task name shown when a snoozed alarm fires")

	return command
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print alarm events as they happen.",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(ctx context.Context, runner *client.Runner) error {
			return runner.Watch(ctx)
		}),
	}
}
