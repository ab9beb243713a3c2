package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/task-alarm/internal/config"
	"github.com/oshokin/task-alarm/internal/service/client"
	"github.com/oshokin/task-alarm/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the daemon address from the configuration file.
	serverAddress string
	// outputFormat selects text or json output.
	outputFormat string

	// rootCmd represents the base command of the task alarm client.
	rootCmd = &cobra.Command{
		Use:   "task-alarm",
		Short: "Manage task and departure alarms.",
		Long: `Talks to a running task-alarm-server.

Schedule alarms for when tasks end and for leaving the house, inspect what is pending,
answer notifications and watch alarms fire.`,
		SilenceUsage: true,
	}
)

// Execute runs the task-alarm CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withRunner connects to the daemon, runs fn and closes the connection.
func withRunner(fn func(ctx context.Context, runner *client.Runner) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		runner, err := client.Connect(ctx, &client.Options{
			ConfigPath:    cfgPath,
			ServerAddress: serverAddress,
			Format:        outputFormat,
			Out:           cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}

		defer func() {
			_ = runner.Close()
		}()

		return fn(ctx, runner)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "", "daemon address, overrides the configuration file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", client.FormatText, "output format: text or json")

	rootCmd.AddCommand(
		newScheduleTaskCmd(),
		newCancelTaskCmd(),
		newScheduleDepartureCmd(),
		newCancelDepartureCmd(),
		newCancelAllCmd(),
		newRegisterAllCmd(),
		newStatusCmd(),
		newActionCmd(),
		newWatchCmd(),
	)
}
