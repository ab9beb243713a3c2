package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/task-alarm/internal/config"
	"github.com/oshokin/task-alarm/internal/service/server"
	"github.com/oshokin/task-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// storePath overrides the store path from the configuration file.
	storePath string
	// allowMultiple skips the single-instance guard.
	allowMultiple bool

	// rootCmd represents the base command for running the alarm daemon.
	rootCmd = &cobra.Command{
		Use:   "task-alarm-server [listen-address]",
		Short: "Run the task alarm daemon.",
		Long: `Starts the daemon that keeps task and departure alarms armed and fires them on time.

Alarms are persisted in the configured store (SQLite by default) and restored on start,
so alarms survive restarts. Alarms that were missed while the daemon was down fire as overdue.
The gRPC API listens on server_addr from the configuration file unless a listen address
is given as argument (e.g., :9090, 0.0.0.0:8080).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:        configPath,
				ListenAddress:     listenAddress,
				StorePath:         storePath,
				SkipInstanceCheck: allowMultiple,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the task-alarm-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&storePath, "store-path", "s", "", "override the alarm store path")

	// Hidden flag for running several daemons side by side in tests.
	rootCmd.Flags().BoolVar(&allowMultiple, "allow-multiple", false, "skip the single-instance check")

	err := rootCmd.Flags().MarkHidden("allow-multiple")
	if err != nil {
		panic(err)
	}
}
