package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	alarmgrpc "github.com/oshokin/task-alarm/internal/api/grpc/alarm"
	"github.com/oshokin/task-alarm/internal/config"
	"github.com/oshokin/task-alarm/internal/logger"
	"github.com/oshokin/task-alarm/internal/metrics"
	"github.com/oshokin/task-alarm/internal/service/manager"
	"github.com/oshokin/task-alarm/internal/service/notifier"
	"github.com/oshokin/task-alarm/internal/version"
)

// shutdownTimeout bounds graceful shutdown of the gRPC and metrics servers.
const shutdownTimeout = 5 * time.Second

// Options controls the task-alarm-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StorePath overrides the store path from the settings file.
	StorePath string
	// SkipInstanceCheck disables the single-instance guard.
	SkipInstanceCheck bool
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the daemon and blocks until context is canceled or a component fails.
// Loads configuration first, then determines listen address from config or override.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "task-alarm-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.StorePath != "" {
		settings.Store.Path = opts.StorePath
	}

	applyLogLevel(ctx, settings.LogLevel)

	// Two daemons would fire every alarm twice.
	if !opts.SkipInstanceCheck {
		if err = checkSingleInstance(ps.Processes, os.Getpid(), serverExecutable()); err != nil {
			return err
		}
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	registry := prometheus.NewRegistry()
	sink := newMetricsSink(settings.MetricsAddress, registry)

	store := openStore(ctx, settings.Store, sink)

	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warnf(ctx, "Failed to close alarm store: %v", closeErr)
		}
	}()

	dispatcher := notifier.NewDispatcher(settings.Notifications.AppName, newDisplayer(settings.Notifications), sink)

	alarmManager := manager.New(
		manager.Deps{
			Store:    store,
			Notifier: dispatcher,
			Metrics:  sink,
		},
		manager.OptionsFromConfig(settings),
	)

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(auditUnaryInterceptor),
		grpc.ChainStreamInterceptor(auditStreamInterceptor),
	)
	alarmgrpc.RegisterAlarmServiceServer(grpcServer, alarmgrpc.NewServer(alarmManager))

	logger.InfoKV(ctx, "Task alarm server listening",
		"version", version.Short(),
		"listen_address", listenAddress,
		"store_driver", settings.Store.Driver,
		"store_path", settings.Store.Path)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return alarmManager.Run(groupCtx)
	})

	group.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		stopGRPC(grpcServer)

		return nil
	})

	if settings.MetricsAddress != "" {
		serveMetrics(groupCtx, group, settings.MetricsAddress, registry)
	}

	if err = group.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Task alarm server stopped")

	return nil
}

// applyLogLevel switches the global logger to the configured level.
func applyLogLevel(ctx context.Context, value string) {
	level, ok := logger.ParseLogLevel(value)
	if !ok {
		logger.Warnf(ctx, "Unknown log level %q, keeping %s", value, logger.Level())

		return
	}

	logger.SetLevel(level)
}

// newMetricsSink returns a Prometheus sink when an endpoint is configured.
func newMetricsSink(address string, registry *prometheus.Registry) metrics.Sink {
	if address == "" {
		return metrics.NewNoopSink()
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return metrics.NewPrometheusSink(registry)
}

// newDisplayer shows desktop notifications when enabled and logs them otherwise.
func newDisplayer(settings config.NotificationsConfig) notifier.Displayer {
	if !settings.Enabled {
		return notifier.LogDisplayer{}
	}

	return notifier.NewDesktopDisplayer(settings.AppName)
}

// stopGRPC drains in-flight calls, forcing the stop after shutdownTimeout.
func stopGRPC(server *grpc.Server) {
	stopped := make(chan struct{})

	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()

	select {
	case <-stopped:
	case <-timer.C:
		server.Stop()
	}
}

func serveMetrics(ctx context.Context, group *errgroup.Group, address string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))

	metricsServer := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	group.Go(func() error {
		logger.InfoKV(ctx, "Metrics endpoint listening", "metrics_address", address)

		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve metrics: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return metricsServer.Shutdown(shutdownCtx)
	})
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise the configured address
// is used as is, keeping the daemon on loopback by default.
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	if _, _, err := net.SplitHostPort(configAddr); err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	return configAddr, nil
}
