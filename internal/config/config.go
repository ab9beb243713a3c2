package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the task-alarm binaries.
type Config struct {
	// ServerAddress is the gRPC address of the alarm daemon.
	ServerAddress string `yaml:"server_addr" env:"SERVER_ADDR"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// LogLevel is the minimum level of log messages.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	// Store selects and configures the durable alarm store.
	Store StoreConfig `yaml:"store" envPrefix:"STORE_"`
	// ReconcileInterval is the period of the reconciliation loop.
	ReconcileInterval time.Duration `yaml:"reconcile_interval" env:"RECONCILE_INTERVAL"`
	// GraceWindow is how late an alarm may be before it counts as overdue.
	GraceWindow time.Duration `yaml:"grace_window" env:"GRACE_WINDOW"`
	// Snooze is how far a snoozed alarm is pushed into the future.
	Snooze time.Duration `yaml:"snooze" env:"SNOOZE"`
	// TimerMaxSleep caps how long the timer scheduler sleeps without re-reading the clock.
	TimerMaxSleep time.Duration `yaml:"timer_max_sleep" env:"TIMER_MAX_SLEEP"`
	// MetricsAddress enables the Prometheus endpoint when set.
	MetricsAddress string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	// SubscriberBuffer is the per-client event buffer size.
	SubscriberBuffer int `yaml:"subscriber_buffer" env:"SUBSCRIBER_BUFFER"`
	// Notifications configures desktop notifications.
	Notifications NotificationsConfig `yaml:"notifications" envPrefix:"NOTIFICATIONS_"`
}

// StoreConfig selects the durable alarm store backend.
type StoreConfig struct {
	// Driver is one of sqlite, badger, file, memory.
	Driver string `yaml:"driver" env:"DRIVER"`
	// Path is the database file, badger directory or JSON file.
	Path string `yaml:"path" env:"PATH"`
}

// NotificationsConfig configures desktop notifications.
type NotificationsConfig struct {
	// Enabled turns desktop notifications on; when off they are only logged.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// AppName is shown as the notification source.
	AppName string `yaml:"app_name" env:"APP_NAME"`
}

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverFile   = "file"
	DriverMemory = "memory"
)

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "task-alarm-settings.yaml"
	// DefaultServerAddress is the default gRPC address of the daemon.
	DefaultServerAddress = "127.0.0.1:50061"
	// DefaultStorePath is the default SQLite database file.
	DefaultStorePath = "task-alarm.db"
	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second
	// DefaultReconcileInterval is the default reconciliation period.
	DefaultReconcileInterval = 30 * time.Second
	// DefaultGraceWindow is the default overdue threshold.
	DefaultGraceWindow = 60 * time.Second
	// DefaultSnooze is the default snooze duration.
	DefaultSnooze = 5 * time.Minute
	// DefaultTimerMaxSleep is the default timer sleep cap.
	DefaultTimerMaxSleep = 60 * time.Second
	// DefaultSubscriberBuffer is the default per-client event buffer size.
	DefaultSubscriberBuffer = 32
	// DefaultAppName is the default notification source name.
	DefaultAppName = "Task Alarm"
	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
	// envPrefix prefixes every environment override.
	envPrefix = "TASK_ALARM_"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownDriver is returned for unsupported store drivers.
	errUnknownDriver = errors.New("unknown store driver")
	// errNonPositive is returned for durations that must be positive.
	errNonPositive = errors.New("must be positive")
)

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		ServerAddress:     DefaultServerAddress,
		Timeout:           DefaultTimeout,
		LogLevel:          "info",
		Store:             StoreConfig{Driver: DriverSQLite, Path: DefaultStorePath},
		ReconcileInterval: DefaultReconcileInterval,
		GraceWindow:       DefaultGraceWindow,
		Snooze:            DefaultSnooze,
		TimerMaxSleep:     DefaultTimerMaxSleep,
		SubscriberBuffer:  DefaultSubscriberBuffer,
		Notifications:     NotificationsConfig{Enabled: true, AppName: DefaultAppName},
	}
}

// Load reads configuration from the provided path, applies environment
// overrides and validates the result. A missing file at the default path
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename:
		// Keep defaults.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills defaults for unset fields.
//
//nolint:cyclop // A flat list of independent checks reads best.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		settings.ServerAddress = DefaultServerAddress
	}

	if _, _, err := net.SplitHostPort(settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server address: %w", err)
	}

	if settings.MetricsAddress != "" {
		if _, _, err := net.SplitHostPort(settings.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics address: %w", err)
		}
	}

	setDefaultDuration(&settings.Timeout, DefaultTimeout)
	setDefaultDuration(&settings.ReconcileInterval, DefaultReconcileInterval)
	setDefaultDuration(&settings.GraceWindow, DefaultGraceWindow)
	setDefaultDuration(&settings.Snooze, DefaultSnooze)
	setDefaultDuration(&settings.TimerMaxSleep, DefaultTimerMaxSleep)

	if settings.GraceWindow < 0 || settings.ReconcileInterval < 0 {
		return fmt.Errorf("grace window and reconcile interval: %w", errNonPositive)
	}

	if settings.SubscriberBuffer <= 0 {
		settings.SubscriberBuffer = DefaultSubscriberBuffer
	}

	if settings.Notifications.AppName == "" {
		settings.Notifications.AppName = DefaultAppName
	}

	switch settings.Store.Driver {
	case "":
		settings.Store.Driver = DriverSQLite
	case DriverSQLite, DriverBadger, DriverFile, DriverMemory:
	default:
		return fmt.Errorf("%w: %q", errUnknownDriver, settings.Store.Driver)
	}

	if settings.Store.Path == "" && settings.Store.Driver != DriverMemory {
		settings.Store.Path = DefaultStorePath
	}

	return nil
}

// setDefaultDuration replaces a zero duration with the fallback.
func setDefaultDuration(value *time.Duration, fallback time.Duration) {
	if *value == 0 {
		*value = fallback
	}
}
