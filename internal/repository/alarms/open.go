package alarms

import (
	"context"
	"fmt"

	"github.com/oshokin/task-alarm/internal/config"
)

// Open creates the repository selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Repository, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return NewSQLiteRepository(ctx, cfg.Path)
	case config.DriverBadger:
		return NewBadgerRepository(ctx, BadgerOptions{Path: cfg.Path})
	case config.DriverFile:
		return NewFileRepository(cfg.Path), nil
	case config.DriverMemory:
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", ErrStorageUnavailable, cfg.Driver)
	}
}
