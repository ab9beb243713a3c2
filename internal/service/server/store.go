package server

import (
	"context"

	"github.com/oshokin/task-alarm/internal/config"
	"github.com/oshokin/task-alarm/internal/logger"
	"github.com/oshokin/task-alarm/internal/metrics"
	"github.com/oshokin/task-alarm/internal/repository/alarms"
)

// openStore opens the configured store behind a degrading wrapper. A store
// that cannot be opened is replaced by memory so the daemon still runs.
func openStore(ctx context.Context, settings config.StoreConfig, sink metrics.Sink) *alarms.Degrading {
	primary, err := alarms.Open(ctx, settings)
	if err != nil {
		logger.ErrorKV(ctx, "Durable store unavailable, keeping alarms in memory",
			"store_driver", settings.Driver,
			"store_path", settings.Path,
			"error", err)
		sink.StorageDegraded()

		primary = alarms.NewMemoryRepository()
	}

	return alarms.NewDegrading(ctx, primary, func(err error) {
		logger.ErrorKV(ctx, "Durable store failed, continuing in memory", "error", err)
		sink.StorageDegraded()
	})
}
