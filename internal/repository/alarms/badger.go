package alarms

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/logger"
)

// badgerKeyPrefix namespaces alarm keys inside the badger keyspace.
const badgerKeyPrefix = "alarm/"

// BadgerRepository persists alarm records in a badger key-value store.
type BadgerRepository struct {
	db *badger.DB
}

// BadgerOptions configures NewBadgerRepository.
type BadgerOptions struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in memory (tests).
	InMemory bool
}

// badgerLogger adapts zap to the badger.Logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...any)   { l.logger.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...any) { l.logger.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...any)    { l.logger.Debugf(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...any)   { l.logger.Debugf(format, args...) }

// badgerLog keeps badger at warnings and above unless the daemon runs at debug.
func badgerLog(ctx context.Context) *zap.SugaredLogger {
	log := logger.FromContext(ctx).Named("badger")
	if logger.Level() == zapcore.DebugLevel {
		return log
	}

	return log.WithOptions(logger.WithLevel(zapcore.WarnLevel))
}

// NewBadgerRepository opens (or creates) a badger store.
func NewBadgerRepository(ctx context.Context, opts BadgerOptions) (*BadgerRepository, error) {
	options := badger.DefaultOptions(opts.Path).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: badgerLog(ctx)})

	if opts.InMemory {
		options = options.WithDir("").WithValueDir("").WithInMemory(true).WithSyncWrites(false)
	} else if opts.Path == "" {
		return nil, fmt.Errorf("%w: badger path is required", ErrStorageUnavailable)
	}

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %w", ErrStorageUnavailable, err)
	}

	return &BadgerRepository{db: db}, nil
}

// Put stores the record, replacing any record with the same key.
func (r *BadgerRepository) Put(_ context.Context, record domain.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	data, err := encodeRecord(&record)
	if err != nil {
		return err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(record.Key()), data)
	})
	if err != nil {
		return fmt.Errorf("%w: put alarm %s: %w", ErrStorageUnavailable, record.Key(), err)
	}

	return nil
}

// GetAll returns active records of the kind sorted by due time.
func (r *BadgerRepository) GetAll(_ context.Context, kind domain.Kind) ([]domain.Record, error) {
	var result []domain.Record

	err := r.db.View(func(txn *badger.Txn) error {
		iteratorOptions := badger.DefaultIteratorOptions
		iteratorOptions.Prefix = []byte(badgerKeyPrefix)

		iterator := txn.NewIterator(iteratorOptions)
		defer iterator.Close()

		for iterator.Rewind(); iterator.Valid(); iterator.Next() {
			data, err := iterator.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			record, err := decodeRecord(data)
			if err != nil {
				return err
			}

			if matchesKind(&record, kind) {
				result = append(result, record)
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list alarms: %w", ErrStorageUnavailable, err)
	}

	sortByDueAt(result)

	return result, nil
}

// Get returns the record stored under key.
func (r *BadgerRepository) Get(_ context.Context, key string) (domain.Record, error) {
	var data []byte

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)

		return err
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return domain.Record{}, ErrNotFound
	case err != nil:
		return domain.Record{}, fmt.Errorf("%w: get alarm %s: %w", ErrStorageUnavailable, key, err)
	}

	record, err := decodeRecord(data)
	if err != nil {
		return domain.Record{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return record, nil
}

// Delete removes the record stored under key.
func (r *BadgerRepository) Delete(_ context.Context, key string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(key))
	})
	if err != nil {
		return fmt.Errorf("%w: delete alarm %s: %w", ErrStorageUnavailable, key, err)
	}

	return nil
}

// Clear removes every record.
func (r *BadgerRepository) Clear(context.Context) error {
	if err := r.db.DropPrefix([]byte(badgerKeyPrefix)); err != nil {
		return fmt.Errorf("%w: clear alarms: %w", ErrStorageUnavailable, err)
	}

	return nil
}

// Close closes the badger database.
func (r *BadgerRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}

	return r.db.Close()
}

func badgerKey(key string) []byte {
	return []byte(badgerKeyPrefix + key)
}
