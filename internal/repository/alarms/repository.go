package alarms

import (
	"context"
	"errors"
	"slices"
	"strings"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

// Repository defines persistence operations for alarm records.
type Repository interface {
	// Put stores the record, replacing any record with the same key.
	Put(ctx context.Context, record domain.Record) error
	// GetAll returns active records of the kind sorted by due time.
	// An empty kind returns every active record.
	GetAll(ctx context.Context, kind domain.Kind) ([]domain.Record, error)
	// Get returns the record stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (domain.Record, error)
	// Delete removes the record stored under key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every record.
	Clear(ctx context.Context) error
	// Close releases the backend.
	Close() error
}

var (
	// ErrNotFound is returned when no record is stored under a key.
	ErrNotFound = errors.New("alarm not found")
	// ErrStorageUnavailable is returned when the backend cannot be read or written.
	ErrStorageUnavailable = errors.New("alarm storage unavailable")
)

// matchesKind reports whether an active record belongs to kind.
func matchesKind(record *domain.Record, kind domain.Kind) bool {
	return record.Active && (kind == "" || record.Kind == kind)
}

// sortByDueAt orders records by due time, then key, so fire order is stable.
func sortByDueAt(records []domain.Record) {
	slices.SortFunc(records, func(a, b domain.Record) int {
		if c := a.DueAt.Compare(b.DueAt); c != 0 {
			return c
		}

		return strings.Compare(a.Key(), b.Key())
	})
}
