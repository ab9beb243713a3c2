package alarms

import (
	"context"
	"sync"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

// MemoryRepository keeps alarm records in a map. Nothing survives a restart.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]domain.Record
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]domain.Record),
	}
}

// Put stores the record, replacing any record with the same key.
func (r *MemoryRepository) Put(_ context.Context, record domain.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.Key()] = record

	return nil
}

// GetAll returns active records of the kind sorted by due time.
func (r *MemoryRepository) GetAll(_ context.Context, kind domain.Kind) ([]domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Record, 0, len(r.records))

	for _, record := range r.records {
		if matchesKind(&record, kind) {
			result = append(result, record)
		}
	}

	sortByDueAt(result)

	return result, nil
}

// Get returns the record stored under key.
func (r *MemoryRepository) Get(_ context.Context, key string) (domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return domain.Record{}, ErrNotFound
	}

	return record, nil
}

// Delete removes the record stored under key.
func (r *MemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, key)

	return nil
}

// Clear removes every record.
func (r *MemoryRepository) Clear(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.records)

	return nil
}

// Close is a no-op.
func (r *MemoryRepository) Close() error {
	return nil
}

// replaceAll swaps the stored records for the provided ones.
func (r *MemoryRepository) replaceAll(records []domain.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.records)

	for _, record := range records {
		r.records[record.Key()] = record
	}
}
