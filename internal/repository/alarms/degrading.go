package alarms

import (
	"context"
	"errors"
	"sync"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

// Degrading wraps a durable repository with an in-memory mirror that receives
// every write. After the first storage failure it serves everything from the
// mirror, so scheduling keeps working with in-process state only.
type Degrading struct {
	primary   Repository
	mirror    *MemoryRepository
	onDegrade func(error)

	mu       sync.RWMutex
	degraded bool
}

// Compile-time interface check.
var _ Repository = (*Degrading)(nil)

// NewDegrading wraps primary. The mirror is seeded from the records primary
// already holds; if they cannot be read the wrapper starts degraded.
// onDegrade may be nil.
func NewDegrading(ctx context.Context, primary Repository, onDegrade func(error)) *Degrading {
	d := &Degrading{
		primary:   primary,
		mirror:    NewMemoryRepository(),
		onDegrade: onDegrade,
	}

	records, err := primary.GetAll(ctx, "")
	if err != nil {
		d.degrade(err)

		return d
	}

	d.mirror.replaceAll(records)

	return d
}

// Degraded reports whether the wrapper switched to the in-memory mirror.
func (d *Degrading) Degraded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.degraded
}

// Put stores the record in the mirror and, while healthy, in primary.
func (d *Degrading) Put(ctx context.Context, record domain.Record) error {
	if err := d.mirror.Put(ctx, record); err != nil {
		return err
	}

	if d.Degraded() {
		return nil
	}

	return d.absorb(d.primary.Put(ctx, record))
}

// GetAll returns active records of the kind sorted by due time.
func (d *Degrading) GetAll(ctx context.Context, kind domain.Kind) ([]domain.Record, error) {
	if !d.Degraded() {
		records, err := d.primary.GetAll(ctx, kind)
		if err = d.absorb(err); err != nil {
			return nil, err
		}

		if !d.Degraded() {
			return records, nil
		}
	}

	return d.mirror.GetAll(ctx, kind)
}

// Get returns the record stored under key.
func (d *Degrading) Get(ctx context.Context, key string) (domain.Record, error) {
	if !d.Degraded() {
		record, err := d.primary.Get(ctx, key)
		if err = d.absorb(err); err != nil {
			return domain.Record{}, err
		}

		if !d.Degraded() {
			return record, nil
		}
	}

	return d.mirror.Get(ctx, key)
}

// Delete removes the record from the mirror and, while healthy, from primary.
func (d *Degrading) Delete(ctx context.Context, key string) error {
	_ = d.mirror.Delete(ctx, key)

	if d.Degraded() {
		return nil
	}

	return d.absorb(d.primary.Delete(ctx, key))
}

// Clear removes every record from the mirror and, while healthy, from primary.
func (d *Degrading) Clear(ctx context.Context) error {
	_ = d.mirror.Clear(ctx)

	if d.Degraded() {
		return nil
	}

	return d.absorb(d.primary.Clear(ctx))
}

// Close closes primary.
func (d *Degrading) Close() error {
	return d.primary.Close()
}

// absorb switches to the mirror on storage failures and swallows them.
// Other errors (validation, not found) pass through.
func (d *Degrading) absorb(err error) error {
	if err == nil || !errors.Is(err, ErrStorageUnavailable) {
		return err
	}

	d.degrade(err)

	return nil
}

func (d *Degrading) degrade(err error) {
	d.mu.Lock()
	first := !d.degraded
	d.degraded = true
	d.mu.Unlock()

	if first && d.onDegrade != nil {
		d.onDegrade(err)
	}
}
