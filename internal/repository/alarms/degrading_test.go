package alarms

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

var errDiskGone = errors.New("disk gone")

// flakyRepository delegates to a memory repository until broken is set.
type flakyRepository struct {
	*MemoryRepository

	broken atomic.Bool
	calls  atomic.Int32
}

func newFlakyRepository() *flakyRepository {
	return &flakyRepository{MemoryRepository: NewMemoryRepository()}
}

func (f *flakyRepository) failure() error {
	f.calls.Add(1)

	if f.broken.Load() {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, errDiskGone)
	}

	return nil
}

func (f *flakyRepository) Put(ctx context.Context, record domain.Record) error {
	if err := f.failure(); err != nil {
		return err
	}

	return f.MemoryRepository.Put(ctx, record)
}

func (f *flakyRepository) GetAll(ctx context.Context, kind domain.Kind) ([]domain.Record, error) {
	if err := f.failure(); err != nil {
		return nil, err
	}

	return f.MemoryRepository.GetAll(ctx, kind)
}

func (f *flakyRepository) Get(ctx context.Context, key string) (domain.Record, error) {
	if err := f.failure(); err != nil {
		return domain.Record{}, err
	}

	return f.MemoryRepository.Get(ctx, key)
}

func (f *flakyRepository) Delete(ctx context.Context, key string) error {
	if err := f.failure(); err != nil {
		return err
	}

	return f.MemoryRepository.Delete(ctx, key)
}

func (f *flakyRepository) Clear(ctx context.Context) error {
	if err := f.failure(); err != nil {
		return err
	}

	return f.MemoryRepository.Clear(ctx)
}

// TestDegradingHealthy checks that a healthy primary sees every write.
func TestDegradingHealthy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := newFlakyRepository()
	dueAt := time.Now().Add(time.Hour)

	require.NoError(t, primary.MemoryRepository.Put(ctx, domain.NewTaskAlarm("seed", "Seed", dueAt)))

	repo := NewDegrading(ctx, primary, func(error) {
		t.Fatal("unexpected degrade")
	})
	require.False(t, repo.Degraded())

	require.NoError(t, repo.Put(ctx, domain.NewTaskAlarm("t1", "One", dueAt)))

	stored, err := primary.MemoryRepository.Get(ctx, domain.TaskKey("t1"))
	require.NoError(t, err)
	require.Equal(t, "One", stored.Name)

	records, err := repo.GetAll(ctx, domain.KindTask)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NoError(t, repo.Delete(ctx, domain.TaskKey("seed")))

	_, err = primary.MemoryRepository.Get(ctx, domain.TaskKey("seed"))
	require.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Get(ctx, domain.TaskKey("seed"))
	require.ErrorIs(t, err, ErrNotFound)
}

// TestDegradingSwitchesToMirror checks that storage failures are absorbed and
// the mirror keeps serving the records written so far.
func TestDegradingSwitchesToMirror(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := newFlakyRepository()
	dueAt := time.Now().Add(time.Hour)

	var degradeCalls atomic.Int32

	repo := NewDegrading(ctx, primary, func(err error) {
		require.ErrorIs(t, err, ErrStorageUnavailable)
		degradeCalls.Add(1)
	})

	require.NoError(t, repo.Put(ctx, domain.NewTaskAlarm("t1", "One", dueAt)))

	primary.broken.Store(true)

	require.NoError(t, repo.Put(ctx, domain.NewTaskAlarm("t2", "Two", dueAt.Add(time.Minute))))
	require.True(t, repo.Degraded())
	require.Equal(t, int32(1), degradeCalls.Load())

	callsAfterDegrade := primary.calls.Load()

	records, err := repo.GetAll(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"task:t1", "task:t2"}, keysOf(records))

	require.NoError(t, repo.Delete(ctx, domain.TaskKey("t1")))

	_, err = repo.Get(ctx, domain.TaskKey("t1"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Clear(ctx))

	records, err = repo.GetAll(ctx, "")
	require.NoError(t, err)
	require.Empty(t, records)

	require.Equal(t, callsAfterDegrade, primary.calls.Load(), "primary must not be used once degraded")
	require.Equal(t, int32(1), degradeCalls.Load())
}

// TestDegradingStartsDegraded covers a primary that cannot even be listed.
func TestDegradingStartsDegraded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := newFlakyRepository()
	primary.broken.Store(true)

	repo := NewDegrading(ctx, primary, nil)
	require.True(t, repo.Degraded())

	require.NoError(t, repo.Put(ctx, domain.NewDepartureAlarm("08:00", 5, time.Now().Add(time.Hour))))

	stored, err := repo.Get(ctx, domain.DepartureKey)
	require.NoError(t, err)
	require.Equal(t, "08:00", stored.DepartureAt)
}

// TestDegradingPassesValidationErrors checks that only storage failures are absorbed.
func TestDegradingPassesValidationErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewDegrading(ctx, newFlakyRepository(), nil)

	err := repo.Put(ctx, domain.NewTaskAlarm("", "No id", time.Now()))
	require.ErrorIs(t, err, domain.ErrInvalidRecord)
	require.False(t, repo.Degraded())
}
