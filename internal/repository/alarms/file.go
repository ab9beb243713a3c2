package alarms

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/task-alarm/internal/config"
	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
)

// fileAlarmsField holds the key -> record map inside the JSON document.
const fileAlarmsField = "alarms"

// FileRepository persists alarm records to a single JSON file on disk.
// JSON is produced and consumed via protojson so the file shares its shape
// with the records clients receive over gRPC.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu serializes read-modify-write cycles on the file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Put stores the record, replacing any record with the same key.
func (r *FileRepository) Put(_ context.Context, record domain.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}

	records[record.Key()] = record

	return r.save(records)
}

// GetAll returns active records of the kind sorted by due time.
func (r *FileRepository) GetAll(_ context.Context, kind domain.Kind) ([]domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}

	result := make([]domain.Record, 0, len(records))

	for _, record := range records {
		if matchesKind(&record, kind) {
			result = append(result, record)
		}
	}

	sortByDueAt(result)

	return result, nil
}

// Get returns the record stored under key.
func (r *FileRepository) Get(_ context.Context, key string) (domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return domain.Record{}, err
	}

	record, ok := records[key]
	if !ok {
		return domain.Record{}, ErrNotFound
	}

	return record, nil
}

// Delete removes the record stored under key.
func (r *FileRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}

	if _, ok := records[key]; !ok {
		return nil
	}

	delete(records, key)

	return r.save(records)
}

// Clear removes every record.
func (r *FileRepository) Clear(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(map[string]domain.Record{})
}

// Close is a no-op: the file is not kept open between operations.
func (r *FileRepository) Close() error {
	return nil
}

// load reads every record from disk. A missing file is an empty store.
func (r *FileRepository) load() (map[string]domain.Record, error) {
	records := make(map[string]domain.Record)

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return records, nil
		}

		return nil, fmt.Errorf("%w: read alarms file: %w", ErrStorageUnavailable, err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("%w: decode alarms file: %w", ErrStorageUnavailable, err)
	}

	for key, value := range document.GetFields()[fileAlarmsField].GetStructValue().GetFields() {
		record, err := fromStruct(value.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("%w: decode alarm %s: %w", ErrStorageUnavailable, key, err)
		}

		records[key] = record
	}

	return records, nil
}

// save writes every record to a temporary file and renames it over the target,
// so a crash mid-write never leaves a truncated file behind.
func (r *FileRepository) save(records map[string]domain.Record) error {
	alarms := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(records))}

	for key, record := range records {
		value, err := toStruct(&record)
		if err != nil {
			return err
		}

		alarms.Fields[key] = structpb.NewStructValue(value)
	}

	document := &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fileAlarmsField: structpb.NewStructValue(alarms),
		},
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode alarms: %w", err)
	}

	temporary := r.path + ".tmp"
	if err = os.WriteFile(temporary, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("%w: write alarms file: %w", ErrStorageUnavailable, err)
	}

	if err = os.Rename(temporary, r.path); err != nil {
		return fmt.Errorf("%w: replace alarms file: %w", ErrStorageUnavailable, err)
	}

	return nil
}
