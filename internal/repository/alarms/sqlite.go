package alarms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Registers the "sqlite" database/sql driver.

	domain "github.com/oshokin/task-alarm/internal/domain/alarm"
	"github.com/oshokin/task-alarm/internal/repository/alarms/migrations"
)

// sqliteDSNOptions enables WAL and waits on locks instead of failing fast.
const sqliteDSNOptions = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

const selectAlarmColumns = `SELECT kind, task_id, name, departure_at, lead_minutes, due_at, active FROM alarms`

// SQLiteRepository persists alarm records in a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database at path and applies embedded migrations.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrStorageUnavailable)
	}

	db, err := sql.Open("sqlite", filepath.Clean(path)+sqliteDSNOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %w", ErrStorageUnavailable, err)
	}

	// A single connection keeps every statement on the same SQLite handle.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%w: ping sqlite db: %w", ErrStorageUnavailable, err)
	}

	if err = applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%w: run migrations: %w", ErrStorageUnavailable, err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Put stores the record, replacing any record with the same key.
func (r *SQLiteRepository) Put(ctx context.Context, record domain.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO alarms (alarm_key, kind, task_id, name, departure_at, lead_minutes, due_at, active, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(alarm_key) DO UPDATE SET
		   kind = excluded.kind,
		   task_id = excluded.task_id,
		   name = excluded.name,
		   departure_at = excluded.departure_at,
		   lead_minutes = excluded.lead_minutes,
		   due_at = excluded.due_at,
		   active = excluded.active,
		   updated_at = excluded.updated_at`,
		record.Key(),
		string(record.Kind),
		record.TaskID,
		record.Name,
		record.DepartureAt,
		record.LeadMinutes,
		toMillis(record.DueAt),
		record.Active,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("%w: put alarm %s: %w", ErrStorageUnavailable, record.Key(), err)
	}

	return nil
}

// GetAll returns active records of the kind sorted by due time.
func (r *SQLiteRepository) GetAll(ctx context.Context, kind domain.Kind) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(
		ctx,
		selectAlarmColumns+` WHERE active = 1 AND (? = '' OR kind = ?) ORDER BY due_at, alarm_key`,
		string(kind),
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list alarms: %w", ErrStorageUnavailable, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var result []domain.Record

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		result = append(result, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list alarms: %w", ErrStorageUnavailable, err)
	}

	return result, nil
}

// Get returns the record stored under key.
func (r *SQLiteRepository) Get(ctx context.Context, key string) (domain.Record, error) {
	row := r.db.QueryRowContext(ctx, selectAlarmColumns+` WHERE alarm_key = ?`, key)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, ErrNotFound
	}

	return record, err
}

// Delete removes the record stored under key.
func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM alarms WHERE alarm_key = ?`, key); err != nil {
		return fmt.Errorf("%w: delete alarm %s: %w", ErrStorageUnavailable, key, err)
	}

	return nil
}

// Clear removes every record.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM alarms`); err != nil {
		return fmt.Errorf("%w: clear alarms: %w", ErrStorageUnavailable, err)
	}

	return nil
}

// Close closes the SQLite handle.
func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}

	return r.db.Close()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var (
		record domain.Record
		kind   string
		dueAt  int64
	)

	err := row.Scan(&kind, &record.TaskID, &record.Name, &record.DepartureAt, &record.LeadMinutes, &dueAt, &record.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, err
		}

		return domain.Record{}, fmt.Errorf("%w: scan alarm: %w", ErrStorageUnavailable, err)
	}

	record.Kind = domain.Kind(kind)
	record.DueAt = fromMillis(dueAt)

	return record, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
