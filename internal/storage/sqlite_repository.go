package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/sandeepkv93/medremind/internal/model"
)

const sqliteTimeLayout = time.RFC3339Nano

// Driver names registered by mattn/go-sqlite3 (cgo) and modernc.org/sqlite
// (pure Go).
const (
	DriverCGO  = "sqlite3"
	DriverPure = "sqlite"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	// Both execution contexts open the same file.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// OpenSQLite opens path with the given driver and applies migrations.
func OpenSQLite(driver, path string) (*SQLiteRepository, error) {
	switch driver {
	case "":
		driver = DriverCGO
	case DriverCGO, DriverPure:
	default:
		return nil, fmt.Errorf("storage: unsupported sqlite driver %q", driver)
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) ListSchedules(ctx context.Context) ([]ScheduleRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, id, name, time, daily, next_notification, written_at
		FROM notification_schedules ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ScheduleRow, 0)
	for rows.Next() {
		row, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertSchedule keeps the earliest row for the id so the schedule holds
// its place in evaluation order, and drops any other rows for the id.
func (r *SQLiteRepository) UpsertSchedule(ctx context.Context, in model.Schedule) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var seq int64
		err := tx.QueryRowContext(ctx, `SELECT seq FROM notification_schedules WHERE id = ? ORDER BY seq ASC LIMIT 1`, in.ID).Scan(&seq)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return insertSchedule(ctx, tx, in, r.now())
		case err != nil:
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notification_schedules WHERE id = ? AND seq <> ?`, in.ID, seq); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE notification_schedules
			SET name = ?, time = ?, daily = ?, next_notification = ?, written_at = ?
			WHERE seq = ?`,
			in.Name, in.Time, boolInt(in.Daily), in.NextNotification.UnixMilli(), mustTime(r.now()), seq,
		)
		return err
	})
}

func (r *SQLiteRepository) DeleteSchedule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteAllSchedules(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_schedules`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *SQLiteRepository) ReplaceSchedules(ctx context.Context, in []model.Schedule) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM notification_schedules`); err != nil {
			return err
		}
		now := r.now()
		for _, s := range in {
			if err := insertSchedule(ctx, tx, s, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) ApplyBatch(ctx context.Context, batch Batch) error {
	if batch.Empty() {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		now := mustTime(r.now())
		for _, s := range batch.Rearm {
			if _, err := tx.ExecContext(ctx, `
				UPDATE notification_schedules SET next_notification = ?, written_at = ?
				WHERE id = ? AND time = ?`,
				s.NextNotification.UnixMilli(), now, s.ID, s.Time,
			); err != nil {
				return fmt.Errorf("rearm %s: %w", s.ID, err)
			}
		}
		for _, id := range batch.Retire {
			if _, err := tx.ExecContext(ctx, `DELETE FROM notification_schedules WHERE id = ?`, id); err != nil {
				return fmt.Errorf("retire %s: %w", id, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertSchedule(ctx context.Context, tx *sql.Tx, in model.Schedule, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notification_schedules (id, name, time, daily, next_notification, written_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.Name, in.Time, boolInt(in.Daily), in.NextNotification.UnixMilli(), mustTime(at),
	)
	return err
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(s scanner) (ScheduleRow, error) {
	var (
		out       ScheduleRow
		daily     int
		nextMilli int64
		writtenAt string
	)
	if err := s.Scan(&out.Seq, &out.ID, &out.Name, &out.Time, &daily, &nextMilli, &writtenAt); err != nil {
		return ScheduleRow{}, err
	}
	out.Daily = daily == 1
	out.NextNotification = time.UnixMilli(nextMilli)
	written, err := time.Parse(sqliteTimeLayout, writtenAt)
	if err != nil {
		return ScheduleRow{}, fmt.Errorf("parse written_at: %w", err)
	}
	out.WrittenAt = written
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
