package storage

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Open returns a store over the SQLite file at path. When the file cannot
// be opened the store falls back to memory and durable reports false.
func Open(driver, path string, logger *slog.Logger) (store *ScheduleStore, durable bool) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		logger.Warn("no schedule database configured; schedules will not persist")
		return NewScheduleStore(nil, logger), false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("create schedule database dir failed; schedules will not persist", "path", path, "err", err)
		return NewScheduleStore(nil, logger), false
	}
	repo, err := OpenSQLite(driver, path)
	if err != nil {
		logger.Warn("open schedule database failed; schedules will not persist", "path", path, "driver", driver, "err", err)
		return NewScheduleStore(nil, logger), false
	}
	return NewScheduleStore(repo, logger), true
}
