package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sandeepkv93/medremind/internal/model"
)

// ScheduleStore is the durable schedule set shared by both execution
// contexts. Reads never fail: a broken backend yields an empty set.
type ScheduleStore struct {
	repo ScheduleRepository
	log  *slog.Logger
}

func NewScheduleStore(repo ScheduleRepository, logger *slog.Logger) *ScheduleStore {
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleStore{repo: repo, log: logger}
}

// Load returns the schedules in insertion order with duplicates on
// (id, time) collapsed to the latest write. When duplicates were found the
// collapsed set is written back.
func (s *ScheduleStore) Load(ctx context.Context) []model.Schedule {
	rows, err := s.repo.ListSchedules(ctx)
	if err != nil {
		s.log.Warn("schedule store read failed; treating as empty", "err", err)
		return []model.Schedule{}
	}
	out := Dedupe(rows)
	if len(out) != len(rows) {
		s.log.Info("collapsing duplicate schedules", "stored", len(rows), "kept", len(out))
		if err := s.repo.ReplaceSchedules(ctx, out); err != nil {
			s.log.Warn("schedule store self-heal failed", "err", err)
		}
	}
	return out
}

func (s *ScheduleStore) Upsert(ctx context.Context, in model.Schedule) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpsertSchedule(ctx, in); err != nil {
		return fmt.Errorf("upsert schedule %s: %w", in.ID, err)
	}
	return nil
}

// Register upserts in, keeping the stored next notification when the
// schedule already fires at the same time with the same repetition. A
// foreground resync therefore cannot push a pending dose to tomorrow.
func (s *ScheduleStore) Register(ctx context.Context, in model.Schedule) (model.Schedule, error) {
	for _, existing := range s.Load(ctx) {
		if existing.SameSlot(in) {
			in.NextNotification = existing.NextNotification
			break
		}
	}
	return in, s.Upsert(ctx, in)
}

// RemoveByID is a no-op for unknown ids.
func (s *ScheduleStore) RemoveByID(ctx context.Context, id string) error {
	err := s.repo.DeleteSchedule(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("remove schedule %s: %w", id, err)
	}
	return nil
}

func (s *ScheduleStore) RemoveAll(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteAllSchedules(ctx)
	if err != nil {
		return 0, fmt.Errorf("remove all schedules: %w", err)
	}
	return n, nil
}

func (s *ScheduleStore) Apply(ctx context.Context, batch Batch) error {
	if batch.Empty() {
		return nil
	}
	if err := s.repo.ApplyBatch(ctx, batch); err != nil {
		return fmt.Errorf("apply schedule batch: %w", err)
	}
	return nil
}

func (s *ScheduleStore) Close() error {
	return s.repo.Close()
}

// Dedupe keeps the last-seen row for each (id, time) at that row's
// position. Rows are expected in Seq order.
func Dedupe(rows []ScheduleRow) []model.Schedule {
	last := make(map[string]int, len(rows))
	for i, row := range rows {
		last[row.Schedule().Key()] = i
	}
	out := make([]model.Schedule, 0, len(last))
	for i, row := range rows {
		if last[row.Schedule().Key()] == i {
			out = append(out, row.Schedule())
		}
	}
	return out
}
