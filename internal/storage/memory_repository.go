package storage

import (
	"context"
	"sync"
	"time"

	"github.com/sandeepkv93/medremind/internal/model"
)

// MemoryRepository backs a context whose database could not be opened.
type MemoryRepository struct {
	mu   sync.Mutex
	rows []ScheduleRow
	seq  int64
	now  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) ListSchedules(_ context.Context) ([]ScheduleRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ScheduleRow, len(r.rows))
	copy(out, r.rows)
	return out, nil
}

func (r *MemoryRepository) UpsertSchedule(_ context.Context, in model.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	found := false
	for _, row := range r.rows {
		if row.ID != in.ID {
			kept = append(kept, row)
			continue
		}
		if found {
			continue
		}
		found = true
		updated := rowFromSchedule(in, r.now())
		updated.Seq = row.Seq
		kept = append(kept, updated)
	}
	r.rows = kept
	if !found {
		r.insertLocked(in)
	}
	return nil
}

func (r *MemoryRepository) DeleteSchedule(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteLocked(id) == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MemoryRepository) DeleteAllSchedules(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.rows)
	r.rows = nil
	return n, nil
}

func (r *MemoryRepository) ReplaceSchedules(_ context.Context, in []model.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = nil
	for _, s := range in {
		r.insertLocked(s)
	}
	return nil
}

func (r *MemoryRepository) ApplyBatch(_ context.Context, batch Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for _, s := range batch.Rearm {
		for i := range r.rows {
			if r.rows[i].ID == s.ID && r.rows[i].Time == s.Time {
				r.rows[i].NextNotification = s.NextNotification
				r.rows[i].WrittenAt = now
			}
		}
	}
	for _, id := range batch.Retire {
		r.deleteLocked(id)
	}
	return nil
}

func (r *MemoryRepository) insertLocked(in model.Schedule) {
	r.seq++
	row := rowFromSchedule(in, r.now())
	row.Seq = r.seq
	r.rows = append(r.rows, row)
}

func (r *MemoryRepository) deleteLocked(id string) int {
	kept := r.rows[:0]
	removed := 0
	for _, row := range r.rows {
		if row.ID == id {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return removed
}
