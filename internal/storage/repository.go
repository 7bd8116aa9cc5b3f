package storage

import (
	"context"
	"errors"

	"github.com/sandeepkv93/medremind/internal/model"
)

var ErrNotFound = errors.New("storage: not found")

type ScheduleRepository interface {
	ListSchedules(ctx context.Context) ([]ScheduleRow, error)
	UpsertSchedule(ctx context.Context, in model.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	DeleteAllSchedules(ctx context.Context) (int, error)
	ReplaceSchedules(ctx context.Context, in []model.Schedule) error
	ApplyBatch(ctx context.Context, batch Batch) error
	Close() error
}
