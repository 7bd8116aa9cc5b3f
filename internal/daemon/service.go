package daemon

import (
	"context"
	"time"

	"github.com/sandeepkv93/medremind/internal/delivery"
	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/model"
	"github.com/sandeepkv93/medremind/internal/scheduler"
	"github.com/sandeepkv93/medremind/internal/storage"
)

// service answers surface requests against the background context's
// store, loop and coordinator.
type service struct {
	store   *storage.ScheduleStore
	loop    *scheduler.Loop
	coord   *delivery.Coordinator
	version string
	now     func() time.Time
}

func (s *service) ShowNow(ctx context.Context, ref message.MedicineRef) bool {
	return s.coord.ShowNow(ctx, ref)
}

// Register stores the schedule and wakes the loop so a dose that is
// already due fires without waiting for the next tick.
func (s *service) Register(ctx context.Context, sched model.Schedule) error {
	if _, err := s.store.Register(ctx, sched); err != nil {
		return err
	}
	s.loop.CheckNow()
	return nil
}

func (s *service) Remove(ctx context.Context, id string) error {
	return s.store.RemoveByID(ctx, id)
}

func (s *service) RemoveAll(ctx context.Context) (int, error) {
	return s.store.RemoveAll(ctx)
}

func (s *service) Check(ctx context.Context) message.CheckResult {
	return s.loop.Evaluate(ctx).CheckResult()
}

func (s *service) Ping(ctx context.Context) message.DebugResponse {
	return message.DebugResponse{
		Message:   "background context alive",
		Time:      s.now().UnixMilli(),
		Schedules: len(s.store.Load(ctx)),
		Version:   s.version,
	}
}
