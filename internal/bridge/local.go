package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/model"
	"github.com/sandeepkv93/medremind/internal/scheduler"
	"github.com/sandeepkv93/medremind/internal/storage"
)

var ErrLocalOnly = errors.New("bridge: no daemon connected")

// LocalSurface lets this process's own scheduler deliver sound to its
// bridge.
type LocalSurface struct {
	Bridge *Bridge
}

func (LocalSurface) ActiveSurfaces() int { return 1 }

func (l LocalSurface) SendPlaySound(_ context.Context, msg message.PlaySound) (int, error) {
	go l.Bridge.PlaySound(context.Background(), msg)
	return 1, nil
}

// StoreBackend serves a surface that could not reach the daemon by
// writing the shared schedule store directly.
type StoreBackend struct {
	Store   *storage.ScheduleStore
	Loop    *scheduler.Loop
	Version string
}

func (s StoreBackend) Register(ctx context.Context, sched model.Schedule) error {
	if _, err := s.Store.Register(ctx, sched); err != nil {
		return err
	}
	if s.Loop != nil {
		s.Loop.CheckNow()
	}
	return nil
}

func (s StoreBackend) Remove(ctx context.Context, id string) error {
	return s.Store.RemoveByID(ctx, id)
}

func (s StoreBackend) RemoveAll(ctx context.Context) (int, error) {
	return s.Store.RemoveAll(ctx)
}

func (s StoreBackend) Check(ctx context.Context) (message.CheckResult, error) {
	if s.Loop == nil {
		return message.CheckResult{}, fmt.Errorf("%w: no local scheduler", ErrLocalOnly)
	}
	return s.Loop.Evaluate(ctx).CheckResult(), nil
}

func (s StoreBackend) ShowNow(context.Context, message.MedicineRef) (bool, error) {
	return false, ErrLocalOnly
}

func (s StoreBackend) Ping(ctx context.Context) (message.DebugResponse, error) {
	return message.DebugResponse{
		Message:   "local store",
		Schedules: len(s.Store.Load(ctx)),
		Version:   s.Version,
	}, nil
}
