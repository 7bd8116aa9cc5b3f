package bridge

import (
	"context"
	"log/slog"

	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/model"
)

// Failover sends each request to Primary and repeats it on Secondary when
// Unreachable reports that Primary could not be reached. Errors Primary
// returned after handling the request are passed through.
type Failover struct {
	Primary     Backend
	Secondary   Backend
	Unreachable func(error) bool
	Logger      *slog.Logger
}

func (f Failover) Register(ctx context.Context, s model.Schedule) error {
	return failover(f, func(b Backend) error { return b.Register(ctx, s) })
}

func (f Failover) Remove(ctx context.Context, id string) error {
	return failover(f, func(b Backend) error { return b.Remove(ctx, id) })
}

func (f Failover) RemoveAll(ctx context.Context) (int, error) {
	var n int
	err := failover(f, func(b Backend) (err error) {
		n, err = b.RemoveAll(ctx)
		return err
	})
	return n, err
}

func (f Failover) Check(ctx context.Context) (message.CheckResult, error) {
	var res message.CheckResult
	err := failover(f, func(b Backend) (err error) {
		res, err = b.Check(ctx)
		return err
	})
	return res, err
}

func (f Failover) ShowNow(ctx context.Context, ref message.MedicineRef) (bool, error) {
	var ok bool
	err := failover(f, func(b Backend) (err error) {
		ok, err = b.ShowNow(ctx, ref)
		return err
	})
	return ok, err
}

func (f Failover) Ping(ctx context.Context) (message.DebugResponse, error) {
	var res message.DebugResponse
	err := failover(f, func(b Backend) (err error) {
		res, err = b.Ping(ctx)
		return err
	})
	return res, err
}

func failover(f Failover, call func(Backend) error) error {
	if f.Primary == nil {
		return call(f.Secondary)
	}
	err := call(f.Primary)
	if err == nil || f.Secondary == nil {
		return err
	}
	if f.Unreachable != nil && !f.Unreachable(err) {
		return err
	}
	if f.Logger != nil {
		f.Logger.Warn("daemon unreachable; using local store", "err", err)
	}
	return call(f.Secondary)
}
