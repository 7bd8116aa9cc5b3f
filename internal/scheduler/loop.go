package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandeepkv93/medremind/internal/debounce"
	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/metrics"
	"github.com/sandeepkv93/medremind/internal/model"
	"github.com/sandeepkv93/medremind/internal/storage"
)

const DefaultInterval = 60 * time.Second

type Store interface {
	Load(ctx context.Context) []model.Schedule
	Apply(ctx context.Context, batch storage.Batch) error
}

type Deliverer interface {
	Deliver(ctx context.Context, s model.Schedule) bool
	EnsureSurface(ctx context.Context, s model.Schedule)
}

type Options struct {
	// Context names the execution context in logs and metrics.
	Context  string
	Interval time.Duration
	Windows  debounce.Windows
	Clock    debounce.Clock
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	// Results buffers pass results for observers; full buffers drop.
	Results int
}

type PassResult struct {
	At        time.Time
	Schedules int
	Skipped   bool
	Delivered []string
	Failed    []string
	Deferred  []string
	Invalid   []string
	Rearmed   []string
	Retired   []string
	// NextDue is the earliest pending occurrence after the pass, if any.
	NextDue time.Time
}

func (r PassResult) NotificationShown() bool {
	return len(r.Delivered) > 0
}

func (r PassResult) CheckResult() message.CheckResult {
	return message.CheckResult{
		Time:              r.At.UnixMilli(),
		NotificationShown: r.NotificationShown(),
		Schedules:         r.Schedules,
		Skipped:           r.Skipped,
	}
}

type Loop struct {
	store   Store
	guard   *debounce.Guard
	deliver Deliverer
	opts    Options

	passMu sync.Mutex

	mu      sync.Mutex
	out     chan PassResult
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	passes  uint64
	dropped uint64
}

func NewLoop(store Store, guard *debounce.Guard, deliver Deliverer, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = debounce.SystemClock
	}
	if opts.Windows == (debounce.Windows{}) {
		opts.Windows = debounce.DefaultWindows()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Context == "" {
		opts.Context = "background"
	}
	if opts.Results <= 0 {
		opts.Results = 1
	}
	if guard == nil {
		guard = debounce.NewGuard(opts.Clock)
	}
	return &Loop{
		store:   store,
		guard:   guard,
		deliver: deliver,
		opts:    opts,
		out:     make(chan PassResult, opts.Results),
		wakeup:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (l *Loop) Results() <-chan PassResult {
	return l.out
}

// Start runs an immediate pass, then one per interval or sooner when a
// schedule comes due first.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true
	go l.run(ctx)
}

func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	close(l.stopCh)
	l.mu.Unlock()
	<-l.doneCh
}

// CheckNow asks the running loop for a pass without waiting for it.
func (l *Loop) CheckNow() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

func (l *Loop) Passes() uint64 {
	return atomic.LoadUint64(&l.passes)
}

func (l *Loop) Dropped() uint64 {
	return atomic.LoadUint64(&l.dropped)
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.doneCh)
	defer close(l.out)

	var timer *time.Timer
	for {
		res := l.Evaluate(ctx)
		select {
		case l.out <- res:
		default:
			atomic.AddUint64(&l.dropped, 1)
		}

		timer = resetTimer(timer, l.nextWait(res))
		select {
		case <-timer.C:
		case <-l.wakeup:
		case <-l.stopCh:
			stopTimer(timer)
			return
		case <-ctx.Done():
			stopTimer(timer)
			return
		}
	}
}

func (l *Loop) nextWait(res PassResult) time.Duration {
	wait := l.opts.Interval
	if res.Skipped && l.opts.Windows.Notification < wait {
		return l.opts.Windows.Notification
	}
	if res.NextDue.IsZero() {
		return wait
	}
	until := res.NextDue.Sub(l.opts.Clock.Now())
	if until < 0 {
		until = 0
	}
	if until < wait {
		wait = until
	}
	return wait
}

// Evaluate runs one pass over the stored schedules. Passes are
// serialized within a loop.
func (l *Loop) Evaluate(ctx context.Context) PassResult {
	l.passMu.Lock()
	defer l.passMu.Unlock()
	atomic.AddUint64(&l.passes, 1)

	now := l.opts.Clock.Now()
	res := PassResult{At: now}
	log := l.opts.Logger.With("context", l.opts.Context)

	schedules := l.store.Load(ctx)
	res.Schedules = len(schedules)
	l.opts.Metrics.SetSchedules(len(schedules))
	if len(schedules) == 0 {
		l.opts.Metrics.Pass(l.opts.Context, "empty")
		return res
	}

	if !l.guard.Ready(debounce.KeyNotification, l.opts.Windows.Notification) {
		res.Skipped = true
		l.opts.Metrics.Pass(l.opts.Context, "skipped")
		l.opts.Metrics.Suppressed(metrics.ReasonPassDebounced)
		log.Debug("scheduler pass skipped; notification window active")
		return res
	}

	var (
		batch storage.Batch
		last  model.Schedule
	)
	for _, s := range schedules {
		tod, err := model.ParseTimeOfDay(s.Time)
		if err != nil {
			res.Invalid = append(res.Invalid, s.ID)
			l.opts.Metrics.Suppressed(metrics.ReasonInvalidTime)
			log.Warn("schedule has invalid time; never due", "medicine_id", s.ID, "time", s.Time)
			continue
		}
		if !s.Due(now) {
			res.NextDue = earliest(res.NextDue, s.NextNotification)
			continue
		}
		if !l.guard.TryAdmit(debounce.MedicineKey(s.ID), l.opts.Windows.MedicineFloor) {
			res.Deferred = append(res.Deferred, s.ID)
			l.opts.Metrics.Suppressed(metrics.ReasonMedicineFloor)
			log.Debug("schedule due but inside per-medicine floor", "medicine_id", s.ID)
			continue
		}
		l.guard.Stamp(debounce.KeyNotification)

		if !l.deliver.Deliver(ctx, s) {
			res.Failed = append(res.Failed, s.ID)
			log.Warn("delivery reached no one; schedule stays due", "medicine_id", s.ID)
			continue
		}
		res.Delivered = append(res.Delivered, s.ID)
		last = s

		if !s.Daily {
			batch.Retire = append(batch.Retire, s.ID)
			res.Retired = append(res.Retired, s.ID)
			continue
		}
		next, err := tod.NextAfter(now)
		if err != nil {
			log.Error("re-arm failed", "medicine_id", s.ID, "err", err)
			continue
		}
		s.NextNotification = next
		batch.Rearm = append(batch.Rearm, s)
		res.Rearmed = append(res.Rearmed, s.ID)
		res.NextDue = earliest(res.NextDue, next)
	}

	if err := l.store.Apply(ctx, batch); err != nil {
		log.Error("schedule write-back failed", "err", err)
	}

	outcome := "idle"
	if len(res.Delivered) > 0 {
		outcome = "delivered"
		log.Info("scheduler pass delivered", "delivered", res.Delivered, "rearmed", res.Rearmed, "retired", res.Retired)
		l.deliver.EnsureSurface(ctx, last)
	}
	l.opts.Metrics.Pass(l.opts.Context, outcome)
	return res
}

func earliest(cur, candidate time.Time) time.Time {
	if cur.IsZero() || candidate.Before(cur) {
		return candidate
	}
	return cur
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
