package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/medremind/internal/audio"
	"github.com/sandeepkv93/medremind/internal/debounce"
	"github.com/sandeepkv93/medremind/internal/delivery"
	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/metrics"
	"github.com/sandeepkv93/medremind/internal/model"
)

var ErrUnhandled = errors.New("bridge: unhandled message")

// Backend is the surface's channel to whichever context owns schedules.
type Backend interface {
	Register(ctx context.Context, s model.Schedule) error
	Remove(ctx context.Context, id string) error
	RemoveAll(ctx context.Context) (int, error)
	Check(ctx context.Context) (message.CheckResult, error)
	ShowNow(ctx context.Context, ref message.MedicineRef) (bool, error)
	Ping(ctx context.Context) (message.DebugResponse, error)
}

type Book interface {
	List() ([]model.Medicine, error)
	Get(id string) (model.Medicine, error)
	MarkTaken(id string) (model.Medicine, error)
}

// Alert asks the surface to show an in-page reminder.
type Alert struct {
	Medicine model.Medicine
	At       time.Time
	FollowUp bool
}

type Options struct {
	Player        audio.Player
	Backend       Backend
	Book          Book
	Notifier      delivery.Notifier
	Guard         *debounce.Guard
	Windows       debounce.Windows
	Clock         debounce.Clock
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	RetryDelay    time.Duration
	FollowUpDelay time.Duration
	AlertBuffer   int
}

type Bridge struct {
	player        audio.Player
	backend       Backend
	book          Book
	notifier      delivery.Notifier
	guard         *debounce.Guard
	windows       debounce.Windows
	clock         debounce.Clock
	log           *slog.Logger
	metrics       *metrics.Metrics
	retryDelay    time.Duration
	followUpDelay time.Duration

	mu           sync.Mutex
	pendingSound bool
	followUps    map[string]*time.Timer
	alerts       chan Alert
	closed       bool
}

func New(opts Options) *Bridge {
	b := &Bridge{
		player:        opts.Player,
		backend:       opts.Backend,
		book:          opts.Book,
		notifier:      opts.Notifier,
		guard:         opts.Guard,
		windows:       opts.Windows,
		clock:         opts.Clock,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		retryDelay:    opts.RetryDelay,
		followUpDelay: opts.FollowUpDelay,
		followUps:     make(map[string]*time.Timer),
	}
	if b.player == nil {
		b.player = audio.Fallback{}
	}
	if b.notifier == nil {
		b.notifier = delivery.NoopNotifier{}
	}
	if b.clock == nil {
		b.clock = debounce.SystemClock
	}
	if b.guard == nil {
		b.guard = debounce.NewGuard(b.clock)
	}
	if b.windows == (debounce.Windows{}) {
		b.windows = debounce.DefaultWindows()
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	if b.retryDelay <= 0 {
		b.retryDelay = 500 * time.Millisecond
	}
	size := opts.AlertBuffer
	if size <= 0 {
		size = 16
	}
	b.alerts = make(chan Alert, size)
	return b
}

func (b *Bridge) Alerts() <-chan Alert {
	return b.alerts
}

func (b *Bridge) Permission() delivery.Permission {
	return b.notifier.Permission()
}

// Handle dispatches one message. The reply is nil for fire-and-forget
// variants.
func (b *Bridge) Handle(ctx context.Context, msg message.Message) (message.Message, error) {
	switch v := msg.(type) {
	case message.ScheduleNotification:
		b.showLocal(ctx, v.Medicine)
		return nil, nil
	case message.RegisterSchedule:
		return nil, b.backend.Register(ctx, v.Medicine.Schedule())
	case message.RemoveSchedule:
		return nil, b.backend.Remove(ctx, v.MedicineID)
	case message.RemoveAllSchedules:
		_, err := b.backend.RemoveAll(ctx)
		return nil, err
	case message.CheckSchedules:
		res, err := b.backend.Check(ctx)
		if err != nil {
			return nil, err
		}
		return res, nil
	case message.CheckResult:
		b.log.Debug("check result", "shown", v.NotificationShown, "schedules", v.Schedules)
		return nil, nil
	case message.PlaySound:
		b.PlaySound(ctx, v)
		return nil, nil
	case message.DebugTest:
		resp, err := b.backend.Ping(ctx)
		if err != nil {
			b.log.Warn("debug ping failed; answering locally", "err", err)
			return message.DebugResponse{Message: "surface alive; backend unreachable", Time: b.clock.Now().UnixMilli()}, nil
		}
		return resp, nil
	case message.DebugResponse:
		b.log.Info("debug response", "message", v.Message, "schedules", v.Schedules)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnhandled, msg)
	}
}

// PlaySound plays the reminder sound at most once per medicine and
// second, and raises the in-page alert for the medicine at most once per
// re-notify floor. Pushes from the daemon and from this surface's own
// loop carry different timestamps for the same dose.
func (b *Bridge) PlaySound(ctx context.Context, p message.PlaySound) bool {
	at := b.clock.Now()
	if p.Time > 0 {
		at = time.UnixMilli(p.Time)
	}
	if !b.guard.TryAdmit(debounce.SoundKey(p.MedicineID, at), b.windows.Sound) {
		b.metrics.Suppressed(metrics.ReasonSoundDuplicate)
		return false
	}
	if p.MedicineID != "" && b.guard.TryAdmit(debounce.AlertKey(p.MedicineID), b.windows.MedicineFloor) {
		b.raiseAlert(p.MedicineID, false)
	}
	if !b.guard.TryAdmit(debounce.KeySound, b.windows.Sound) {
		b.metrics.Suppressed(metrics.ReasonSoundDuplicate)
		return false
	}
	return b.playWithRetry(ctx)
}

func (b *Bridge) playWithRetry(ctx context.Context) bool {
	err := b.player.Play(ctx)
	if err == nil {
		return true
	}
	b.log.Debug("sound playback failed; retrying", "err", err)

	timer := time.NewTimer(b.retryDelay)
	select {
	case <-timer.C:
		if err = b.player.Play(ctx); err == nil {
			return true
		}
	case <-ctx.Done():
		timer.Stop()
		err = ctx.Err()
	}
	b.mu.Lock()
	b.pendingSound = true
	b.mu.Unlock()
	b.log.Info("sound pending until next interaction", "err", err)
	return false
}

// OnUserGesture plays a sound that failed earlier, once.
func (b *Bridge) OnUserGesture(ctx context.Context) bool {
	b.mu.Lock()
	pending := b.pendingSound
	b.pendingSound = false
	b.mu.Unlock()
	if !pending {
		return false
	}
	if err := b.player.Play(ctx); err != nil {
		b.log.Warn("pending sound failed", "err", err)
		return false
	}
	return true
}

func (b *Bridge) SoundPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingSound
}

// TakeDose marks the medicine taken and retires its schedule when it is
// a one-shot. idOrTag may be a bare id or a notification tag.
func (b *Bridge) TakeDose(ctx context.Context, idOrTag string) (model.Medicine, error) {
	id := model.MedicineIDFromTag(idOrTag)
	med, err := b.book.MarkTaken(id)
	if err != nil {
		return model.Medicine{}, err
	}
	b.cancelFollowUp(id)
	if !med.Daily {
		if err := b.backend.Remove(ctx, id); err != nil {
			return med, fmt.Errorf("remove schedule %s: %w", id, err)
		}
	}
	b.log.Info("dose taken", "medicine_id", id, "daily", med.Daily)
	return med, nil
}

// Later dismisses the alert; the follow-up reminder stays armed.
func (b *Bridge) Later(id string) {
	b.log.Debug("reminder postponed", "medicine_id", model.MedicineIDFromTag(id))
}

// TestReminder shows an immediate reminder through the backend, falling
// back to a local one.
func (b *Bridge) TestReminder(ctx context.Context, id string) error {
	med, err := b.book.Get(id)
	if err != nil {
		return err
	}
	ref := message.MedicineRef{ID: med.ID, Name: med.Name, Tag: med.Tag()}
	shown, err := b.backend.ShowNow(ctx, ref)
	if err != nil || !shown {
		b.showLocal(ctx, ref)
	}
	return nil
}

// Replay performs what a launch URL asked for.
func (b *Bridge) Replay(ctx context.Context, intent message.LaunchIntent) error {
	if intent.Action == message.ActionTaken {
		if _, err := b.TakeDose(ctx, intent.MedicineID); err != nil {
			return err
		}
	}
	if intent.Sound {
		at := intent.Time
		if at.IsZero() {
			at = b.clock.Now()
		}
		b.PlaySound(ctx, message.PlaySound{MedicineID: intent.MedicineID, Time: at.UnixMilli()})
	}
	return nil
}

// SyncSchedules arms every untaken medicine and retires taken one-shots.
func (b *Bridge) SyncSchedules(ctx context.Context, meds []model.Medicine) error {
	now := b.clock.Now()
	var errs []error
	for _, m := range meds {
		if m.Taken {
			if !m.Daily {
				if err := b.backend.Remove(ctx, m.ID); err != nil {
					errs = append(errs, fmt.Errorf("remove %s: %w", m.ID, err))
				}
			}
			continue
		}
		s, err := model.ScheduleFor(m, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: %w", m.ID, err))
			continue
		}
		if err := b.backend.Register(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", m.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, t := range b.followUps {
		t.Stop()
		delete(b.followUps, id)
	}
	close(b.alerts)
}

func (b *Bridge) showLocal(ctx context.Context, ref message.MedicineRef) {
	if b.notifier.Permission() == delivery.PermissionGranted &&
		b.guard.TryAdmit(debounce.DisplayKey(ref.ID), b.windows.MedicineImmediate) {
		n := delivery.ReminderNotification(model.Schedule{ID: ref.ID, Name: ref.Name})
		n.Body = "Take " + ref.Name
		if ref.Tag != "" {
			n.Tag = ref.Tag
		}
		if err := b.notifier.Show(ctx, n); err != nil {
			b.log.Warn("local notification failed", "medicine_id", ref.ID, "err", err)
		}
	}
	b.PlaySound(ctx, message.PlaySound{MedicineID: ref.ID, Time: b.clock.Now().UnixMilli()})
}

func (b *Bridge) raiseAlert(id string, followUp bool) {
	med, err := b.book.Get(id)
	if err != nil {
		b.log.Debug("alert for unknown medicine", "medicine_id", id, "err", err)
		return
	}
	if med.Taken {
		return
	}
	b.emit(Alert{Medicine: med, At: b.clock.Now(), FollowUp: followUp})
	if !followUp {
		b.armFollowUp(med.ID)
	}
}

func (b *Bridge) emit(a Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.alerts <- a:
	default:
		b.log.Warn("alert dropped; surface not draining", "medicine_id", a.Medicine.ID)
	}
}

func (b *Bridge) armFollowUp(id string) {
	if b.followUpDelay <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if _, armed := b.followUps[id]; armed {
		return
	}
	b.followUps[id] = time.AfterFunc(b.followUpDelay, func() { b.followUp(id) })
}

func (b *Bridge) cancelFollowUp(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.followUps[id]; ok {
		t.Stop()
		delete(b.followUps, id)
	}
}

// followUp re-reminds about a dose that is still untaken. It is bound by
// the immediate-duplicate window only, not the per-medicine floor.
func (b *Bridge) followUp(id string) {
	b.mu.Lock()
	delete(b.followUps, id)
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	med, err := b.book.Get(id)
	if err != nil || med.Taken {
		return
	}
	if b.notifier.Permission() == delivery.PermissionGranted &&
		b.guard.TryAdmit(debounce.DisplayKey(id), b.windows.MedicineImmediate) {
		if err := b.notifier.Show(context.Background(), delivery.FollowUpNotification(med)); err != nil {
			b.log.Warn("follow-up notification failed", "medicine_id", id, "err", err)
		}
	}
	b.log.Info("missed dose follow-up", "medicine_id", id)
	b.raiseAlert(id, true)
}
