package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/sandeepkv93/medremind/internal/debounce"
	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/metrics"
	"github.com/sandeepkv93/medremind/internal/model"
)

// SurfaceDirectory reaches the foreground surfaces attached to this
// context.
type SurfaceDirectory interface {
	ActiveSurfaces() int
	SendPlaySound(ctx context.Context, msg message.PlaySound) (int, error)
}

type Options struct {
	Notifier Notifier
	Surfaces SurfaceDirectory
	Launcher Launcher
	Guard    *debounce.Guard
	Windows  debounce.Windows
	Clock    debounce.Clock
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Coordinator turns one due schedule into a system notification, an
// audio request to a live surface, or a request to open a new surface.
type Coordinator struct {
	notifier Notifier
	surfaces SurfaceDirectory
	launcher Launcher
	guard    *debounce.Guard
	windows  debounce.Windows
	clock    debounce.Clock
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewCoordinator(opts Options) *Coordinator {
	c := &Coordinator{
		notifier: opts.Notifier,
		surfaces: opts.Surfaces,
		launcher: opts.Launcher,
		guard:    opts.Guard,
		windows:  opts.Windows,
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
	if c.notifier == nil {
		c.notifier = NoopNotifier{}
	}
	if c.clock == nil {
		c.clock = debounce.SystemClock
	}
	if c.guard == nil {
		c.guard = debounce.NewGuard(c.clock)
	}
	if c.windows == (debounce.Windows{}) {
		c.windows = debounce.DefaultWindows()
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Deliver reports whether any path reached the user.
func (c *Coordinator) Deliver(ctx context.Context, s model.Schedule) bool {
	displayed := c.display(ctx, ReminderNotification(s), s.ID)
	now := c.clock.Now()

	messaged, launched := false, false
	if c.activeSurfaces() > 0 {
		messaged = c.message(ctx, s.ID, now)
		if !messaged {
			launched = c.launch(ctx, s.ID, now)
		}
	} else {
		launched = c.launch(ctx, s.ID, now)
	}

	notified := displayed || messaged || launched
	c.log.Debug("delivery attempted",
		"medicine_id", s.ID, "displayed", displayed, "messaged", messaged, "launched", launched, "notified", notified)
	if !notified {
		c.metrics.Suppressed(metrics.ReasonDeliveryFailed)
	}
	return notified
}

// EnsureSurface opens a surface for s when none is attached. It shares
// the launch window with Deliver, so a launch made during the pass is not
// repeated.
func (c *Coordinator) EnsureSurface(ctx context.Context, s model.Schedule) {
	if c.activeSurfaces() > 0 {
		return
	}
	c.launch(ctx, s.ID, c.clock.Now())
}

// ShowNow displays an immediate reminder for ref and asks surfaces to
// play the sound. It does not touch the schedule.
func (c *Coordinator) ShowNow(ctx context.Context, ref message.MedicineRef) bool {
	s := model.Schedule{ID: ref.ID, Name: ref.Name}
	n := ReminderNotification(s)
	n.Body = "Take " + displayName(ref.Name, ref.ID)
	if ref.Tag != "" {
		n.Tag = ref.Tag
	}
	displayed := c.display(ctx, n, ref.ID)
	messaged := false
	if c.activeSurfaces() > 0 {
		messaged = c.message(ctx, ref.ID, c.clock.Now())
	}
	return displayed || messaged
}

func (c *Coordinator) display(ctx context.Context, n Notification, id string) bool {
	if c.notifier.Permission() != PermissionGranted {
		c.metrics.Suppressed(metrics.ReasonPermissionDenied)
		c.log.Debug("notification permission not granted; relying on audio", "medicine_id", id)
		return false
	}
	if !c.guard.TryAdmit(debounce.DisplayKey(id), c.windows.MedicineImmediate) {
		c.metrics.Suppressed(metrics.ReasonDisplayDuplicate)
		return true
	}
	if err := c.notifier.Show(ctx, n); err != nil {
		c.log.Warn("show notification failed", "medicine_id", id, "tag", n.Tag, "err", err)
		c.guard.Forget(debounce.DisplayKey(id))
		return false
	}
	c.metrics.Delivered(metrics.PathDisplay)
	return true
}

// message reports whether the live surfaces have been asked to play the
// sound for id. A send debounced by an earlier one for the same medicine
// counts as asked; it never leads to a second surface being opened.
func (c *Coordinator) message(ctx context.Context, id string, now time.Time) bool {
	key := debounce.MessageKey(id)
	if !c.guard.TryAdmit(key, c.windows.Message) {
		c.metrics.Suppressed(metrics.ReasonMessageDebounced)
		return true
	}
	n, err := c.surfaces.SendPlaySound(ctx, message.PlaySound{MedicineID: id, Time: now.UnixMilli()})
	if err != nil {
		c.log.Warn("play sound message failed", "medicine_id", id, "err", err)
	}
	if n == 0 {
		c.guard.Forget(key)
		return false
	}
	c.metrics.Delivered(metrics.PathMessage)
	return true
}

func (c *Coordinator) launch(ctx context.Context, id string, now time.Time) bool {
	if c.launcher == nil {
		return false
	}
	if !c.guard.TryAdmit(debounce.KeyLaunch, c.windows.Launch) {
		c.metrics.Suppressed(metrics.ReasonLaunchDebounced)
		return false
	}
	url := message.RelaunchURL(id, now)
	if err := c.launcher.Launch(ctx, url); err != nil {
		c.log.Warn("surface launch failed", "medicine_id", id, "url", url, "err", err)
		c.guard.Forget(debounce.KeyLaunch)
		return false
	}
	c.log.Info("launched surface", "medicine_id", id, "url", url)
	c.metrics.Delivered(metrics.PathLaunch)
	return true
}

func (c *Coordinator) activeSurfaces() int {
	if c.surfaces == nil {
		return 0
	}
	return c.surfaces.ActiveSurfaces()
}
