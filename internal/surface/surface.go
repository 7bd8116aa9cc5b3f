package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sandeepkv93/medremind/internal/audio"
	"github.com/sandeepkv93/medremind/internal/bridge"
	"github.com/sandeepkv93/medremind/internal/config"
	"github.com/sandeepkv93/medremind/internal/debounce"
	"github.com/sandeepkv93/medremind/internal/delivery"
	"github.com/sandeepkv93/medremind/internal/medicines"
	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/metrics"
	"github.com/sandeepkv93/medremind/internal/model"
	"github.com/sandeepkv93/medremind/internal/rpc"
	"github.com/sandeepkv93/medremind/internal/scheduler"
	"github.com/sandeepkv93/medremind/internal/storage"
)

const (
	ModeDaemon = "daemon"
	ModeLocal  = "local"

	dialTimeout = 2 * time.Second
)

type Options struct {
	Book     *medicines.Book
	Store    *storage.ScheduleStore
	Notifier delivery.Notifier
	Player   audio.Player
	Clock    debounce.Clock
	Version  string
	// Offline skips dialing the daemon.
	Offline bool
	// Oneshot talks to the daemon over plain HTTP calls. The daemon does
	// not count such a surface as live and never pushes sounds to it.
	Oneshot bool
}

// Surface is the foreground execution context: the medicine list, the
// bridge that plays reminders, and a scheduler loop of its own over the
// shared store.
type Surface struct {
	cfg     config.Config
	log     *slog.Logger
	clock   debounce.Clock
	book    *medicines.Book
	store   *storage.ScheduleStore
	metrics *metrics.Metrics
	bridge  *bridge.Bridge
	backend bridge.Backend
	loop    *scheduler.Loop
	client  *rpc.Client
	mode    string
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("context", "foreground")
	clock := opts.Clock
	if clock == nil {
		clock = debounce.SystemClock
	}
	book := opts.Book
	if book == nil {
		book = medicines.NewBook(nil, cfg.MedicinesPath)
	}
	store := opts.Store
	if store == nil {
		store, _ = storage.Open(cfg.DatabaseDriver, cfg.DatabasePath, logger)
	}
	notifier := opts.Notifier
	if notifier == nil {
		if cfg.DesktopNotifications {
			notifier = delivery.NewDesktopNotifier()
		} else {
			notifier = delivery.NoopNotifier{}
		}
	}
	player := opts.Player
	if player == nil {
		player = audio.Fallback{audio.NewCommandPlayer(cfg.SoundCommand), audio.BellPlayer{W: os.Stderr}}
	}

	s := &Surface{
		cfg:     cfg,
		log:     logger,
		clock:   clock,
		book:    book,
		store:   store,
		metrics: metrics.New(),
		mode:    ModeLocal,
	}

	guard := debounce.NewGuard(clock)
	local := &bridge.LocalSurface{}
	coord := delivery.NewCoordinator(delivery.Options{
		Notifier: notifier,
		Surfaces: local,
		Guard:    guard,
		Windows:  cfg.Windows,
		Clock:    clock,
		Logger:   logger,
		Metrics:  s.metrics,
	})
	s.loop = scheduler.NewLoop(store, guard, coord, scheduler.Options{
		Context:  "foreground",
		Interval: cfg.CheckInterval,
		Windows:  cfg.Windows,
		Clock:    clock,
		Logger:   logger,
		Metrics:  s.metrics,
	})

	fallback := bridge.StoreBackend{Store: store, Loop: s.loop, Version: opts.Version}
	switch {
	case opts.Offline:
	case opts.Oneshot:
		s.client = s.dialHTTP(ctx)
	default:
		s.client = s.dial(ctx)
	}
	if s.client != nil {
		s.mode = ModeDaemon
		s.backend = bridge.Failover{Primary: s.client, Secondary: fallback, Unreachable: rpc.Unreachable, Logger: logger}
	} else {
		s.backend = fallback
	}

	s.bridge = bridge.New(bridge.Options{
		Player:        player,
		Backend:       s.backend,
		Book:          book,
		Notifier:      notifier,
		Guard:         guard,
		Windows:       cfg.Windows,
		Clock:         clock,
		Logger:        logger,
		Metrics:       s.metrics,
		RetryDelay:    cfg.SoundRetryDelay,
		FollowUpDelay: cfg.FollowUpDelay,
	})
	local.Bridge = s.bridge
	if dn, ok := notifier.(*delivery.DesktopNotifier); ok && dn.OnAction == nil {
		dn.Logger = logger
		dn.OnAction = s.notificationAction
	}
	return s
}

// notificationAction applies the action picked on a system notification.
func (s *Surface) notificationAction(action, tag string) {
	switch action {
	case delivery.ActionTaken:
		if _, err := s.bridge.TakeDose(context.Background(), tag); err != nil {
			s.log.Warn("taken from notification failed", "tag", tag, "err", err)
		}
	case delivery.ActionLater:
		s.bridge.Later(tag)
	}
}

func (s *Surface) dial(ctx context.Context) *rpc.Client {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	cli, err := rpc.Dial(dctx, s.cfg.RPCURL(), s.onPush, s.log)
	if err != nil {
		s.log.Info("daemon not reachable; running standalone", "url", s.cfg.RPCURL(), "err", err)
		return nil
	}
	return cli
}

// dialHTTP returns a push-less client, or nil when the daemon does not
// answer a ping.
func (s *Surface) dialHTTP(ctx context.Context) *rpc.Client {
	cli, err := rpc.DialHTTP(s.cfg.RPCURL(), s.log)
	if err != nil {
		s.log.Info("daemon url unusable; running standalone", "url", s.cfg.RPCURL(), "err", err)
		return nil
	}
	pctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if _, err := cli.Ping(pctx); err != nil {
		_ = cli.Close()
		s.log.Info("daemon not reachable; running standalone", "url", s.cfg.RPCURL(), "err", err)
		return nil
	}
	return cli
}

// onPush handles a message the daemon pushed to this surface.
func (s *Surface) onPush(msg message.Message) {
	if s.bridge == nil {
		return
	}
	if _, err := s.bridge.Handle(context.Background(), msg); err != nil {
		s.log.Warn("push not handled", "type", msg.Type(), "err", err)
	}
}

func (s *Surface) Mode() string { return s.mode }

func (s *Surface) Bridge() *bridge.Bridge { return s.bridge }

func (s *Surface) Book() *medicines.Book { return s.book }

// Sync arms a schedule for every untaken medicine after resetting the
// taken flags when the day has changed.
func (s *Surface) Sync(ctx context.Context) error {
	if _, err := s.book.ResetIfNewDay(s.clock.Now()); err != nil {
		return fmt.Errorf("reset medicines: %w", err)
	}
	meds, err := s.book.List()
	if err != nil {
		return err
	}
	return s.bridge.SyncSchedules(ctx, meds)
}

func (s *Surface) Close() error {
	s.loop.Stop()
	s.bridge.Close()
	var errs []error
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

func (s *Surface) Medicines() ([]model.Medicine, error) {
	return s.book.List()
}

// Add stores the medicine and arms its first reminder.
func (s *Surface) Add(ctx context.Context, name, clock string, daily bool) (model.Medicine, error) {
	med, err := s.book.Add(name, clock, daily)
	if err != nil {
		return model.Medicine{}, err
	}
	sched, err := model.ScheduleFor(med, s.clock.Now())
	if err != nil {
		return med, err
	}
	if err := s.backend.Register(ctx, sched); err != nil {
		return med, fmt.Errorf("register schedule: %w", err)
	}
	return med, nil
}

func (s *Surface) Take(ctx context.Context, idOrTag string) (model.Medicine, error) {
	return s.bridge.TakeDose(ctx, idOrTag)
}

func (s *Surface) Later(id string) {
	s.bridge.Later(id)
}

func (s *Surface) Remove(ctx context.Context, id string) error {
	if err := s.book.Remove(id); err != nil && !errors.Is(err, medicines.ErrNotFound) {
		return err
	}
	return s.backend.Remove(ctx, id)
}

func (s *Surface) RemoveAll(ctx context.Context) (int, error) {
	return s.backend.RemoveAll(ctx)
}

func (s *Surface) Test(ctx context.Context, id string) error {
	return s.bridge.TestReminder(ctx, id)
}

func (s *Surface) Check(ctx context.Context) (message.CheckResult, error) {
	return s.backend.Check(ctx)
}

func (s *Surface) Ping(ctx context.Context) (message.DebugResponse, error) {
	return s.backend.Ping(ctx)
}

func (s *Surface) Schedules(ctx context.Context) []model.Schedule {
	return s.store.Load(ctx)
}

func (s *Surface) Gesture(ctx context.Context) bool {
	return s.bridge.OnUserGesture(ctx)
}

func (s *Surface) SoundPending() bool {
	return s.bridge.SoundPending()
}
