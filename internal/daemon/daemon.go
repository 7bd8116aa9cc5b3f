package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sandeepkv93/medremind/internal/config"
	"github.com/sandeepkv93/medremind/internal/debounce"
	"github.com/sandeepkv93/medremind/internal/delivery"
	"github.com/sandeepkv93/medremind/internal/metrics"
	"github.com/sandeepkv93/medremind/internal/rpc"
	"github.com/sandeepkv93/medremind/internal/scheduler"
	"github.com/sandeepkv93/medremind/internal/storage"
)

const (
	shutdownTimeout = 5 * time.Second
	pruneInterval   = 10 * time.Minute
)

// Options overrides the parts of the daemon tests need to control.
type Options struct {
	Store    *storage.ScheduleStore
	Notifier delivery.Notifier
	Launcher delivery.Launcher
	Clock    debounce.Clock
	Version  string
}

// Daemon is the background execution context: it owns the scheduler
// loop and serves surfaces over HTTP and websocket JSON-RPC.
type Daemon struct {
	cfg     config.Config
	log     *slog.Logger
	clock   debounce.Clock
	store   *storage.ScheduleStore
	guard   *debounce.Guard
	metrics *metrics.Metrics
	hub     *rpc.Hub
	coord   *delivery.Coordinator
	loop    *scheduler.Loop
	rpc     *rpc.Server
	handler http.Handler
}

func New(cfg config.Config, logger *slog.Logger, opts Options) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("context", "background")
	clock := opts.Clock
	if clock == nil {
		clock = debounce.SystemClock
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
	launcher := opts.Launcher
	if launcher == nil {
		launcher = delivery.NewCommandLauncher(cfg.LaunchCommand)
	}
	if dn, ok := notifier.(*delivery.DesktopNotifier); ok && dn.OnAction == nil {
		dn.Logger = logger
		dn.OnAction = delivery.LaunchOnTaken(launcher, logger)
	}

	m := metrics.New()
	guard := debounce.NewGuard(clock)
	hub := rpc.NewHub(logger, m)
	coord := delivery.NewCoordinator(delivery.Options{
		Notifier: notifier,
		Surfaces: hub,
		Launcher: launcher,
		Guard:    guard,
		Windows:  cfg.Windows,
		Clock:    clock,
		Logger:   logger,
		Metrics:  m,
	})
	loop := scheduler.NewLoop(store, guard, coord, scheduler.Options{
		Context:  "background",
		Interval: cfg.CheckInterval,
		Windows:  cfg.Windows,
		Clock:    clock,
		Logger:   logger,
		Metrics:  m,
	})
	svc := &service{store: store, loop: loop, coord: coord, version: opts.Version, now: clock.Now}
	srv := rpc.NewServer(svc, hub, logger)

	return &Daemon{
		cfg:     cfg,
		log:     logger,
		clock:   clock,
		store:   store,
		guard:   guard,
		metrics: m,
		hub:     hub,
		coord:   coord,
		loop:    loop,
		rpc:     srv,
		handler: rpc.NewRouter(rpc.RouterOptions{Server: srv, Metrics: m.Handler(), Version: opts.Version}),
	}
}

func (d *Daemon) Handler() http.Handler { return d.handler }

func (d *Daemon) Loop() *scheduler.Loop { return d.loop }

func (d *Daemon) Hub() *rpc.Hub { return d.hub }

// Run serves until ctx is cancelled, then shuts down the listener, the
// loop and the store.
func (d *Daemon) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.cfg.ListenAddr, err)
	}
	return d.Serve(ctx, ln)
}

func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           d.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	d.loop.Start(ctx)
	go d.pruneGuard(ctx)

	errCh := make(chan error, 1)
	go func() {
		d.log.Info("daemon listening", "addr", ln.Addr().String())
		errCh <- httpSrv.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		d.log.Warn("http shutdown", "err", err)
	}
	d.loop.Stop()
	if err := d.rpc.Close(); err != nil {
		d.log.Warn("rpc bridge close", "err", err)
	}
	if err := d.store.Close(); err != nil {
		d.log.Warn("schedule store close", "err", err)
	}
	d.log.Info("daemon stopped")
	return serveErr
}

// pruneGuard drops debounce stamps older than any window so a long-lived
// daemon does not accumulate one key per delivered second.
func (d *Daemon) pruneGuard(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.guard.Prune(d.cfg.Windows.Longest()); n > 0 {
				d.log.Debug("pruned debounce stamps", "removed", n)
			}
		}
	}
}
