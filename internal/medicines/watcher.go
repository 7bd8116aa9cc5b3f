package medicines

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports writes to the medicine file made by other processes.
type Watcher struct {
	fsw     *fsnotify.Watcher
	path    string
	delay   time.Duration
	log     *slog.Logger
	changes chan struct{}
}

// Watch observes the directory holding path, since the book replaces the
// file on every save.
func Watch(ctx context.Context, path string, delay time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if delay <= 0 {
		delay = 150 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		fsw:     fsw,
		path:    filepath.Clean(path),
		delay:   delay,
		log:     logger,
		changes: make(chan struct{}, 1),
	}
	go w.run(ctx)
	return w, nil
}

// Changes carries at most one pending notification.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.changes)
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			pending = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("medicine watcher error", "path", w.path, "err", err)
		case <-pending:
			pending = nil
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}
