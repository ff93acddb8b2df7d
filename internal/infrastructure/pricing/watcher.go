package pricing

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// ReloadHook is called after every successful reload with the new item count.
type ReloadHook func(ctx context.Context, items int)

// Watcher reloads a PriceBook whenever its backing file changes.  The parent
// directory is watched so that editors replacing the file by rename are seen.
type Watcher struct {
	book     *PriceBook
	path     string
	debounce time.Duration
	logger   logging.Logger

	mu    sync.Mutex
	hooks []ReloadHook

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// WatcherOption customises a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce coalesces bursts of events into one reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithReloadHook registers h to run after each reload.
func WithReloadHook(h ReloadHook) WatcherOption {
	return func(w *Watcher) { w.hooks = append(w.hooks, h) }
}

// NewWatcher returns a watcher for the table at path.
func NewWatcher(book *PriceBook, path string, logger logging.Logger, opts ...WatcherOption) *Watcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	w := &Watcher{
		book:     book,
		path:     filepath.Clean(path),
		debounce: 200 * time.Millisecond,
		logger:   logger.Named("pricing"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload registers h to run after each reload.
func (w *Watcher) OnReload(h ReloadHook) {
	w.mu.Lock()
	w.hooks = append(w.hooks, h)
	w.mu.Unlock()
}

// Start begins watching.  It returns once the watch is established; events
// are handled until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodePriceTableLoad, "failed to create price table watcher")
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return errors.Wrap(err, errors.ErrCodePriceTableLoad, "failed to watch price table directory").WithDetail(w.path)
	}
	w.fsw = fsw
	w.done = make(chan struct{})
	go w.loop(ctx)
	w.logger.Info("watching price table", logging.String("path", w.path))
	return nil
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	if w.fsw == nil {
		return nil
	}
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("price table watcher error", logging.Err(err))
		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) reload(ctx context.Context) {
	n, err := w.book.Reload(w.path)
	if err != nil {
		w.logger.Warn("price table reload failed, keeping previous table",
			logging.String("path", w.path), logging.Err(err))
		return
	}
	w.logger.Info("price table reloaded",
		logging.String("path", w.path),
		logging.Int("items", n),
		logging.Int64("version", w.book.Version()))

	w.mu.Lock()
	hooks := append([]ReloadHook(nil), w.hooks...)
	w.mu.Unlock()
	for _, h := range hooks {
		h(ctx, n)
	}
}

//Personal.AI order the ending
