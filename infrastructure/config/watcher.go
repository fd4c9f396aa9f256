package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// DefaultDebounce coalesces bursts of writes from editors.
const DefaultDebounce = 100 * time.Millisecond

// ChangeFunc receives each successfully reloaded configuration.
type ChangeFunc func(cfg *config.AppConfig)

// Watcher reloads a configuration file when it changes. Reloads that fail
// to parse or validate are logged and skipped; the previous configuration
// stays in effect.
type Watcher struct {
	path     string
	loader   *Loader
	onChange ChangeFunc
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLoader sets the loader used for reloads.
func WithLoader(l *Loader) WatcherOption {
	return func(w *Watcher) {
		w.loader = l
	}
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	w := &Watcher{
		path:     abs,
		loader:   NewLoader(),
		onChange: onChange,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. It returns once the watch is established; reloads
// happen on a background goroutine until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return config.ErrWatcherClosed
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to watch directory %s: %w", filepath.Dir(w.path), err)
	}
	w.watcher = fw

	go w.loop(ctx, fw)

	logging.Info().
		Add(logging.Component("config")).
		Add(logging.Str("path", w.path)).
		Msg("watching config file")
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer close(w.done)

	name := filepath.Base(w.path)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.Warn().
				Add(logging.Component("config")).
				Add(logging.ErrorField(err)).
				Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.LoadFile(w.path)
	if err != nil {
		logging.Warn().
			Add(logging.Component("config")).
			Add(logging.Str("path", w.path)).
			Add(logging.ErrorField(err)).
			Msg("config reload rejected")
		return
	}

	logging.Info().
		Add(logging.Component("config")).
		Add(logging.Str("path", w.path)).
		Msg("config reloaded")

	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Close stops watching and waits for the loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	fw := w.watcher
	w.mu.Unlock()

	if fw == nil {
		return nil
	}
	err := fw.Close()
	<-w.done
	return err
}
