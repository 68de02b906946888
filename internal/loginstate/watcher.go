package loginstate

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher monitors the device-info file for changes using fsnotify with a
// polling fallback. The monitor uses it to notice a fresh login promptly
// instead of waiting out the remainder of a poll interval.
type Watcher struct {
	path string
	// events carries one signal per change; a buffer of 1 lets bursts of
	// writes collapse into a single wakeup.
	events chan struct{}
	// done is closed by [Watcher.Close]; both goroutines exit on it.
	done chan struct{}
	// fsw is the underlying fsnotify watcher; nil when the constructor fell
	// back to polling. Set once in [NewWatcher] and never reassigned, so
	// goroutines may read it without locking; closing goes through fswOnce.
	fsw *fsnotify.Watcher
	// fswOnce ensures fsw is closed exactly once, whether by [Watcher.Close]
	// or by the watch goroutine falling back to polling on an fsnotify error.
	fswOnce sync.Once
	// once makes [Watcher.Close] idempotent.
	once sync.Once
	// polling flips to true when the watcher runs on stat polling instead
	// of fsnotify, either from construction or after an fsnotify error.
	polling atomic.Bool
	// pollInterval is how often polling mode stats the file.
	pollInterval time.Duration
}

// NewWatcher watches the file at path via fsnotify, degrading to stat
// polling when fsnotify cannot be set up or the file cannot be added (it
// may not exist yet; the device-info file only appears after a login).
func NewWatcher(path string) (*Watcher, error) {
	w := &Watcher{
		path:         path,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: 2 * time.Second,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.polling.Store(true)
		go w.poll()
		return w, nil
	}

	if err := fsw.Add(path); err != nil {
		slog.Info("cannot watch file, falling back to polling", "path", path, "error", err)
		fsw.Close()
		w.polling.Store(true)
		go w.poll()
		return w, nil
	}

	w.fsw = fsw
	go w.watch()
	return w, nil
}

// Polling reports whether the watcher is in the stat-polling fallback.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Events is the change-notification channel.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close shuts the watcher down. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if closeErr := w.closeFSW(); closeErr != nil {
			err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
		}
	})
	return err
}

// closeFSW closes the native fsnotify watcher at most once. Both
// [Watcher.Close] and the watch goroutine's error fallback funnel through it,
// so the two never race on the close.
func (w *Watcher) closeFSW() error {
	var err error
	if w.fsw != nil {
		w.fswOnce.Do(func() { err = w.fsw.Close() })
	}
	return err
}

// watch loops over fsnotify events and forwards write/create notifications
// to the events channel. If fsnotify reports an error, watch closes the
// native watcher and falls back to [Watcher.poll].
func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.notify()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to polling", "error", err)
			w.closeFSW()
			w.polling.Store(true)
			go w.poll()
			return
		}
	}
}

// poll stats the file on a ticker and notifies when its mtime advances.
func (w *Watcher) poll() {
	var lastMod time.Time
	if info, err := os.Stat(w.path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			if info.ModTime().After(lastMod) {
				lastMod = info.ModTime()
				w.notify()
			}
		}
	}
}

// notify queues at most one pending signal; extra changes before the reader
// wakes are folded into it.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
