package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roelfdiedericks/tgstatctl/internal/bus"
	"github.com/roelfdiedericks/tgstatctl/internal/logging"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher reloads the config file when it changes and publishes the new
// *Config on bus.TopicConfigReloaded. Invalid edits are logged and ignored.
type Watcher struct {
	path      string
	overrides Overrides
	bus       *bus.Bus
	debounce  time.Duration

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	pending *time.Timer
}

// Watch starts watching cfg.Path. The parent directory is watched so editors
// that replace the file on save are seen too.
func Watch(cfg *Config, ov Overrides, b *bus.Bus) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(cfg.Path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		path:      filepath.Clean(cfg.Path),
		overrides: ov,
		bus:       b,
		debounce:  defaultDebounce,
		watcher:   fsWatcher,
		stopCh:    make(chan struct{}),
	}
	go w.run()

	logging.L_debug("config: watching", "path", w.path)
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.L_warn("config: watcher error", "error", err)
		}
	}
}

// schedule debounces bursts of events from a single save.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path, w.overrides)
	if err != nil {
		logging.L_warn("config: reload rejected", "path", w.path, "error", err)
		return
	}
	logging.L_info("config: reloaded", "path", w.path)
	w.bus.Publish(bus.TopicConfigReloaded, cfg)
}

// Stop stops watching. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		if w.pending != nil {
			w.pending.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
