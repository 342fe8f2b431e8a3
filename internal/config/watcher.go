package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"integrationhub/pkg/logging"
)

// DebounceInterval is the wait after the last detected change before
// OnChange fires, so a single `cp`+rename doesn't trigger two reloads.
const DebounceInterval = 500 * time.Millisecond

// Watcher reloads configuration from configPath whenever config.yaml
// changes on disk and hands the reloaded Config to onChange. Applying
// the new values to running components is left to onChange.
type Watcher struct {
	mu         sync.Mutex
	configPath string
	onChange   func(Config)

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a Watcher over configPath. onChange is invoked
// (on its own goroutine) with the freshly loaded Config after each
// debounced change; load errors are logged and skipped.
func NewWatcher(configPath string, onChange func(Config)) *Watcher {
	return &Watcher{configPath: configPath, onChange: onChange}
}

// Start begins watching configPath/config.yaml for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.configPath); err != nil {
		fsw.Close()
		return err
	}

	w.fsWatcher = fsw
	w.stopCh = make(chan struct{})
	w.running = true

	eventsCh := fsw.Events
	errorsCh := fsw.Errors
	go w.processEvents(eventsCh, errorsCh)

	logging.Info("ConfigWatcher", "watching %s for config changes", w.configPath)
	return nil
}

func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.triggerReloadDebounced()
		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("ConfigWatcher", err, "fsnotify error")
		}
	}
}

func (w *Watcher) triggerReloadDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(DebounceInterval, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.configPath)
	if err != nil {
		logging.Error("ConfigWatcher", err, "reload failed, keeping previous configuration")
		return
	}
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Stop halts the watcher; safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()

	err := w.fsWatcher.Close()
	w.fsWatcher = nil
	return err
}
