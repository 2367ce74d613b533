package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"opsreg/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a declaration tree for changes and triggers a rescan
// callback after the edits settle. It watches every non-ignored
// directory under the root so new subdirectories and files are noticed.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	scanner     *Scanner
	root        string
	onChange    func()
	debounceDur time.Duration
	pending     bool
	lastEvent   time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a Watcher over root. onChange is invoked once per
// settled burst of declaration-file changes.
func NewWatcher(root string, sc *Scanner, onChange func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fsWatcher,
		scanner:     sc,
		root:        root,
		onChange:    onChange,
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addDirs(w.root); err != nil {
		return err
	}
	logging.Watch("Watching declaration tree: %s", w.root)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("Error closing watcher: %v", err)
	}
	logging.Watch("Watcher stopped")
}

// addDirs registers root and every non-ignored subdirectory.
func (w *Watcher) addDirs(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.scanner.ignoreDirs[info.Name()] {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			logging.Get(logging.CategoryWatch).Warn("Failed to watch %s: %v", path, err)
		}
		return nil
	})
}

// run is the main event loop.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	flushTicker := time.NewTicker(100 * time.Millisecond)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("Watcher context cancelled")
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("Watch error: %v", err)
		case <-flushTicker.C:
			w.flush()
		}
	}
}

// handleEvent records a relevant change and keeps the directory set
// current as subdirectories appear.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.scanner.ignoreDirs[filepath.Base(event.Name)] {
				if err := w.watcher.Add(event.Name); err == nil {
					logging.WatchDebug("Watching new directory: %s", event.Name)
				}
			}
			return
		}
	}

	if !isDeclarationFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	logging.WatchDebug("Declaration change: %s (%s)", event.Name, event.Op)
	w.mu.Lock()
	w.pending = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

// flush fires the rescan callback once a change burst has settled.
func (w *Watcher) flush() {
	w.mu.Lock()
	fire := w.pending && time.Since(w.lastEvent) >= w.debounceDur
	if fire {
		w.pending = false
	}
	w.mu.Unlock()

	if fire {
		logging.Watch("Declaration changes settled, triggering rescan")
		w.onChange()
	}
}
