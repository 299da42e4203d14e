package document

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lorekit/lore/internal/log"
)

// debounceWindow coalesces the burst of write events editors emit when
// saving a file.
const debounceWindow = 400 * time.Millisecond

// Watcher watches the data directory recursively and invokes callbacks
// when indexable files change or disappear.
type Watcher struct {
	root        string
	onIndex     func(path string)
	onRemove    func(path string)
	onRemoveDir func(path string)
	logger      log.Logger

	watcher *fsnotify.Watcher

	mu       sync.Mutex
	timers   map[string]*time.Timer
	dirs     map[string]bool
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher over root. onIndex fires (debounced) when a
// supported file is created or written; onRemove fires when one is removed
// or renamed away; onRemoveDir fires when a watched subdirectory disappears,
// since its files produce no removal events of their own.
func NewWatcher(root string, onIndex, onRemove, onRemoveDir func(path string), logger log.Logger) *Watcher {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Watcher{
		root:        root,
		onIndex:     onIndex,
		onRemove:    onRemove,
		onRemoveDir: onRemoveDir,
		logger:      logger,
		timers:      make(map[string]*time.Timer),
		dirs:        make(map[string]bool),
		done:        make(chan struct{}),
	}
}

// Start begins watching. It returns once the watches are registered; the
// event loop runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		_ = fsw.Close()
		return err
	}

	w.logger.Info("watching for changes", "data_dir", w.root)
	go w.run(ctx)
	return nil
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		for _, t := range w.timers {
			t.Stop()
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()
		return nil
	})
}

// forgetDir reports whether path was a watched directory and, if so, drops
// it and everything nested under it from the set.
func (w *Watcher) forgetDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[path] {
		return false
	}
	prefix := path + string(filepath.Separator)
	for dir := range w.dirs {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
		}
	}
	return true
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watch error", "error", err)
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name

	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			// New subdirectory: watch it and index whatever it contains.
			if err := w.addRecursive(path); err != nil {
				w.logger.Warn("watch new directory", "path", path, "error", err)
			}
			return
		}
		if Supported(path) && !strings.HasPrefix(filepath.Base(path), ".") {
			w.debounceIndex(path)
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		if Supported(path) {
			if w.onRemove != nil {
				w.onRemove(path)
			}
			return
		}
		// A vanished directory emits no events for the files it held.
		if w.forgetDir(path) && w.onRemoveDir != nil {
			w.onRemoveDir(path)
		}
	}
}

func (w *Watcher) debounceIndex(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		if w.onIndex != nil {
			w.onIndex(path)
		}
	})
}
