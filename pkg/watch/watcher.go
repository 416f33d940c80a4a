// Package watch re-runs a callback when watched files change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before a change
// is reported.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher monitors files for changes. Directories are watched rather than
// files so editors that replace a file on save are still seen; events for
// other files in those directories are ignored.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	files map[string]*tracked
	dirs  map[string]int

	// OnChange is called once per settled change. A returned error goes to
	// OnError.
	OnChange func(path string) error
	OnError  func(path string, err error)
}

// stamp is what a file must differ in to count as changed.
type stamp struct {
	mod  time.Time
	size int64
}

func stampOf(fi os.FileInfo) stamp { return stamp{mod: fi.ModTime(), size: fi.Size()} }

func (s stamp) equal(o stamp) bool { return s.size == o.size && s.mod.Equal(o.mod) }

type tracked struct {
	last  stamp // guarded by Watcher.mu
	timer *time.Timer
	busy  atomic.Bool
}

func NewWatcher(opts Options) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		fs:       fs,
		debounce: opts.Debounce,
		logger:   opts.Logger.With("component", "watcher"),
		files:    make(map[string]*tracked),
		dirs:     make(map[string]int),
	}, nil
}

// Watch adds a regular file. Watching the same file twice is a no-op.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("watch %s: is a directory", path)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files[abs] != nil {
		return nil
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[abs] = &tracked{last: stampOf(fi)}
	return nil
}

// Unwatch drops a file. The directory watch goes with its last file.
func (w *Watcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("unwatch %s: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	t := w.files[abs]
	if t == nil {
		return nil
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	delete(w.files, abs)

	dir := filepath.Dir(abs)
	if w.dirs[dir]--; w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	return w.fs.Remove(dir)
}

// Paths returns the watched files, sorted.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Run dispatches filesystem events until ctx ends or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			w.fs.Close()
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if abs, err := filepath.Abs(ev.Name); err == nil {
				w.schedule(abs)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
			if w.OnError != nil {
				w.OnError("", err)
			}
		}
	}
}

// schedule (re)arms the debounce timer of a watched file.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := w.files[path]
	if t == nil {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(w.debounce, func() { w.settle(path) })
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.files {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
	}
}

// settle runs after the debounce period. Events that only touched the
// directory entry, leaving size and modtime alone, are dropped.
func (w *Watcher) settle(path string) {
	w.mu.Lock()
	t := w.files[path]
	w.mu.Unlock()
	if t == nil || !t.busy.CompareAndSwap(false, true) {
		return
	}
	defer t.busy.Store(false)

	fi, err := os.Stat(path)
	if err != nil {
		w.report(path, err)
		return
	}

	now := stampOf(fi)
	w.mu.Lock()
	same := now.equal(t.last)
	t.last = now
	w.mu.Unlock()
	if same {
		return
	}

	w.logger.Debug("file changed", "path", path, "size", now.size)
	if w.OnChange != nil {
		if err := w.OnChange(path); err != nil {
			w.report(path, err)
		}
	}
}

func (w *Watcher) report(path string, err error) {
	if w.OnError != nil {
		w.OnError(path, err)
	}
}

// Close releases the fsnotify handle. A running Run returns nil.
func (w *Watcher) Close() error {
	w.stopTimers()
	return w.fs.Close()
}
