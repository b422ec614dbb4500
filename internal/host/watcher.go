package host

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
)

// DefaultDebounce coalesces editor save bursts into one cycle.
const DefaultDebounce = 200 * time.Millisecond

// ChangeFunc receives the changed source files of one debounced burst.
type ChangeFunc func(ctx context.Context, paths []string)

// Watcher monitors source directories and reports changed .purs files.
type Watcher struct {
	roots    []string
	onChange ChangeFunc
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu         sync.Mutex
	pending    map[string]struct{}
	stopChan   chan struct{}
	changeChan chan struct{}
	stopOnce   sync.Once
}

// NewWatcher creates a watcher over roots. A non-positive debounce uses DefaultDebounce.
func NewWatcher(roots []string, debounce time.Duration, onChange ChangeFunc) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.ValidationError("change callback is required").Build()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	return &Watcher{
		roots:      roots,
		onChange:   onChange,
		debounce:   debounce,
		watcher:    w,
		pending:    make(map[string]struct{}),
		stopChan:   make(chan struct{}),
		changeChan: make(chan struct{}, 1),
	}, nil
}

// Start watches every directory under the roots.
func (w *Watcher) Start(ctx context.Context) error {
	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			return err
		}
	}
	slog.Info("Watching sources", "roots", w.roots)
	go w.watchLoop(ctx)
	go w.flushLoop(ctx)
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); path != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to watch directory").
				WithContext("path", path).
				Build()
		}
		return nil
	})
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Source watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
			}
			return
		}
	}
	if filepath.Ext(event.Name) != ".purs" {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	slog.Debug("Source change detected", logfields.Path(event.Name), "op", event.Op.String())
	w.mu.Lock()
	w.pending[event.Name] = struct{}{}
	w.mu.Unlock()
	select {
	case w.changeChan <- struct{}{}:
	default:
	}
}

// flushLoop hands pending changes to onChange once no event arrived for the
// debounce window.
func (w *Watcher) flushLoop(ctx context.Context) {
	var timer *time.Timer
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-w.stopChan:
			stop()
			return
		case <-w.changeChan:
			stop()
			timer = time.AfterFunc(w.debounce, func() { w.flush(ctx) })
		}
	}
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	// Renames report the old name; keep only files that still exist.
	paths = slices.DeleteFunc(paths, func(p string) bool {
		_, err := os.Stat(p)
		return err != nil
	})
	if len(paths) == 0 {
		return
	}
	slices.Sort(paths)
	w.onChange(ctx, paths)
}
