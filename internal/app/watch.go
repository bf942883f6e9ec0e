package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/plughost/internal/domain/plugin"
	"github.com/felixgeelhaar/plughost/internal/ports"
)

// Checker runs plugin checks over a directory.
type Checker interface {
	CheckPlugins(ctx context.Context) (*plugin.CheckResult, error)
	Directory() string
	Recursive() bool
}

// WatchOptions configures watch mode behavior.
type WatchOptions struct {
	// Debounce is the quiet period after the last file event before a
	// check runs (default 500ms).
	Debounce time.Duration
	// CheckOnStart runs a check before the first file event.
	CheckOnStart bool
	// FileFilter limits which file events trigger a check. Nil means the
	// default plugin extensions.
	FileFilter plugin.FileFilter
	// OnCheck is called after every check.
	OnCheck func(*plugin.CheckResult, error)
}

// WatchMode re-runs plugin checks when archives appear in the plugins
// directory.
type WatchMode struct {
	checker  Checker
	logger   ports.Logger
	debounce time.Duration
	onStart  bool
	filter   plugin.FileFilter
	onCheck  func(*plugin.CheckResult, error)

	mu      sync.Mutex
	timer   *time.Timer
	trigger chan struct{}
}

// NewWatchMode creates a new file watch service.
func NewWatchMode(checker Checker, logger ports.Logger, opts WatchOptions) *WatchMode {
	debounce := opts.Debounce
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	filter := opts.FileFilter
	if filter == nil {
		filter = plugin.ExtensionFilter()
	}

	return &WatchMode{
		checker:  checker,
		logger:   logger,
		debounce: debounce,
		onStart:  opts.CheckOnStart,
		filter:   filter,
		onCheck:  opts.OnCheck,
		trigger:  make(chan struct{}, 1),
	}
}

// Run watches the plugins directory until ctx is cancelled. Checks run on
// the calling goroutine.
func (w *WatchMode) Run(ctx context.Context) error {
	dir := w.checker.Directory()
	if dir == "" {
		return fmt.Errorf("no plugins directory configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := w.addTree(watcher, dir); err != nil {
		return err
	}
	defer w.stopTimer()

	w.logger.Info(ctx, "watching plugins directory",
		ports.F("dir", dir),
		ports.F("recursive", w.checker.Recursive()),
	)

	if w.onStart {
		w.check(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, watcher, event)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watcher error", ports.Err(werr))
		case <-w.trigger:
			w.check(ctx)
		}
	}
}

// addTree watches dir and, when recursive, every directory below it.
func (w *WatchMode) addTree(watcher *fsnotify.Watcher, dir string) error {
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if !w.checker.Recursive() {
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == dir {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *WatchMode) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	if event.Has(fsnotify.Create) && w.checker.Recursive() {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(watcher, path); err != nil {
				w.logger.Warn(ctx, "unable to watch directory", ports.F("dir", path), ports.Err(err))
				return
			}
			w.logger.Debug(ctx, "watching new directory", ports.F("dir", path))
			w.schedule()
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	if !w.filter(filepath.Base(path)) {
		return
	}

	w.logger.Debug(ctx, "plugin file changed", ports.F("file", path), ports.F("op", event.Op.String()))
	w.schedule()
}

// schedule restarts the debounce timer.
func (w *WatchMode) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.trigger <- struct{}{}:
		default:
		}
	})
}

func (w *WatchMode) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *WatchMode) check(ctx context.Context) {
	start := time.Now()
	result, err := w.checker.CheckPlugins(ctx)

	if err != nil {
		w.logger.Error(ctx, "plugin check failed", ports.Err(err))
	} else {
		w.logger.Info(ctx, "plugin check completed",
			ports.F("loaded", len(result.Loaded)),
			ports.F("failed", len(result.Failed)),
			ports.F("elapsed", time.Since(start).Round(time.Millisecond)),
		)
	}

	if w.onCheck != nil {
		w.onCheck(result, err)
	}
}
