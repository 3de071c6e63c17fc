package watcher

import (
	"context"
	"dwmm/internal/core/config"
	"dwmm/internal/shared/observability"
	"dwmm/internal/shared/util"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Op int

const (
	OpAdd Op = iota + 1
	OpChange
	OpUnlink
	// OpReady follows the Add events of the initial scan.
	OpReady
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpChange:
		return "change"
	case OpUnlink:
		return "unlink"
	case OpReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Event is a settled observation about one file. Path is absolute; it is
// empty for OpReady.
type Event struct {
	Op   Op
	Path string
}

// Handler receives a batch of events. ctx is the one passed to Start and is
// done once the watcher's owner is shutting down.
type Handler func(ctx context.Context, events []Event)

// Watcher observes a project tree and reports add, change and unlink events
// for source and configuration files. Events are delivered in batches on a
// single goroutine at a time.
type Watcher struct {
	root      string
	fsWatcher *fsnotify.Watcher
	addWatch  func(dir string) error
	debounce  time.Duration
	ignore    *IgnoreRules
	accept    func(path string) bool
	onEvents  Handler
	ctx       context.Context

	callbackMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]struct{}
	known     map[string]bool
	timer     *time.Timer
	closed    bool
}

// New creates a watcher for root using the file classification and ignore
// settings of cfg. onEvents must not be nil.
func New(root string, cfg config.Watch, onEvents Handler) (*Watcher, error) {
	if onEvents == nil {
		return nil, os.ErrInvalid
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	rules, err := LoadIgnoreRules(abs, cfg.ExtraIgnore, cfg.IsConfigFile)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 50 * time.Millisecond
	}
	return &Watcher{
		root:      abs,
		fsWatcher: fsw,
		addWatch:  fsw.Add,
		debounce:  debounce,
		ignore:    rules,
		accept: func(path string) bool {
			return cfg.IsSourceFile(path) || cfg.IsConfigFile(path)
		},
		onEvents: onEvents,
		ctx:      context.Background(),
		pending:  make(map[string]struct{}),
		known:    make(map[string]bool),
	}, nil
}

func (w *Watcher) Root() string { return w.root }

// Start performs the initial scan, delivering one Add per matching file and a
// trailing Ready, then keeps watching in the background until Close or until
// ctx is done. A done ctx also cuts the initial scan short.
func (w *Watcher) Start(ctx context.Context) error {
	w.pendingMu.Lock()
	w.ctx = ctx
	w.pendingMu.Unlock()

	var files []string
	if err := w.watchRecursive(w.root, &files); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	events := make([]Event, 0, len(files)+1)
	w.pendingMu.Lock()
	for _, f := range files {
		w.known[f] = true
		events = append(events, Event{Op: OpAdd, Path: f})
	}
	w.pendingMu.Unlock()
	events = append(events, Event{Op: OpReady})
	w.deliver(events)

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(dir string, files *[]string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if ctxErr := w.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == dir {
				return err
			}
			slog.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if info.IsDir() {
			if w.ignored(path, true) {
				return filepath.SkipDir
			}
			if err := w.addWatch(path); err != nil {
				// The directory's files are still indexed; later edits to
				// them go unnoticed.
				slog.Warn("failed to watch directory", "path", path, "error", err)
			}
			return nil
		}
		if files != nil && w.matches(path) {
			*files = append(*files, path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.ignored(event.Name, true) {
						var files []string
						if err := w.watchRecursive(event.Name, &files); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						}
						for _, f := range files {
							w.scheduleChange(f)
						}
					}
					continue
				}
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if w.matches(event.Name) || w.isKnownOrParent(event.Name) {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.closed {
		return
	}

	w.pending[path] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

// flushChanges classifies every pending path against the filesystem and the
// set of files already reported.
func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	sort.Strings(paths)

	var events []Event
	for _, path := range paths {
		info, err := os.Stat(path)
		switch {
		case err == nil && !info.IsDir():
			if w.known[path] {
				events = append(events, Event{Op: OpChange, Path: path})
			} else {
				w.known[path] = true
				events = append(events, Event{Op: OpAdd, Path: path})
			}
		case err != nil:
			events = append(events, w.unlinkLocked(path)...)
		}
	}
	w.pendingMu.Unlock()

	if len(events) > 0 {
		w.deliver(events)
	}
}

// unlinkLocked forgets path, or every known file beneath it when path was a
// directory.
func (w *Watcher) unlinkLocked(path string) []Event {
	if w.known[path] {
		delete(w.known, path)
		return []Event{{Op: OpUnlink, Path: path}}
	}
	var gone []string
	for f := range w.known {
		if util.HasPathPrefix(f, path) {
			gone = append(gone, f)
		}
	}
	sort.Strings(gone)
	events := make([]Event, 0, len(gone))
	for _, f := range gone {
		delete(w.known, f)
		events = append(events, Event{Op: OpUnlink, Path: f})
	}
	return events
}

func (w *Watcher) deliver(events []Event) {
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	if w.ctx.Err() != nil {
		return
	}
	w.onEvents(w.ctx, events)
}

func (w *Watcher) isKnownOrParent(path string) bool {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.known[path] {
		return true
	}
	for f := range w.known {
		if util.HasPathPrefix(f, path) {
			return true
		}
	}
	return false
}

func (w *Watcher) matches(path string) bool {
	return w.accept(path) && !w.ignored(path, false)
}

func (w *Watcher) ignored(path string, isDir bool) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	return w.ignore.Ignored(filepath.ToSlash(rel), isDir)
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}
