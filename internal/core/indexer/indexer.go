package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"dwmm/internal/core/errors"
	"dwmm/internal/core/ports"
	"dwmm/internal/core/watcher"
	"dwmm/internal/engine/index"
	"dwmm/internal/engine/parser"
	"dwmm/internal/shared/observability"
	"dwmm/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Progress counts files ever seen and files no longer pending.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Options wire an Indexer to its collaborators. Natives, Plugins, Cache and
// Resolver are optional.
type Options struct {
	Index            *index.Index
	Parser           ports.CodeParser
	Resolver         ports.ModuleResolver
	Natives          ports.NativesLoader
	Plugins          ports.PreferredImportsLoader
	Cache            ports.DeclarationCache
	IsConfigFile     func(path string) bool
	IsSourceFile     func(path string) bool
	ProgressInterval time.Duration
	Workers          int
	Logger           *slog.Logger
}

// Indexer feeds watcher events into an Index and tracks readiness: the
// initial scan has completed and no file is pending.
type Indexer struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	allFiles map[string]struct{}
	pending  map[string]int
	gotReady bool
	readyCh  chan struct{}

	progress      util.Listeners[Progress]
	ready         util.Listeners[struct{}]
	errs          util.Listeners[error]
	throttle      *util.Limiter
	throttleMu    sync.Mutex
	trailingTimer *time.Timer
}

func New(opts Options) *Indexer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.IsConfigFile == nil {
		opts.IsConfigFile = func(string) bool { return false }
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Indexer{
		opts:     opts,
		logger:   logger,
		allFiles: make(map[string]struct{}),
		pending:  make(map[string]int),
		readyCh:  make(chan struct{}),
		throttle: util.NewLimiter(1/opts.ProgressInterval.Seconds(), 1),
	}
}

// SetCache installs a declaration cache. It must be called before the first
// HandleEvents.
func (ix *Indexer) SetCache(c ports.DeclarationCache) {
	ix.opts.Cache = c
}

// OnProgress registers fn for throttled progress updates.
func (ix *Indexer) OnProgress(fn func(Progress)) (remove func()) {
	return ix.progress.Add(fn)
}

// OnReady registers fn to run every time the indexer becomes ready.
func (ix *Indexer) OnReady(fn func()) (remove func()) {
	return ix.ready.Add(func(struct{}) { fn() })
}

// OnError registers fn for non-fatal per-file failures.
func (ix *Indexer) OnError(fn func(error)) (remove func()) {
	return ix.errs.Add(fn)
}

// LoadNatives declares the runtime core modules. Failures are logged and
// tolerated.
func (ix *Indexer) LoadNatives(ctx context.Context) int {
	if ix.opts.Natives == nil {
		return 0
	}
	natives, err := ix.opts.Natives.LoadNatives(ctx)
	if err != nil {
		ix.logger.Warn("failed to load natives", "error", err)
		return 0
	}
	n := ix.opts.Index.DeclareNatives(natives)
	ix.logger.Info("declared natives", "count", n)
	return n
}

func (ix *Indexer) IsReady() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.isReadyLocked()
}

func (ix *Indexer) isReadyLocked() bool {
	return ix.gotReady && len(ix.pending) == 0
}

func (ix *Indexer) Progress() Progress {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.progressLocked()
}

func (ix *Indexer) progressLocked() Progress {
	return Progress{Completed: len(ix.allFiles) - len(ix.pending), Total: len(ix.allFiles)}
}

// WaitUntilReady blocks until the indexer is ready or ctx is done.
func (ix *Indexer) WaitUntilReady(ctx context.Context) error {
	for {
		ix.mu.Lock()
		if ix.isReadyLocked() {
			ix.mu.Unlock()
			return nil
		}
		ch := ix.readyCh
		ix.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HandleEvents applies a batch of watcher events. Added and changed files are
// marked pending before any of them is processed so progress totals cover the
// whole batch. Once ctx is done no further file is started; files not reached
// stay pending.
func (ix *Indexer) HandleEvents(ctx context.Context, events []watcher.Event) {
	var files []string
	becameReady := false

	ix.mu.Lock()
	for _, ev := range events {
		switch ev.Op {
		case watcher.OpAdd, watcher.OpChange:
			ix.allFiles[ev.Path] = struct{}{}
			ix.markPendingLocked(ev.Path)
			files = append(files, ev.Path)
		}
	}
	ix.mu.Unlock()
	if len(files) > 0 {
		ix.emitProgress()
	}

	if ix.opts.Resolver != nil && hasOp(events, watcher.OpAdd) {
		ix.opts.Resolver.Purge()
	}

	g := new(errgroup.Group)
	g.SetLimit(ix.opts.Workers)
	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		switch ev.Op {
		case watcher.OpAdd, watcher.OpChange:
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				ix.processFile(ctx, ev.Path)
				return nil
			})
		case watcher.OpUnlink:
			ix.removeFile(ctx, ev.Path)
		case watcher.OpReady:
			ix.mu.Lock()
			ix.gotReady = true
			ix.mu.Unlock()
			becameReady = true
		}
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		ix.logger.Debug("indexing interrupted", "progress", ix.Progress())
		return
	}

	if becameReady || len(files) > 0 {
		ix.checkReady()
	}
}

func hasOp(events []watcher.Event, op watcher.Op) bool {
	for _, ev := range events {
		if ev.Op == op {
			return true
		}
	}
	return false
}

func (ix *Indexer) markPendingLocked(path string) {
	if ix.isReadyLocked() {
		ix.readyCh = make(chan struct{})
	}
	ix.pending[path]++
	observability.PendingFiles.Set(float64(len(ix.pending)))
}

func (ix *Indexer) settle(path string) {
	ix.mu.Lock()
	if n := ix.pending[path]; n > 1 {
		ix.pending[path] = n - 1
	} else {
		delete(ix.pending, path)
	}
	observability.PendingFiles.Set(float64(len(ix.pending)))
	ix.mu.Unlock()
	ix.emitProgress()
}

func (ix *Indexer) checkReady() {
	ix.mu.Lock()
	ready := ix.isReadyLocked()
	if ready {
		select {
		case <-ix.readyCh:
			ready = false
		default:
			close(ix.readyCh)
		}
	}
	ix.mu.Unlock()
	if ready {
		ix.flushProgress()
		ix.ready.Emit(struct{}{})
	}
}

func (ix *Indexer) processFile(ctx context.Context, path string) {
	defer ix.settle(path)

	ctx, span := observability.Tracer.Start(ctx, "indexer.processFile")
	span.SetAttributes(attribute.String("path", path))
	defer span.End()

	var (
		decls []parser.Declaration
		err   error
	)
	if ix.opts.IsConfigFile(path) {
		decls, err = ix.configDeclarations(ctx, path)
	} else {
		decls, err = ix.sourceDeclarations(ctx, path)
	}
	if err != nil {
		span.RecordError(err)
		ix.dropFile(path, err)
		return
	}
	ix.opts.Index.DeclareModule(path, decls)
	ix.logger.Debug("indexed", "path", path, "declarations", len(decls))
}

func (ix *Indexer) sourceDeclarations(ctx context.Context, path string) ([]parser.Declaration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "stat source"), errors.CtxPath, path)
	}
	hash := fileHash(info)
	if ix.opts.Cache != nil {
		decls, ok, err := ix.opts.Cache.Get(ctx, path, hash)
		if err != nil {
			ix.logger.Warn("declaration cache read failed", "path", path, "error", err)
		} else if ok {
			observability.CacheHitsTotal.Inc()
			return decls, nil
		}
		observability.CacheMissesTotal.Inc()
	}

	code, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read source"), errors.CtxPath, path)
	}
	decls, err := ix.opts.Parser.Parse(path, code)
	if err != nil {
		return nil, err
	}
	if ix.opts.Cache != nil {
		if err := ix.opts.Cache.Put(ctx, path, hash, decls); err != nil {
			ix.logger.Warn("declaration cache write failed", "path", path, "error", err)
		}
	}
	return decls, nil
}

// configDeclarations evaluates a configuration plugin and parses each of its
// snippets as a standalone module attributed to path. Files no plugin can
// evaluate are parsed as ordinary sources, so their own imports are
// preferred.
func (ix *Indexer) configDeclarations(ctx context.Context, path string) ([]parser.Declaration, error) {
	if ix.opts.Plugins == nil || !ix.opts.Plugins.Supports(path) {
		return ix.sourceDeclarations(ctx, path)
	}
	snippets, err := ix.opts.Plugins.LoadPreferredImports(ctx, path)
	if err != nil {
		if ix.opts.IsSourceFile == nil || !ix.opts.IsSourceFile(path) {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeParseFailure, "load preferred imports"), errors.CtxPath, path)
		}
		ix.logger.Warn("configuration plugin failed, indexing file as source", "path", path, "error", err)
		return ix.sourceDeclarations(ctx, path)
	}
	var decls []parser.Declaration
	for _, snippet := range snippets {
		d, err := ix.opts.Parser.Parse(path, []byte(snippet))
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxSymbol, snippet)
		}
		decls = append(decls, d...)
	}
	return decls, nil
}

func (ix *Indexer) dropFile(path string, err error) {
	ix.mu.Lock()
	delete(ix.allFiles, path)
	ix.mu.Unlock()
	ix.opts.Index.UndeclareModule(path)
	ix.logger.Error("failed to index file", "path", path, "error", err)
	ix.errs.Emit(fmt.Errorf("%s: %w", path, err))
}

func (ix *Indexer) removeFile(ctx context.Context, path string) {
	ix.mu.Lock()
	delete(ix.allFiles, path)
	delete(ix.pending, path)
	observability.PendingFiles.Set(float64(len(ix.pending)))
	ix.mu.Unlock()

	ix.opts.Index.UndeclareModule(path)
	if ix.opts.Resolver != nil {
		ix.opts.Resolver.Purge()
	}
	if ix.opts.Cache != nil {
		if err := ix.opts.Cache.Delete(ctx, path); err != nil {
			ix.logger.Warn("declaration cache delete failed", "path", path, "error", err)
		}
	}
	ix.logger.Debug("unlinked", "path", path)
	ix.checkReady()
}

// emitProgress delivers progress at most once per interval. Updates inside
// the window are coalesced into one trailing emit on the reserved token.
func (ix *Indexer) emitProgress() {
	ix.throttleMu.Lock()
	defer ix.throttleMu.Unlock()
	if ix.trailingTimer != nil {
		return
	}
	delay := ix.throttle.Reserve()
	if delay == 0 {
		ix.progress.Emit(ix.Progress())
		return
	}
	ix.trailingTimer = time.AfterFunc(delay, func() {
		ix.throttleMu.Lock()
		ix.trailingTimer = nil
		ix.throttleMu.Unlock()
		ix.progress.Emit(ix.Progress())
	})
}

// flushProgress emits the current progress immediately, replacing any
// scheduled trailing emit.
func (ix *Indexer) flushProgress() {
	ix.throttleMu.Lock()
	if ix.trailingTimer != nil {
		ix.trailingTimer.Stop()
		ix.trailingTimer = nil
	}
	ix.throttleMu.Unlock()
	ix.progress.Emit(ix.Progress())
}

// Close stops any scheduled progress emit.
func (ix *Indexer) Close() {
	ix.throttleMu.Lock()
	defer ix.throttleMu.Unlock()
	if ix.trailingTimer != nil {
		ix.trailingTimer.Stop()
		ix.trailingTimer = nil
	}
}

func fileHash(info os.FileInfo) string {
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size())
}
