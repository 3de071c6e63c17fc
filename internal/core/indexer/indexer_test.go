package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dwmm/internal/core/config"
	"dwmm/internal/core/watcher"
	"dwmm/internal/engine/index"
	"dwmm/internal/engine/parser"
	"dwmm/internal/engine/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNatives struct {
	natives map[string][]string
	err     error
}

func (f fakeNatives) LoadNatives(context.Context) (map[string][]string, error) {
	return f.natives, f.err
}

type fakePlugin struct {
	snippets []string
	err      error
	calls    int
	mu       sync.Mutex
}

func (f *fakePlugin) Supports(path string) bool { return filepath.Ext(path) == ".js" }

func (f *fakePlugin) LoadPreferredImports(context.Context, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snippets, f.err
}

// slowParser delays every Parse, standing in for a large file.
type slowParser struct {
	*parser.Parser
	delay  time.Duration
	parsed atomic.Int32
}

func (p *slowParser) Parse(path string, code []byte) ([]parser.Declaration, error) {
	time.Sleep(p.delay)
	p.parsed.Add(1)
	return p.Parser.Parse(path, code)
}

type fixture struct {
	t       *testing.T
	root    string
	index   *index.Index
	indexer *Indexer
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	root := t.TempDir()
	watch := config.Default().Watch
	res := resolver.New(nil, 64)
	ix := index.New(index.Options{
		ProjectRoot:  root,
		Resolver:     res,
		IsConfigFile: watch.IsConfigFile,
	})
	opts := Options{
		Index:            ix,
		Parser:           parser.New(),
		Resolver:         res,
		IsConfigFile:     watch.IsConfigFile,
		IsSourceFile:     watch.IsSourceFile,
		ProgressInterval: 20 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	f := &fixture{t: t, root: root, index: ix, indexer: New(opts)}
	t.Cleanup(f.indexer.Close)
	f.write("package.json", `{"name": "fixture"}`)
	return f
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.root, filepath.FromSlash(name))
}

func (f *fixture) write(name, content string) string {
	f.t.Helper()
	p := f.path(name)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(f.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (f *fixture) suggest(identifier, from string) []string {
	var out []string
	for _, s := range f.index.Suggest(index.SuggestOptions{Identifier: identifier, File: f.path(from)}) {
		out = append(out, s.Code)
	}
	return out
}

func addEvents(paths ...string) []watcher.Event {
	events := make([]watcher.Event, 0, len(paths))
	for _, p := range paths {
		events = append(events, watcher.Event{Op: watcher.OpAdd, Path: p})
	}
	return events
}

func TestInitialScanBecomesReady(t *testing.T) {
	f := newFixture(t, nil)
	a := f.write("src/a.js", "export const alpha = 1")
	b := f.write("src/b.ts", "export interface Beta {}")

	readyCount := 0
	f.indexer.OnReady(func() { readyCount++ })

	f.indexer.HandleEvents(context.Background(), addEvents(a, b))
	assert.False(t, f.indexer.IsReady(), "not ready before the initial scan completes")
	assert.Equal(t, Progress{Completed: 2, Total: 2}, f.indexer.Progress())

	f.indexer.HandleEvents(context.Background(), []watcher.Event{{Op: watcher.OpReady}})
	assert.True(t, f.indexer.IsReady())
	assert.Equal(t, 1, readyCount)

	require.NoError(t, f.indexer.WaitUntilReady(context.Background()))
	assert.Equal(t, []string{`import { alpha } from "./src/a"`}, f.suggest("alpha", "index.js"))
	assert.Equal(t, []string{`import { type Beta } from "./src/b"`}, f.suggest("Beta", "index.js"))
}

func TestWaitUntilReadyBlocks(t *testing.T) {
	f := newFixture(t, nil)
	a := f.write("a.js", "export default function a() {}")

	done := make(chan error, 1)
	go func() { done <- f.indexer.WaitUntilReady(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitUntilReady returned before the initial scan")
	case <-time.After(50 * time.Millisecond):
	}

	events := append(addEvents(a), watcher.Event{Op: watcher.OpReady})
	f.indexer.HandleEvents(context.Background(), events)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitUntilReady did not return after ready")
	}
}

func TestWaitUntilReadyHonorsContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.indexer.WaitUntilReady(ctx), context.DeadlineExceeded)
}

func TestChangeAndUnlink(t *testing.T) {
	f := newFixture(t, nil)
	a := f.write("a.js", "export const first = 1")
	f.indexer.HandleEvents(context.Background(), append(addEvents(a), watcher.Event{Op: watcher.OpReady}))
	require.Len(t, f.suggest("first", "b.js"), 1)

	f.write("a.js", "export const second = 2")
	f.indexer.HandleEvents(context.Background(), []watcher.Event{{Op: watcher.OpChange, Path: a}})
	assert.Empty(t, f.suggest("first", "b.js"))
	assert.Equal(t, []string{`import { second } from "./a"`}, f.suggest("second", "b.js"))
	assert.True(t, f.indexer.IsReady())

	f.indexer.HandleEvents(context.Background(), []watcher.Event{{Op: watcher.OpUnlink, Path: a}})
	assert.Empty(t, f.suggest("second", "b.js"))
	assert.Equal(t, Progress{Completed: 0, Total: 0}, f.indexer.Progress())
	_, ok := f.index.Module(a)
	assert.False(t, ok)
}

func TestUnreadableFileIsDroppedWithError(t *testing.T) {
	f := newFixture(t, nil)
	good := f.write("good.js", "export const good = 1")
	missing := f.path("missing.js")

	var errs []error
	var mu sync.Mutex
	f.indexer.OnError(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})

	f.indexer.HandleEvents(context.Background(), append(addEvents(good, missing), watcher.Event{Op: watcher.OpReady}))

	assert.True(t, f.indexer.IsReady())
	assert.Equal(t, Progress{Completed: 1, Total: 1}, f.indexer.Progress())
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "missing.js")
	assert.Len(t, f.suggest("good", "x.js"), 1)
}

func TestProgressIsThrottledButNotDropped(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ProgressInterval = 200 * time.Millisecond })
	var (
		mu      sync.Mutex
		updates []Progress
	)
	f.indexer.OnProgress(func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, p)
	})

	var paths []string
	for _, name := range []string{"a.js", "b.js", "c.js", "d.js", "e.js"} {
		paths = append(paths, f.write(name, "export const x = 1"))
	}
	f.indexer.HandleEvents(context.Background(), addEvents(paths...))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) > 0 && updates[len(updates)-1] == Progress{Completed: 5, Total: 5}
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, len(updates), 5, "progress updates should be coalesced")
	assert.Equal(t, Progress{Completed: 0, Total: 5}, updates[0])
}

func TestLoadNatives(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Natives = fakeNatives{natives: map[string][]string{
			"child_process": {"spawn", "exec"},
			"vm":            {"Script"},
			"_http_agent":   {"Agent"},
			"sys":           {"inspect"},
		}}
	})
	assert.Equal(t, 2, f.indexer.LoadNatives(context.Background()))
	assert.Equal(t, []string{`import { spawn } from "child_process"`}, f.suggest("spawn", "index.js"))
	assert.Equal(t, []string{`import vm from "vm"`}, f.suggest("vm", "index.js"))
	assert.Empty(t, f.suggest("inspect", "index.js"))
}

func TestLoadNativesFailureIsTolerated(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Natives = fakeNatives{err: errors.New("node: not found")}
	})
	assert.Equal(t, 0, f.indexer.LoadNatives(context.Background()))
}

func TestFallbackNatives(t *testing.T) {
	loader := FallbackNatives{
		Primary:   fakeNatives{err: errors.New("boom")},
		Secondary: StaticNatives{},
	}
	natives, err := loader.LoadNatives(context.Background())
	require.NoError(t, err)
	assert.Contains(t, natives, "fs")
	assert.Contains(t, natives, "child_process")

	loader.Secondary = nil
	_, err = loader.LoadNatives(context.Background())
	assert.Error(t, err)
}

func TestConfigFileSnippetsArePreferred(t *testing.T) {
	plugin := &fakePlugin{snippets: []string{
		`import get from "lodash/get"`,
		`const { map } = require("lodash")`,
	}}
	f := newFixture(t, func(o *Options) { o.Plugins = plugin })
	other := f.write("src/get.js", "export default function get() {}")
	cfg := f.write(".dude-wheres-my-module.js", "module.exports = []")

	f.indexer.HandleEvents(context.Background(), append(addEvents(other, cfg), watcher.Event{Op: watcher.OpReady}))

	assert.Equal(t, 1, plugin.calls)
	got := f.suggest("get", "index.js")
	require.Len(t, got, 2)
	assert.Equal(t, `import get from "lodash/get"`, got[0])
	assert.Equal(t, []string{`import { map } from "lodash"`}, f.suggest("map", "index.js"))
}

func TestConfigPluginFailureFallsBackToSource(t *testing.T) {
	plugin := &fakePlugin{err: errors.New("SyntaxError: Cannot use import statement outside a module")}
	f := newFixture(t, func(o *Options) { o.Plugins = plugin })
	cfg := f.write(".dude-wheres-my-module.js", `import moment from "moment"`)

	f.indexer.HandleEvents(context.Background(), append(addEvents(cfg), watcher.Event{Op: watcher.OpReady}))

	assert.Equal(t, []string{`import moment from "moment"`}, f.suggest("moment", "index.js"))
}

func TestRisorConfigPlugin(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Plugins = Plugins{&fakePlugin{}, &RisorPlugin{Timeout: time.Second}}
	})
	cfg := f.write(".dude-wheres-my-module.risor", `
prefix := "import axios from "
[prefix + "'axios'"]
`)
	f.indexer.HandleEvents(context.Background(), append(addEvents(cfg), watcher.Event{Op: watcher.OpReady}))
	assert.Equal(t, []string{`import axios from "axios"`}, f.suggest("axios", "index.js"))
}

func TestRisorPluginRejectsNonList(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".dude-wheres-my-module.risor")
	require.NoError(t, os.WriteFile(p, []byte(`"import a from 'a'"`), 0o644))

	_, err := (&RisorPlugin{}).LoadPreferredImports(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a list")
}

func TestPluginsDispatch(t *testing.T) {
	js := &fakePlugin{snippets: []string{"x"}}
	plugins := Plugins{js, &RisorPlugin{}}
	assert.True(t, plugins.Supports("a/.dude-wheres-my-module.js"))
	assert.True(t, plugins.Supports("a/.dude-wheres-my-module.risor"))
	assert.False(t, plugins.Supports("a/config.toml"))

	_, err := plugins.LoadPreferredImports(context.Background(), "a/config.toml")
	assert.Error(t, err)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]parser.Declaration
	hashes  map[string]string
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]parser.Declaration{}, hashes: map[string]string{}}
}

func (c *memoryCache) Get(_ context.Context, path, hash string) ([]parser.Declaration, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hashes[path] != hash {
		return nil, false, nil
	}
	return c.entries[path], true, nil
}

func (c *memoryCache) Put(_ context.Context, path, hash string, decls []parser.Declaration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = decls
	c.hashes[path] = hash
	return nil
}

func (c *memoryCache) Delete(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
	delete(c.hashes, path)
	c.deleted = append(c.deleted, path)
	return nil
}

func (c *memoryCache) Close() error { return nil }

func TestDeclarationCacheIsConsulted(t *testing.T) {
	cache := newMemoryCache()
	f := newFixture(t, func(o *Options) { o.Cache = cache })
	a := f.write("a.js", "export const cached = 1")

	info, err := os.Stat(a)
	require.NoError(t, err)
	cache.hashes[a] = fileHash(info)
	cache.entries[a] = []parser.Declaration{{
		Type:       parser.DeclExportNamed,
		Specifiers: []parser.Specifier{{Type: parser.SpecExport, Local: "fromCache", Exported: "fromCache"}},
	}}

	f.indexer.HandleEvents(context.Background(), append(addEvents(a), watcher.Event{Op: watcher.OpReady}))
	assert.Len(t, f.suggest("fromCache", "b.js"), 1)
	assert.Empty(t, f.suggest("cached", "b.js"))

	f.indexer.HandleEvents(context.Background(), []watcher.Event{{Op: watcher.OpUnlink, Path: a}})
	assert.Equal(t, []string{a}, cache.deleted)
}

func TestHandleEventsStopsWhenContextDone(t *testing.T) {
	slow := &slowParser{Parser: parser.New(), delay: 50 * time.Millisecond}
	f := newFixture(t, func(o *Options) {
		o.Parser = slow
		o.Workers = 1
	})
	var paths []string
	for i := 0; i < 40; i++ {
		paths = append(paths, f.write(fmt.Sprintf("src/f%02d.js", i), fmt.Sprintf("export const v%d = %d", i, i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(120*time.Millisecond, cancel)
	start := time.Now()
	f.indexer.HandleEvents(ctx, append(addEvents(paths...), watcher.Event{Op: watcher.OpReady}))

	assert.Less(t, time.Since(start), time.Second, "cancellation must cut the scan short")
	assert.Less(t, int(slow.parsed.Load()), len(paths))
	assert.False(t, f.indexer.IsReady())
	assert.Equal(t, len(paths), f.indexer.Progress().Total)
}
