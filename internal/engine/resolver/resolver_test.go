package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"dwmm/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package.json":                        `{"name": "project"}`,
		"src/a.js":                            "",
		"src/b.ts":                            "",
		"src/dir/index.tsx":                   "",
		"src/types.d.ts":                      "",
		"node_modules/lodash/package.json":    `{"main": "lodash.js"}`,
		"node_modules/lodash/lodash.js":       "",
		"node_modules/lodash/debounce.js":     "",
		"node_modules/@scope/pkg/index.js":    "",
		"node_modules/nomain/package.json":    `{"main": "lib"}`,
		"node_modules/nomain/lib/index.js":    "",
		"src/node_modules/local/index.js":     "",
		"node_modules/broken/package.json":    `{not json`,
		"node_modules/broken/index.js":        "",
	})
	src := filepath.Join(root, "src")
	r := New(nil, 16)

	cases := []struct {
		request, basedir, want string
	}{
		{"./a", src, "src/a.js"},
		{"./a.js", src, "src/a.js"},
		{"./b", src, "src/b.ts"},
		{"./dir", src, "src/dir/index.tsx"},
		{"./types", src, "src/types.d.ts"},
		{"../src/a", filepath.Join(src, "dir"), "src/a.js"},
		{"lodash", src, "node_modules/lodash/lodash.js"},
		{"lodash/debounce", src, "node_modules/lodash/debounce.js"},
		{"@scope/pkg", src, "node_modules/@scope/pkg/index.js"},
		{"nomain", root, "node_modules/nomain/lib/index.js"},
		{"local", src, "src/node_modules/local/index.js"},
		{"broken", root, "node_modules/broken/index.js"},
	}
	for _, tc := range cases {
		got, err := r.Resolve(tc.request, tc.basedir)
		require.NoError(t, err, tc.request)
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(tc.want)), got, tc.request)
	}

	abs := filepath.Join(src, "a.js")
	got, err := r.Resolve(abs, root)
	require.NoError(t, err)
	assert.Equal(t, abs, got)
}

func TestResolveBuiltins(t *testing.T) {
	r := New(nil, 0)
	for _, name := range []string{"fs", "node:fs", "fs/promises", "child_process"} {
		got, err := r.Resolve(name, t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, name, got)
		assert.False(t, filepath.IsAbs(got))
	}
}

func TestResolveNotFound(t *testing.T) {
	r := New(nil, 16)
	_, err := r.Resolve("glab", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	_, err = r.Resolve("./missing", t.TempDir())
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestResolveCachesUntilPurge(t *testing.T) {
	root := t.TempDir()
	r := New(nil, 16)

	_, err := r.Resolve("./late", root)
	require.Error(t, err)

	writeFiles(t, root, map[string]string{"late.js": ""})
	_, err = r.Resolve("./late", root)
	require.Error(t, err, "failure should be memoized")

	r.Purge()
	got, err := r.Resolve("./late", root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "late.js"), got)
}

func TestBuiltinModules(t *testing.T) {
	mods := BuiltinModules()
	assert.Contains(t, mods, "fs")
	assert.Contains(t, mods, "path")
	assert.NotContains(t, mods, "fs/promises")
	assert.True(t, IsBuiltinModule("node:test"))
	assert.False(t, IsBuiltinModule("lodash"))
}
