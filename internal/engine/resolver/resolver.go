package resolver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"dwmm/internal/core/errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultExtensions are tried, in order, when a request names a file without
// its extension.
var DefaultExtensions = []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".d.ts", ".json"}

type cacheKey struct {
	request string
	basedir string
}

type cacheEntry struct {
	path string
	err  error
}

// Resolver implements Node's module resolution algorithm: relative and
// absolute requests are loaded as a file or directory; bare requests are
// looked up in node_modules directories from basedir upward. Core modules
// resolve to themselves.
//
// Results, including failures, are memoized until Purge.
type Resolver struct {
	extensions []string
	cache      *lru.Cache[cacheKey, cacheEntry]
}

func New(extensions []string, cacheSize int) *Resolver {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	r := &Resolver{extensions: extensions}
	if cacheSize > 0 {
		cache, err := lru.New[cacheKey, cacheEntry](cacheSize)
		if err == nil {
			r.cache = cache
		}
	}
	return r
}

// Resolve returns the absolute path request refers to from basedir. Core
// modules are returned unchanged, so callers can tell them apart by
// checking filepath.IsAbs.
func (r *Resolver) Resolve(request, basedir string) (string, error) {
	key := cacheKey{request: request, basedir: basedir}
	if r.cache != nil {
		if entry, ok := r.cache.Get(key); ok {
			return entry.path, entry.err
		}
	}

	path, err := r.resolve(request, basedir)
	if r.cache != nil {
		r.cache.Add(key, cacheEntry{path: path, err: err})
	}
	return path, err
}

// Purge drops memoized results. File additions and removals can change how
// a request resolves.
func (r *Resolver) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

func (r *Resolver) resolve(request, basedir string) (string, error) {
	if IsBuiltinModule(request) {
		return request, nil
	}

	if isPathRequest(request) {
		target := request
		if !filepath.IsAbs(target) {
			target = filepath.Join(basedir, filepath.FromSlash(request))
		}
		if path, ok := r.loadAsFile(target); ok {
			return path, nil
		}
		if path, ok := r.loadAsDirectory(target); ok {
			return path, nil
		}
		return "", notFound(request, basedir)
	}

	for _, dir := range nodeModulesPaths(basedir) {
		target := filepath.Join(dir, filepath.FromSlash(request))
		if path, ok := r.loadAsFile(target); ok {
			return path, nil
		}
		if path, ok := r.loadAsDirectory(target); ok {
			return path, nil
		}
	}
	return "", notFound(request, basedir)
}

func notFound(request, basedir string) error {
	err := errors.New(errors.CodeNotFound, "cannot find module '"+request+"'")
	err = errors.AddContext(err, errors.CtxSymbol, request)
	return errors.AddContext(err, errors.CtxPath, basedir)
}

func isPathRequest(request string) bool {
	return request == "." || request == ".." ||
		strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../") ||
		filepath.IsAbs(request) || strings.HasPrefix(request, "/")
}

func (r *Resolver) loadAsFile(target string) (string, bool) {
	if isFile(target) {
		return target, true
	}
	for _, ext := range r.extensions {
		if isFile(target + ext) {
			return target + ext, true
		}
	}
	return "", false
}

func (r *Resolver) loadAsDirectory(target string) (string, bool) {
	if main := packageMain(filepath.Join(target, "package.json")); main != "" {
		entry := filepath.Join(target, filepath.FromSlash(main))
		if path, ok := r.loadAsFile(entry); ok {
			return path, true
		}
		if path, ok := r.loadIndex(entry); ok {
			return path, true
		}
	}
	return r.loadIndex(target)
}

func (r *Resolver) loadIndex(dir string) (string, bool) {
	for _, ext := range r.extensions {
		path := filepath.Join(dir, "index"+ext)
		if isFile(path) {
			return path, true
		}
	}
	return "", false
}

func packageMain(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return pkg.Main
}

// nodeModulesPaths lists node_modules directories from dir up to the
// filesystem root, nearest first.
func nodeModulesPaths(dir string) []string {
	var out []string
	for {
		if filepath.Base(dir) != "node_modules" {
			out = append(out, filepath.Join(dir, "node_modules"))
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return out
		}
		dir = parent
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
