package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ProjectMarker identifies a project root.
const ProjectMarker = "package.json"

// TempFiles names the per-project files shared by a daemon and its clients.
type TempFiles struct {
	Dir  string
	Lock string
	Sock string
	Pids string
	Log  string
}

// ProjectKey escapes an absolute project root into a single path segment.
func ProjectKey(root string) string {
	return strings.NewReplacer("/", "zS", "\\", "zS").Replace(root)
}

// TempFilesFor returns the temp file set for an absolute project root. On
// Windows Sock is a named pipe rather than a file under tempDir.
func TempFilesFor(tempDir, root string) TempFiles {
	key := ProjectKey(root)
	prefix := prefixPath(tempDir, key)
	return TempFiles{
		Dir:  tempDir,
		Lock: prefix + ".lock",
		Sock: socketPath(tempDir, key),
		Pids: prefix + ".pids",
		Log:  prefix + ".log",
	}
}

func prefixPath(tempDir, key string) string {
	return filepath.Join(tempDir, key)
}

// EnsureDir creates the shared temp directory.
func (t TempFiles) EnsureDir() error {
	return os.MkdirAll(t.Dir, 0o755)
}

// Cleanup removes every file except the log, which outlives the daemon.
func (t TempFiles) Cleanup() error {
	var errs []error
	if err := removeSocket(t.Sock); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	for _, path := range []string{t.Pids, t.Lock} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ErrNoProjectRoot is returned when no ancestor contains a package.json.
var ErrNoProjectRoot = errors.New("no package.json found in any parent directory")

// RootFinder memoizes nearest-project-root lookups per directory.
type RootFinder struct {
	cache *lru.Cache[string, string]
}

func NewRootFinder(size int) *RootFinder {
	if size <= 0 {
		size = 1024
	}
	cache, _ := lru.New[string, string](size)
	return &RootFinder{cache: cache}
}

// Find returns the nearest directory at or above path that contains a
// package.json.
func (f *RootFinder) Find(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	dir := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	var visited []string
	for {
		if root, ok := f.cache.Get(dir); ok {
			f.remember(visited, root)
			return root, nil
		}
		visited = append(visited, dir)
		if _, err := os.Stat(filepath.Join(dir, ProjectMarker)); err == nil {
			f.remember(visited, dir)
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoProjectRoot
		}
		dir = parent
	}
}

func (f *RootFinder) remember(dirs []string, root string) {
	for _, dir := range dirs {
		f.cache.Add(dir, root)
	}
}
