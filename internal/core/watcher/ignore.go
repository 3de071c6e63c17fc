package watcher

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// IgnoreFileName is the gitignore-style file read from every directory of the
// project.
const IgnoreFileName = ".gitignore"

// GitignoreToGlobs converts gitignore lines into glob patterns relative to the
// directory holding the ignore file. Negations are not supported and are
// skipped along with blank lines and comments.
func GitignoreToGlobs(lines []string) []string {
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		slash := strings.Index(line, "/")
		if slash < 0 {
			out = append(out, "**/"+line, "**/"+line+"/**", line+"/**", line)
			continue
		}
		if slash == 0 {
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			trimmed := strings.TrimSuffix(line, "/")
			out = append(out, trimmed, trimmed+"/**")
			continue
		}
		out = append(out, line)
	}
	return out
}

// IgnoreRules decides which project paths the watcher skips. Paths are
// matched in slash form relative to the project root.
type IgnoreRules struct {
	globs []glob.Glob
	keep  func(path string) bool
}

// NewIgnoreRules compiles patterns. keep exempts files from the hidden-path
// rule; it may be nil.
func NewIgnoreRules(patterns []string, keep func(path string) bool) (*IgnoreRules, error) {
	r := &IgnoreRules{keep: keep}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		r.globs = append(r.globs, g)
	}
	return r, nil
}

// LoadIgnoreRules reads every .gitignore under root (outside node_modules and
// hidden directories) and combines them with extra patterns.
func LoadIgnoreRules(root string, extra []string, keep func(path string) bool) (*IgnoreRules, error) {
	var patterns []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if p != root && (name == "node_modules" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != IgnoreFileName {
			return nil
		}
		lines, err := readLines(p)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		for _, g := range GitignoreToGlobs(lines) {
			if rel != "." {
				g = path.Join(rel, g)
			}
			patterns = append(patterns, g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, extra...)
	return NewIgnoreRules(patterns, keep)
}

func readLines(p string) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// Ignored reports whether rel, a slash-separated path relative to the project
// root, should be skipped. Any dot-file or dot-directory is hidden unless keep
// accepts the file.
func (r *IgnoreRules) Ignored(rel string, isDir bool) bool {
	if rel == "" || rel == "." {
		return false
	}
	segments := strings.Split(rel, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ".") || seg == "." || seg == ".." {
			continue
		}
		last := i == len(segments)-1
		if last && !isDir && r.keep != nil && r.keep(rel) {
			continue
		}
		return true
	}
	for _, g := range r.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
