package util

import (
	"path"
	"sort"
	"strings"
)

// SlashClean converts a filesystem path to a cleaned, slash-separated form so
// watcher paths and gitignore-relative paths compare equal on every OS. The
// project root itself ("." after cleaning) becomes "".
func SlashClean(s string) string {
	clean := path.Clean(strings.TrimSpace(strings.ReplaceAll(s, "\\", "/")))
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// HasPathPrefix reports whether p is dir or lies beneath it.
func HasPathPrefix(p, dir string) bool {
	p, dir = SlashClean(p), SlashClean(dir)
	switch {
	case p == "" || dir == "":
		return p == dir
	case p == dir:
		return true
	case dir == "/":
		return strings.HasPrefix(p, "/")
	}
	return strings.HasPrefix(p, dir+"/")
}

func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
