package resolver

import (
	_ "embed"
	"sort"
	"strings"
)

//go:embed stdlib/node.txt
var nodeStdlibData string

var nodeStdlib = map[string]bool{}

func init() {
	for _, line := range strings.Split(nodeStdlibData, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			nodeStdlib[line] = true
		}
	}
}

// IsBuiltinModule reports whether request names a Node core module, with or
// without the `node:` prefix.
func IsBuiltinModule(request string) bool {
	if strings.HasPrefix(request, "node:") {
		return true
	}
	return nodeStdlib[request]
}

// BuiltinModules returns the top-level Node core module names, sorted.
func BuiltinModules() []string {
	out := make([]string, 0, len(nodeStdlib))
	for name := range nodeStdlib {
		if !strings.Contains(name, "/") {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
