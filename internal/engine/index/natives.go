package index

import (
	"strings"

	"dwmm/internal/shared/util"
)

// IsIndexableNative filters out internal and deprecated core modules.
func IsIndexableNative(name string) bool {
	return name != "" && !strings.HasPrefix(name, "_") && !strings.Contains(name, "/") && name != "sys"
}

// NativeSources builds the synthetic module for a runtime core module: a
// default import named after the module and a named import per export.
func NativeSources(name string, exports []string) []ImportSource {
	sources := []ImportSource{{
		Imported: Default(),
		ImportAs: CamelCase(name),
		From:     name,
		Kind:     KindValue,
	}}
	for _, export := range exports {
		if export == "" || export == "default" {
			continue
		}
		sources = append(sources, ImportSource{
			Imported: Named(export),
			ImportAs: export,
			From:     name,
			Kind:     KindValue,
		})
	}
	return sources
}

// DeclareNatives declares one synthetic module per core module.
func (ix *Index) DeclareNatives(natives map[string][]string) int {
	declared := 0
	for _, name := range util.SortedStringKeys(natives) {
		if !IsIndexableNative(name) {
			continue
		}
		ix.DeclareSynthetic(name, NativeSources(name, natives[name]))
		declared++
	}
	return declared
}
