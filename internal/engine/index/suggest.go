package index

import (
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"dwmm/internal/engine/parser"
)

// SuggestOptions select and render suggestions for one identifier. File is
// the importing file; paths are rendered relative to it.
type SuggestOptions struct {
	Identifier string
	File       string
	Kind       Kind
	Mode       parser.Mode
}

type Suggestion struct {
	Code string `json:"code"`
}

var (
	knownExtensions = []string{".d.ts", ".tsx", ".ts", ".jsx", ".mjs", ".cjs", ".js", ".json"}
	packageName     = regexp.MustCompile(`^(@[^/]+/)?[^/]+`)
)

// candidate is an aggregate with its rendered source path and rank keys.
type candidate struct {
	snapshot
	path        string
	local       bool
	nodeModules bool
}

// Suggest returns ready-to-insert import statements for opts.Identifier,
// best first. An unknown identifier yields an empty list.
func (ix *Index) Suggest(opts SuggestOptions) []Suggestion {
	var candidates []candidate
	for _, snap := range ix.snapshots(opts.Identifier) {
		if snap.kind != KindBoth && opts.Kind != "" && snap.kind != opts.Kind {
			continue
		}
		path, nodeModules := ix.resolveFrom(snap.from, opts.File)
		candidates = append(candidates, candidate{
			snapshot:    snap,
			path:        path,
			local:       filepath.IsAbs(snap.from) && !nodeModules,
			nodeModules: nodeModules,
		})
	}

	rankCandidates(candidates)

	out := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Suggestion{Code: render(c, opts)})
	}
	return out
}

// rankCandidates orders by, in turn: preferred first; local sources by path
// length, others last; node_modules before natives; more sources first; path.
func rankCandidates(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.preferred != b.preferred {
			return a.preferred
		}
		if la, lb := localLength(a), localLength(b); la != lb {
			return la < lb
		}
		if ka, kb := boolRank(a.nodeModules), boolRank(b.nodeModules); ka != kb {
			return ka < kb
		}
		if a.numSources != b.numSources {
			return a.numSources > b.numSources
		}
		if a.path != b.path {
			return a.path < b.path
		}
		if as, bs := a.imported.String(), b.imported.String(); as != bs {
			return as < bs
		}
		return a.kind < b.kind
	})
}

func localLength(c candidate) float64 {
	if !c.local {
		return math.Inf(1)
	}
	return float64(len(c.path))
}

func boolRank(first bool) int {
	if first {
		return -1
	}
	return 1
}

// resolveFrom renders from as an import path for file. Paths inside
// node_modules become package requests, shortened to the bare package name
// when the package resolves to exactly that file.
func (ix *Index) resolveFrom(from, file string) (string, bool) {
	if !filepath.IsAbs(from) {
		return from, false
	}
	if rel, ok := nodeModulesRelative(from); ok {
		if pkg := packageName.FindString(rel); pkg != "" && ix.resolver != nil {
			if resolved, err := ix.resolver.Resolve(pkg, ix.projectRoot); err == nil && resolved == from {
				return pkg, true
			}
		}
		return stripExtension(rel), true
	}

	base := ix.projectRoot
	if file != "" {
		base = filepath.Dir(file)
	}
	rel, err := filepath.Rel(base, from)
	if err != nil {
		return filepath.ToSlash(stripExtension(from)), false
	}
	rel = stripExtension(filepath.ToSlash(rel))
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel, false
}

// nodeModulesRelative returns from relative to its innermost node_modules
// directory, in slash form.
func nodeModulesRelative(from string) (string, bool) {
	slashed := filepath.ToSlash(from)
	i := strings.LastIndex(slashed, "/node_modules/")
	if i < 0 {
		return "", false
	}
	return slashed[i+len("/node_modules/"):], true
}

// stripExtension drops a known source extension and then a trailing
// "/index". Other dots are kept, so "lib/v1.0.js" becomes "lib/v1.0".
func stripExtension(p string) string {
	for _, ext := range knownExtensions {
		if strings.HasSuffix(p, ext) && len(p) > len(ext) {
			p = strings.TrimSuffix(p, ext)
			if strings.HasSuffix(p, "/index") {
				p = strings.TrimSuffix(p, "/index")
			}
			return p
		}
	}
	return p
}

func effectiveKind(aggregate, requested Kind) Kind {
	kind := aggregate
	if aggregate == KindBoth {
		kind = requested
	}
	if kind == "" || kind == KindBoth {
		return KindValue
	}
	return kind
}

func render(c candidate, opts SuggestOptions) string {
	kind := effectiveKind(c.kind, opts.Kind)
	quoted := `"` + c.path + `"`
	if opts.Mode == parser.ModeRequire && kind == KindValue {
		switch c.imported.Type {
		case ImportedNamespace, ImportedDefault:
			return "const " + c.importAs + " = require(" + quoted + ")"
		}
		binding := c.imported.Name
		if c.importAs != c.imported.Name {
			binding += ": " + c.importAs
		}
		return "const {" + binding + "} = require(" + quoted + ")"
	}

	typePrefix := ""
	if kind == KindType {
		typePrefix = "type "
	}
	switch c.imported.Type {
	case ImportedNamespace:
		return "import " + typePrefix + "* as " + c.importAs + " from " + quoted
	case ImportedDefault:
		return "import " + typePrefix + c.importAs + " from " + quoted
	}
	binding := c.imported.Name
	if c.importAs != c.imported.Name {
		binding += " as " + c.importAs
	}
	return "import { " + typePrefix + binding + " } from " + quoted
}
