package parser

import (
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

type Grammar string

const (
	GrammarJavaScript Grammar = "javascript"
	GrammarTypeScript Grammar = "typescript"
	GrammarTSX        Grammar = "tsx"
)

// GrammarForPath picks the grammar for a file. Plain .js and .jsx files use
// the TSX grammar so that JSX and inline type annotations both parse.
func GrammarForPath(path string) Grammar {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".d.ts"),
		strings.HasSuffix(name, ".ts"),
		strings.HasSuffix(name, ".mts"),
		strings.HasSuffix(name, ".cts"):
		return GrammarTypeScript
	case strings.HasSuffix(name, ".mjs"), strings.HasSuffix(name, ".cjs"):
		return GrammarJavaScript
	default:
		return GrammarTSX
	}
}

// grammarPools holds one parser pool per grammar.
type grammarPools struct {
	pools map[Grammar]*ParserPool
}

func newGrammarPools() *grammarPools {
	return &grammarPools{
		pools: map[Grammar]*ParserPool{
			GrammarJavaScript: NewParserPool(sitter.NewLanguage(tree_sitter_javascript.Language())),
			GrammarTypeScript: NewParserPool(sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())),
			GrammarTSX:        NewParserPool(sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())),
		},
	}
}

func (g *grammarPools) forPath(path string) *ParserPool {
	return g.pools[GrammarForPath(path)]
}
