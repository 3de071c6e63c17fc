package ports

import (
	"context"

	"dwmm/internal/engine/parser"
)

// CodeParser abstracts source parsing for the indexer and daemon.
type CodeParser interface {
	Parse(path string, code []byte) ([]parser.Declaration, error)
	UndefinedIdentifiers(path string, code []byte) ([]parser.UndefinedIdentifier, error)
	Mode(path string, code []byte) (parser.Mode, error)
	ImportDeclaration(code string) (*parser.ImportDeclarationNode, error)
	RequireDeclaration(code string) (*parser.VariableDeclarationNode, error)
}

// ModuleResolver resolves an import request to an absolute file path. Core
// modules resolve to a non-absolute name.
type ModuleResolver interface {
	Resolve(request, basedir string) (string, error)
	Purge()
}

// NativesLoader returns the exported names of each runtime core module.
type NativesLoader interface {
	LoadNatives(ctx context.Context) (map[string][]string, error)
}

// PreferredImportsLoader evaluates a configuration plugin and returns the
// import statements it prefers.
type PreferredImportsLoader interface {
	// Supports reports whether the loader can evaluate the file.
	Supports(path string) bool
	LoadPreferredImports(ctx context.Context, path string) ([]string, error)
}

// DeclarationCache persists parsed declarations keyed by file path and
// content hash so unchanged files skip parsing on restart.
type DeclarationCache interface {
	Get(ctx context.Context, path, hash string) ([]parser.Declaration, bool, error)
	Put(ctx context.Context, path, hash string, decls []parser.Declaration) error
	Delete(ctx context.Context, path string) error
	Close() error
}
