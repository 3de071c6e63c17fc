package parser

import (
	"os"
	"strings"
	"time"

	"dwmm/internal/core/errors"
	"dwmm/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Parser extracts import/export declarations and unbound references from
// JavaScript, TypeScript and JSX sources. Safe for concurrent use.
//
// Syntax errors are tolerated: declarations are taken from the parts of the
// file that parse.
type Parser struct {
	pools *grammarPools
}

func New() *Parser {
	return &Parser{pools: newGrammarPools()}
}

// analysis is one parsed file. Callers must call close.
type analysis struct {
	ctx  *ExtractionContext
	tree *sitter.Tree
	root *sitter.Node
}

func (a *analysis) close() {
	a.tree.Close()
}

func (p *Parser) analyze(path string, code []byte) (*analysis, error) {
	grammar := GrammarForPath(path)
	start := time.Now()
	tree, err := p.pools.pools[grammar].Parse(code)
	observability.ParsingDuration.WithLabelValues(string(grammar)).Observe(time.Since(start).Seconds())
	if err != nil {
		err = errors.AddContext(errors.Wrap(err, errors.CodeParseFailure, "parse source"), errors.CtxPath, path)
		return nil, errors.AddContext(err, errors.CtxLanguage, string(grammar))
	}
	return &analysis{
		ctx:  &ExtractionContext{Source: code, Path: path},
		tree: tree,
		root: tree.RootNode(),
	}, nil
}

// Parse returns the import and export declarations of a file, with
// CommonJS `require()` usages normalized into import declarations.
func (p *Parser) Parse(path string, code []byte) ([]Declaration, error) {
	a, err := p.analyze(path, code)
	if err != nil {
		return nil, err
	}
	defer a.close()

	decls := extractDeclarations(a.ctx, a.root)
	scopes := analyzeScopes(a.ctx, a.root)
	decls = append(decls, extractRequires(a.ctx, a.root, scopes)...)
	return decls, nil
}

// ParseFile reads and parses path.
func (p *Parser) ParseFile(path string) ([]Declaration, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read source"), errors.CtxPath, path)
	}
	return p.Parse(path, code)
}

// UndefinedIdentifiers lists references with no binding in scope.
func (p *Parser) UndefinedIdentifiers(path string, code []byte) ([]UndefinedIdentifier, error) {
	a, err := p.analyze(path, code)
	if err != nil {
		return nil, err
	}
	defer a.close()

	return undefinedIdentifiers(a.ctx, a.root, analyzeScopes(a.ctx, a.root)), nil
}

// Mode reports whether generated imports for a file should use `import`
// statements: files with an @flow marker or a top-level import do.
func (p *Parser) Mode(path string, code []byte) (Mode, error) {
	a, err := p.analyze(path, code)
	if err != nil {
		return "", err
	}
	defer a.close()

	mode := ModeRequire
	NewExtractorEngine(map[string]NodeHandler{
		"comment": func(ctx *ExtractionContext, node *sitter.Node) bool {
			if strings.Contains(ctx.Text(node), "@flow") {
				mode = ModeImport
			}
			return true
		},
	}).Walk(a.ctx, a.root)
	if mode == ModeImport {
		return mode, nil
	}

	if ChildOfKind(a.root, "import_statement") != nil {
		return ModeImport, nil
	}
	return ModeRequire, nil
}

// ImportDeclaration parses a single import statement into its ESTree shape.
func (p *Parser) ImportDeclaration(code string) (*ImportDeclarationNode, error) {
	a, err := p.analyze("snippet.tsx", []byte(code))
	if err != nil {
		return nil, err
	}
	defer a.close()

	node := a.root.NamedChild(0)
	if node == nil || node.Kind() != "import_statement" || a.root.HasError() {
		return nil, errors.New(errors.CodeParseFailure, "not an import statement: "+code)
	}
	decl, ok := importStatement(a.ctx, node)
	if !ok {
		return nil, errors.New(errors.CodeParseFailure, "not an import statement: "+code)
	}
	return importDeclarationNode(decl, a.ctx.Text(node.ChildByFieldName("source"))), nil
}

// RequireDeclaration parses `const x = require("s")` or
// `const {a, b: c} = require("s")` into its ESTree shape.
func (p *Parser) RequireDeclaration(code string) (*VariableDeclarationNode, error) {
	a, err := p.analyze("snippet.js", []byte(code))
	if err != nil {
		return nil, err
	}
	defer a.close()

	fail := errors.New(errors.CodeParseFailure, "not a require declaration: "+code)
	node := a.root.NamedChild(0)
	if node == nil || node.Kind() != "lexical_declaration" || a.root.HasError() {
		return nil, fail
	}
	declarator := ChildOfKind(node, "variable_declarator")
	if declarator == nil {
		return nil, fail
	}
	decls := extractRequires(a.ctx, declarator, analyzeScopes(a.ctx, a.root))
	if len(decls) == 0 {
		return nil, fail
	}
	args := declarator.ChildByFieldName("value").ChildByFieldName("arguments")
	return requireDeclarationNode(decls[0], a.ctx.Text(args.NamedChild(0))), nil
}
