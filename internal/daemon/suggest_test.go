package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"dwmm/internal/core/config"
	"dwmm/internal/engine/index"
	"dwmm/internal/engine/parser"
	"dwmm/internal/engine/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSuggester(t *testing.T) (*Suggester, string) {
	t.Helper()
	root := t.TempDir()
	ix := index.New(index.Options{
		ProjectRoot:  root,
		Resolver:     resolver.New(nil, 16),
		IsConfigFile: config.Default().Watch.IsConfigFile,
		Logger:       testLogger(),
	})
	p := parser.New()
	decls, err := p.Parse("lib.ts", []byte("export const render = 1\nexport type Props = {}\n"))
	require.NoError(t, err)
	ix.DeclareModule(filepath.Join(root, "lib.ts"), decls)
	ix.DeclareNatives(map[string][]string{"path": {"join", "resolve"}})
	return &Suggester{Index: ix, Parser: p, Logger: testLogger()}, root
}

func TestSuggesterMergesRepeatedIdentifiers(t *testing.T) {
	s, root := newSuggester(t)
	code := []byte("import x from 'x'\nrender(join('a'))\nrender()\nlet p: Props\n")

	result, err := s.Suggest(context.Background(), filepath.Join(root, "main.ts"), code)
	require.NoError(t, err)

	require.Contains(t, result, "render")
	render := result["render"]
	assert.Equal(t, 2, render.Start.Line, "first occurrence wins")
	assert.Equal(t, "render(join('a'))", render.Context)
	assert.Equal(t, parser.KindValue, render.Kind)
	require.Len(t, render.Suggested, 1)
	assert.Equal(t, `import { render } from "./lib"`, render.Suggested[0].Code)

	node, ok := render.Suggested[0].AST.(*parser.ImportDeclarationNode)
	require.True(t, ok, "import suggestions carry an ImportDeclaration")
	assert.Equal(t, "ImportDeclaration", node.Type)
	assert.Equal(t, "./lib", node.Source.Value)

	require.Contains(t, result, "join")
	assert.Equal(t, `import { join } from "path"`, result["join"].Suggested[0].Code)

	require.Contains(t, result, "Props")
	assert.Equal(t, `import { type Props } from "./lib"`, result["Props"].Suggested[0].Code)
}

func TestSuggesterRequireMode(t *testing.T) {
	s, root := newSuggester(t)
	result, err := s.Suggest(context.Background(), filepath.Join(root, "main.js"), []byte("resolve('x')\n"))
	require.NoError(t, err)

	require.Contains(t, result, "resolve")
	sg := result["resolve"].Suggested
	require.Len(t, sg, 1)
	assert.Equal(t, `const {resolve} = require("path")`, sg[0].Code)
	node, ok := sg[0].AST.(*parser.VariableDeclarationNode)
	require.True(t, ok)
	assert.Equal(t, "const", node.Kind)
}

func TestSuggesterUnknownIdentifierHasNoSuggestions(t *testing.T) {
	s, root := newSuggester(t)
	result, err := s.Suggest(context.Background(), filepath.Join(root, "main.js"), []byte("mystery()\n"))
	require.NoError(t, err)
	require.Contains(t, result, "mystery")
	assert.Empty(t, result["mystery"].Suggested)
}

func TestSuggesterWheres(t *testing.T) {
	s, root := newSuggester(t)
	result := s.Wheres(context.Background(), "render", filepath.Join(root, "nested", "file.js"))
	require.Contains(t, result, "render")
	assert.Nil(t, result["render"].Start)
	require.Len(t, result["render"].Suggested, 1)
	assert.Equal(t, `import { render } from "../lib"`, result["render"].Suggested[0].Code)

	empty := s.Wheres(context.Background(), "nothing", filepath.Join(root, "file.js"))
	assert.Empty(t, empty["nothing"].Suggested)
}

func TestMergeSuggestedDedupes(t *testing.T) {
	merged := mergeSuggested(
		[]SuggestedImport{{Code: "a"}, {Code: "b"}},
		[]SuggestedImport{{Code: "b"}, {Code: "c"}},
	)
	codes := make([]string, 0, len(merged))
	for _, m := range merged {
		codes = append(codes, m.Code)
	}
	assert.Equal(t, []string{"a", "b", "c"}, codes)
}

func TestRequestKind(t *testing.T) {
	code := "x"
	assert.Equal(t, "suggest", Request{Suggest: &SuggestRequest{Code: &code}}.Kind())
	assert.Equal(t, "wheres", Request{Wheres: &WheresRequest{}}.Kind())
	assert.Equal(t, "waitUntilReady", Request{WaitUntilReady: &struct{}{}}.Kind())
	assert.Equal(t, "stop", Request{Stop: true}.Kind())
	assert.Equal(t, "kill", Request{Kill: true}.Kind())
	assert.Equal(t, "unknown", Request{}.Kind())
}
