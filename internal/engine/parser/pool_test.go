package parser

import (
	"sync"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
)

func jsLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_javascript.Language())
}

func TestParserPool_GetPut(t *testing.T) {
	pool := NewParserPool(jsLanguage())

	sp := pool.Get()
	if sp == nil {
		t.Fatal("expected non-nil parser from pool")
	}
	if got := pool.Stats(); got != 1 {
		t.Fatalf("expected 1 active parser, got %d", got)
	}

	pool.Put(sp)
	if got := pool.Stats(); got != 0 {
		t.Fatalf("expected 0 active parsers, got %d", got)
	}
}

func TestParserPool_PutNil(t *testing.T) {
	pool := NewParserPool(jsLanguage())

	// Put(nil) must be a no-op.
	pool.Put(nil)
}

func TestParserPool_ParsesValidJavaScript(t *testing.T) {
	pool := NewParserPool(jsLanguage())

	tree, err := pool.Parse([]byte("import foo from 'foo'\nfoo()\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		t.Fatal("expected error-free root node")
	}
	if root.Kind() != "program" {
		t.Fatalf("expected program root, got %s", root.Kind())
	}
}

func TestParserPool_ConcurrentAccess(t *testing.T) {
	pool := NewParserPool(jsLanguage())

	const goroutines = 20
	const iters = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)

	src := []byte("const x = require('x')\n")

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				tree, err := pool.Parse(src)
				if err != nil {
					t.Errorf("parse: %v", err)
					continue
				}
				tree.Close()
			}
		}()
	}

	wg.Wait()
	if got := pool.Stats(); got != 0 {
		t.Fatalf("expected all parsers returned, got %d active", got)
	}
}

func TestParserPool_LanguageSetAfterReset(t *testing.T) {
	pool := NewParserPool(jsLanguage())

	sp := pool.Get()
	sp.Reset()
	pool.Put(sp)

	sp2 := pool.Get()
	defer pool.Put(sp2)

	tree := sp2.Parse([]byte("export const ok = 1\n"), nil)
	if tree == nil {
		t.Fatal("parser should still parse correctly after Get")
	}
	defer tree.Close()
}

func TestGrammarForPath(t *testing.T) {
	cases := map[string]Grammar{
		"a.js":          GrammarTSX,
		"a.jsx":         GrammarTSX,
		"a.tsx":         GrammarTSX,
		"a.ts":          GrammarTypeScript,
		"types/a.d.ts":  GrammarTypeScript,
		"a.mjs":         GrammarJavaScript,
		"a.cjs":         GrammarJavaScript,
		"dir.ts/a.json": GrammarTSX,
	}
	for path, want := range cases {
		if got := GrammarForPath(path); got != want {
			t.Errorf("GrammarForPath(%q) = %s, want %s", path, got, want)
		}
	}
}
