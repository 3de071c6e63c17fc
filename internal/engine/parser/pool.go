package parser

import (
	"fmt"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParserPool recycles tree-sitter parser instances for one grammar.
//
// Usage:
//
//	sp := pool.Get()
//	defer pool.Put(sp)
//	tree := sp.Parse(source, nil)
//
// Concurrency: safe for use by multiple goroutines simultaneously.
type ParserPool struct {
	lang *sitter.Language
	pool sync.Pool

	activeMu sync.Mutex
	active   int
}

// NewParserPool creates a pool for the given language grammar.
// The language must remain valid for the lifetime of the pool.
func NewParserPool(lang *sitter.Language) *ParserPool {
	p := &ParserPool{lang: lang}
	p.pool = sync.Pool{
		New: func() any {
			sp := sitter.NewParser()
			sp.SetLanguage(lang)
			return sp
		},
	}
	return p
}

// Get retrieves a parser from the pool, or allocates a new one if the pool is
// empty. The returned parser is already configured for the pool's language.
func (p *ParserPool) Get() *sitter.Parser {
	sp := p.pool.Get().(*sitter.Parser)
	sp.SetLanguage(p.lang)

	p.activeMu.Lock()
	p.active++
	p.activeMu.Unlock()

	return sp
}

// Put returns a parser to the pool for reuse. The parser is reset before
// being stored so that no references to previous parse trees are retained.
// Callers must not use sp after calling Put.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}

	p.activeMu.Lock()
	p.active--
	p.activeMu.Unlock()

	sp.Reset()
	p.pool.Put(sp)
}

// Parse parses source with a pooled parser. The caller owns the returned
// tree and must Close it.
func (p *ParserPool) Parse(source []byte) (*sitter.Tree, error) {
	sp := p.Get()
	defer p.Put(sp)

	tree := sp.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned no tree")
	}
	return tree, nil
}

// Stats returns the number of parsers currently checked out.
func (p *ParserPool) Stats() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return p.active
}
