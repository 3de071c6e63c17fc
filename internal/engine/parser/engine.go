package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node during a walk.
// Returns true if the handler has processed children and the walker should stop.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext carries the source being walked and shared helpers.
type ExtractionContext struct {
	Source            []byte
	Path              string
	ProcessedChildren bool // If true, the walker will skip this node's children
}

func (c *ExtractionContext) ResetProcessedChildren() {
	c.ProcessedChildren = false
}

// ExtractorEngine walks the syntax tree and dispatches node handlers by kind.
type ExtractorEngine struct {
	handlers map[string]NodeHandler
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

func (e *ExtractorEngine) Walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}

	ctx.ResetProcessedChildren()
	stop := false
	if handler, ok := e.handlers[node.Kind()]; ok {
		stop = handler(ctx, node)
	}

	if !stop && !ctx.ProcessedChildren {
		for i := uint(0); i < node.ChildCount(); i++ {
			e.Walk(ctx, node.Child(i))
		}
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[node.StartByte():node.EndByte()])
}

// StringValue returns the contents of a string literal node without quotes.
func (c *ExtractionContext) StringValue(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	found := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "string_fragment", "escape_sequence":
			b.WriteString(c.Text(child))
			found = true
		}
	}
	if found {
		return b.String()
	}
	return strings.Trim(c.Text(node), "'\"`")
}

func (c *ExtractionContext) Start(node *sitter.Node) Position {
	p := node.StartPosition()
	return Position{Line: int(p.Row) + 1, Column: int(p.Column)}
}

func (c *ExtractionContext) End(node *sitter.Node) Position {
	p := node.EndPosition()
	return Position{Line: int(p.Row) + 1, Column: int(p.Column)}
}

// ChildOfKind returns the first direct child with the given kind.
func ChildOfKind(node *sitter.Node, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		for _, kind := range kinds {
			if child.Kind() == kind {
				return child
			}
		}
	}
	return nil
}

// HasChildToken reports whether node has a direct anonymous child with the
// given text, such as the `type` in `import type`.
func HasChildToken(node *sitter.Node, token string) bool {
	if node == nil {
		return false
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if !child.IsNamed() && child.Kind() == token {
			return true
		}
	}
	return false
}

// nodeKey identifies a node within one tree.
type nodeKey struct {
	start, end uint
	kind       string
}

func keyOf(node *sitter.Node) nodeKey {
	return nodeKey{start: node.StartByte(), end: node.EndByte(), kind: node.Kind()}
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return keyOf(a) == keyOf(b)
}
