package parser

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var lineBreak = regexp.MustCompile(`\r\n?|\n`)

// undefinedIdentifiers reports references that no enclosing scope binds,
// excluding globals. Results are in document order with one entry per
// position; a value reference wins over a type reference at the same spot.
func undefinedIdentifiers(ctx *ExtractionContext, root *sitter.Node, scopes *scopeTable) []UndefinedIdentifier {
	lines := lineBreak.Split(string(ctx.Source), -1)

	var found []UndefinedIdentifier
	byPosition := make(map[[2]uint]int)

	report := func(node *sitter.Node, kind Kind) {
		name := ctx.Text(node)
		if name == "" || IsBuiltin(name) || scopes.isDeclaration(node) || scopes.lookup(node, name) != nil {
			return
		}
		start := ctx.Start(node)
		var context string
		if start.Line-1 < len(lines) {
			context = lines[start.Line-1]
		}
		id := UndefinedIdentifier{
			Identifier: name,
			Start:      start,
			End:        ctx.End(node),
			Context:    context,
			Kind:       kind,
		}
		pos := [2]uint{node.StartByte(), node.EndByte()}
		if i, ok := byPosition[pos]; ok {
			if kind == KindValue && found[i].Kind != KindValue {
				found[i] = id
			}
			return
		}
		byPosition[pos] = len(found)
		found = append(found, id)
	}

	reference := func(ctx *ExtractionContext, node *sitter.Node) bool {
		kind, ok := referenceKind(ctx, node)
		if ok {
			report(node, kind)
		}
		return false
	}

	NewExtractorEngine(map[string]NodeHandler{
		"identifier":                    reference,
		"type_identifier":               reference,
		"shorthand_property_identifier": reference,
		"ERROR": func(ctx *ExtractionContext, node *sitter.Node) bool {
			return true
		},
	}).Walk(ctx, root)

	return found
}

// referenceKind decides whether an identifier node is a reference and, if
// so, what kind of binding it needs.
func referenceKind(ctx *ExtractionContext, node *sitter.Node) (Kind, bool) {
	kind := KindValue
	if node.Kind() == "type_identifier" {
		kind = KindType
	}

	parent := node.Parent()
	if parent == nil {
		return kind, true
	}
	switch parent.Kind() {
	case "import_specifier", "import_clause", "namespace_import", "import_require_clause",
		"namespace_export", "index_signature", "import_alias", "labeled_statement":
		return "", false
	case "export_specifier":
		statement := parent.Parent()
		if statement != nil {
			statement = statement.Parent()
		}
		if statement != nil && statement.ChildByFieldName("source") != nil {
			return "", false
		}
		if sameNode(parent.ChildByFieldName("alias"), node) {
			return "", false
		}
	case "jsx_opening_element", "jsx_self_closing_element":
		if sameNode(parent.ChildByFieldName("name"), node) && startsLower(ctx.Text(node)) {
			return "", false
		}
	case "jsx_closing_element":
		return "", false
	case "nested_type_identifier":
		if sameNode(parent.ChildByFieldName("name"), node) {
			return "", false
		}
		return "", true
	case "nested_identifier":
		if first := parent.NamedChild(0); !sameNode(first, node) {
			return "", false
		}
	case "member_expression":
		if sameNode(parent.ChildByFieldName("property"), node) {
			return "", false
		}
	}
	return kind, true
}

func startsLower(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLower(r)
}
