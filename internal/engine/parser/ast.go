package parser

// ESTree shaped nodes for a single generated import or require statement.
// Editors use these to merge a suggestion into an existing statement.

type Identifier struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func newIdentifier(name string) Identifier {
	return Identifier{Type: "Identifier", Name: name}
}

type Literal struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Raw   string `json:"raw"`
}

type ImportSpecifierNode struct {
	Type       string      `json:"type"`
	Imported   *Identifier `json:"imported,omitempty"`
	Local      Identifier  `json:"local"`
	ImportKind Kind        `json:"importKind,omitempty"`
}

type ImportDeclarationNode struct {
	Type       string                `json:"type"`
	ImportKind Kind                  `json:"importKind"`
	Specifiers []ImportSpecifierNode `json:"specifiers"`
	Source     Literal               `json:"source"`
}

type PropertyNode struct {
	Type      string     `json:"type"`
	Key       Identifier `json:"key"`
	Value     Identifier `json:"value"`
	Kind      string     `json:"kind"`
	Shorthand bool       `json:"shorthand"`
	Computed  bool       `json:"computed"`
	Method    bool       `json:"method"`
}

type ObjectPatternNode struct {
	Type       string         `json:"type"`
	Properties []PropertyNode `json:"properties"`
}

type CallExpressionNode struct {
	Type      string     `json:"type"`
	Callee    Identifier `json:"callee"`
	Arguments []Literal  `json:"arguments"`
}

type VariableDeclaratorNode struct {
	Type string `json:"type"`
	// ID is an Identifier or an ObjectPatternNode.
	ID   any                `json:"id"`
	Init CallExpressionNode `json:"init"`
}

type VariableDeclarationNode struct {
	Type         string                   `json:"type"`
	Kind         string                   `json:"kind"`
	Declarations []VariableDeclaratorNode `json:"declarations"`
}

func importDeclarationNode(decl Declaration, raw string) *ImportDeclarationNode {
	kind := decl.Kind
	if kind == "" {
		kind = KindValue
	}
	node := &ImportDeclarationNode{
		Type:       "ImportDeclaration",
		ImportKind: kind,
		Specifiers: []ImportSpecifierNode{},
		Source:     Literal{Type: "Literal", Value: decl.Source, Raw: raw},
	}
	for _, spec := range decl.Specifiers {
		out := ImportSpecifierNode{Local: newIdentifier(spec.Local), ImportKind: spec.Kind}
		switch spec.Type {
		case SpecImportDefault:
			out.Type = "ImportDefaultSpecifier"
		case SpecImportNamespace:
			out.Type = "ImportNamespaceSpecifier"
		default:
			out.Type = "ImportSpecifier"
			imported := newIdentifier(spec.Imported)
			out.Imported = &imported
		}
		node.Specifiers = append(node.Specifiers, out)
	}
	return node
}

func requireDeclarationNode(decl Declaration, raw string) *VariableDeclarationNode {
	var id any
	if len(decl.Specifiers) == 1 && decl.Specifiers[0].Type == SpecImportDefault {
		id = newIdentifier(decl.Specifiers[0].Local)
	} else {
		pattern := ObjectPatternNode{Type: "ObjectPattern", Properties: []PropertyNode{}}
		for _, spec := range decl.Specifiers {
			pattern.Properties = append(pattern.Properties, PropertyNode{
				Type:      "Property",
				Key:       newIdentifier(spec.Imported),
				Value:     newIdentifier(spec.Local),
				Kind:      "init",
				Shorthand: spec.Imported == spec.Local,
			})
		}
		id = pattern
	}
	return &VariableDeclarationNode{
		Type: "VariableDeclaration",
		Kind: "const",
		Declarations: []VariableDeclaratorNode{{
			Type: "VariableDeclarator",
			ID:   id,
			Init: CallExpressionNode{
				Type:      "CallExpression",
				Callee:    newIdentifier("require"),
				Arguments: []Literal{{Type: "Literal", Value: decl.Source, Raw: raw}},
			},
		}},
	}
}
