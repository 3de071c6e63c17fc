package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Nodes whose bindings are visible only inside them. `var` declarations and
// function parameters hoist to the nearest function scope; everything else is
// block scoped.
var (
	functionScopeKinds = map[string]bool{
		"program":                        true,
		"function_declaration":           true,
		"function_expression":            true,
		"function":                       true,
		"generator_function":             true,
		"generator_function_declaration": true,
		"arrow_function":                 true,
		"method_definition":              true,
		"function_signature":             true,
		"method_signature":               true,
		"abstract_method_signature":      true,
		"call_signature":                 true,
		"construct_signature":            true,
		"function_type":                  true,
		"constructor_type":               true,
		"class":                          true,
		"class_static_block":             true,
	}
	blockScopeKinds = map[string]bool{
		"statement_block":  true,
		"for_statement":    true,
		"for_in_statement": true,
		"catch_clause":     true,
		"switch_body":      true,
		"class_body":       true,
	}
)

// scopeTable records which names each scope node binds and which identifier
// nodes sit in binding position.
type scopeTable struct {
	bindings map[nodeKey]map[string]*sitter.Node
	declared map[nodeKey]bool
}

func analyzeScopes(ctx *ExtractionContext, root *sitter.Node) *scopeTable {
	s := &scopeTable{
		bindings: make(map[nodeKey]map[string]*sitter.Node),
		declared: make(map[nodeKey]bool),
	}

	bindParams := func(ctx *ExtractionContext, node *sitter.Node) {
		if params := node.ChildByFieldName("parameters"); params != nil {
			for i := uint(0); i < params.NamedChildCount(); i++ {
				s.bindPattern(ctx, node, params.NamedChild(i), node)
			}
		}
		if param := node.ChildByFieldName("parameter"); param != nil {
			s.bindPattern(ctx, node, param, node)
		}
	}

	functionLike := func(ctx *ExtractionContext, node *sitter.Node) bool {
		if name := node.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
			switch node.Kind() {
			case "function_declaration", "generator_function_declaration", "function_signature":
				s.bind(ctx, enclosingBlock(node), name, node)
			default:
				s.bind(ctx, node, name, node)
			}
		}
		bindParams(ctx, node)
		return false
	}

	classLike := func(ctx *ExtractionContext, node *sitter.Node) bool {
		if name := node.ChildByFieldName("name"); name != nil {
			if node.Kind() == "class" {
				s.bind(ctx, node, name, node)
			} else {
				s.bind(ctx, enclosingBlock(node), name, node)
			}
		}
		return false
	}

	namedInBlock := func(ctx *ExtractionContext, node *sitter.Node) bool {
		if name := node.ChildByFieldName("name"); name != nil {
			switch name.Kind() {
			case "identifier", "type_identifier":
				s.bind(ctx, enclosingBlock(node), name, node)
			}
		}
		return false
	}

	handlers := map[string]NodeHandler{
		"function_declaration":           functionLike,
		"generator_function_declaration": functionLike,
		"function_signature":             functionLike,
		"function_expression":            functionLike,
		"function":                       functionLike,
		"generator_function":             functionLike,
		"arrow_function":                 functionLike,
		"method_definition":              functionLike,
		"method_signature":               functionLike,
		"abstract_method_signature":      functionLike,
		"call_signature":                 functionLike,
		"construct_signature":            functionLike,
		"function_type":                  functionLike,
		"constructor_type":               functionLike,

		"class_declaration":          classLike,
		"abstract_class_declaration": classLike,
		"class":                      classLike,

		"type_alias_declaration": namedInBlock,
		"interface_declaration":  namedInBlock,
		"enum_declaration":       namedInBlock,
		"internal_module":        namedInBlock,
		"module":                 namedInBlock,

		"variable_declarator": func(ctx *ExtractionContext, node *sitter.Node) bool {
			scope := enclosingBlock(node)
			if parent := node.Parent(); parent != nil && parent.Kind() == "variable_declaration" {
				scope = enclosingFunction(node)
			}
			s.bindPattern(ctx, scope, node.ChildByFieldName("name"), node)
			return false
		},
		"for_in_statement": func(ctx *ExtractionContext, node *sitter.Node) bool {
			kind := node.ChildByFieldName("kind")
			if kind == nil {
				return false
			}
			scope := node
			if kind.Kind() == "var" {
				scope = enclosingFunction(node)
			}
			s.bindPattern(ctx, scope, node.ChildByFieldName("left"), node)
			return false
		},
		"catch_clause": func(ctx *ExtractionContext, node *sitter.Node) bool {
			s.bindPattern(ctx, node, node.ChildByFieldName("parameter"), node)
			return false
		},
		"import_statement": func(ctx *ExtractionContext, node *sitter.Node) bool {
			s.bindImport(ctx, root, node)
			return true
		},
		"type_parameter": func(ctx *ExtractionContext, node *sitter.Node) bool {
			name := node.ChildByFieldName("name")
			if name == nil {
				name = ChildOfKind(node, "type_identifier")
			}
			if params := node.Parent(); params != nil && params.Parent() != nil {
				s.bind(ctx, params.Parent(), name, node)
			}
			return false
		},
		"mapped_type_clause": func(ctx *ExtractionContext, node *sitter.Node) bool {
			name := node.ChildByFieldName("name")
			if name == nil {
				name = ChildOfKind(node, "type_identifier")
			}
			s.bind(ctx, ancestorOfKind(node, "object_type", node.Parent()), name, node)
			return false
		},
		"infer_type": func(ctx *ExtractionContext, node *sitter.Node) bool {
			s.bind(ctx, ancestorOfKind(node, "conditional_type", node.Parent()), ChildOfKind(node, "type_identifier"), node)
			return false
		},
	}

	NewExtractorEngine(handlers).Walk(ctx, root)
	return s
}

func (s *scopeTable) bind(ctx *ExtractionContext, scope, name, decl *sitter.Node) {
	if scope == nil || name == nil {
		return
	}
	key := keyOf(scope)
	names := s.bindings[key]
	if names == nil {
		names = make(map[string]*sitter.Node)
		s.bindings[key] = names
	}
	text := ctx.Text(name)
	if _, exists := names[text]; !exists {
		names[text] = decl
	}
	s.declared[keyOf(name)] = true
}

// bindPattern binds every name introduced by a destructuring pattern or
// parameter.
func (s *scopeTable) bindPattern(ctx *ExtractionContext, scope, pattern, decl *sitter.Node) {
	if pattern == nil {
		return
	}
	switch pattern.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		s.bind(ctx, scope, pattern, decl)
	case "object_pattern", "array_pattern", "rest_pattern":
		for i := uint(0); i < pattern.NamedChildCount(); i++ {
			s.bindPattern(ctx, scope, pattern.NamedChild(i), decl)
		}
	case "pair_pattern":
		s.bindPattern(ctx, scope, pattern.ChildByFieldName("value"), decl)
	case "assignment_pattern", "object_assignment_pattern":
		s.bindPattern(ctx, scope, pattern.ChildByFieldName("left"), decl)
	case "required_parameter", "optional_parameter":
		s.bindPattern(ctx, scope, pattern.ChildByFieldName("pattern"), decl)
	}
}

func (s *scopeTable) bindImport(ctx *ExtractionContext, root, node *sitter.Node) {
	if req := ChildOfKind(node, "import_require_clause"); req != nil {
		s.bind(ctx, root, ChildOfKind(req, "identifier"), node)
		return
	}
	clause := ChildOfKind(node, "import_clause")
	if clause == nil {
		return
	}
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		switch child.Kind() {
		case "identifier":
			s.bind(ctx, root, child, node)
		case "namespace_import":
			s.bind(ctx, root, ChildOfKind(child, "identifier"), node)
		case "named_imports":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				spec := child.NamedChild(j)
				if spec.Kind() != "import_specifier" {
					continue
				}
				local := spec.ChildByFieldName("alias")
				if local == nil {
					local = spec.ChildByFieldName("name")
				}
				s.bind(ctx, root, local, node)
			}
		}
	}
}

// lookup returns the declaring node for name as seen from ref, or nil.
func (s *scopeTable) lookup(ref *sitter.Node, name string) *sitter.Node {
	for scope := ref.Parent(); scope != nil; scope = scope.Parent() {
		if decl, ok := s.bindings[keyOf(scope)][name]; ok {
			return decl
		}
	}
	return nil
}

func (s *scopeTable) isDeclaration(node *sitter.Node) bool {
	return s.declared[keyOf(node)]
}

func enclosingBlock(node *sitter.Node) *sitter.Node {
	for scope := node.Parent(); scope != nil; scope = scope.Parent() {
		if blockScopeKinds[scope.Kind()] || functionScopeKinds[scope.Kind()] {
			return scope
		}
	}
	return nil
}

func enclosingFunction(node *sitter.Node) *sitter.Node {
	for scope := node.Parent(); scope != nil; scope = scope.Parent() {
		if functionScopeKinds[scope.Kind()] {
			return scope
		}
	}
	return nil
}

func ancestorOfKind(node *sitter.Node, kind string, fallback *sitter.Node) *sitter.Node {
	for scope := node.Parent(); scope != nil; scope = scope.Parent() {
		if scope.Kind() == kind {
			return scope
		}
	}
	return fallback
}
