package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// extractDeclarations returns the import and export statements at the top
// level of a program, plus the statements of every `declare module` block.
func extractDeclarations(ctx *ExtractionContext, root *sitter.Node) []Declaration {
	var decls []Declaration
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		switch child.Kind() {
		case "import_statement":
			if decl, ok := importStatement(ctx, child); ok {
				decls = append(decls, decl)
			}
		case "export_statement":
			if decl, ok := exportStatement(ctx, child); ok {
				decls = append(decls, decl)
			}
		case "ambient_declaration":
			if decl, ok := declareModule(ctx, child); ok {
				decls = append(decls, decl)
			}
		}
	}
	return decls
}

func statementKind(node *sitter.Node) Kind {
	switch {
	case HasChildToken(node, "typeof"):
		return KindTypeof
	case HasChildToken(node, "type"):
		return KindType
	}
	return ""
}

func importStatement(ctx *ExtractionContext, node *sitter.Node) (Declaration, bool) {
	decl := Declaration{Type: DeclImport, Kind: statementKind(node)}

	// import x = require('y')
	if req := ChildOfKind(node, "import_require_clause"); req != nil {
		source := req.ChildByFieldName("source")
		if source == nil {
			source = ChildOfKind(req, "string")
		}
		local := ChildOfKind(req, "identifier")
		if source == nil || local == nil {
			return decl, false
		}
		decl.Source = ctx.StringValue(source)
		decl.Specifiers = []Specifier{{Type: SpecImportDefault, Imported: "default", Local: ctx.Text(local)}}
		return decl, true
	}

	source := node.ChildByFieldName("source")
	if source == nil {
		return decl, false
	}
	decl.Source = ctx.StringValue(source)

	clause := ChildOfKind(node, "import_clause")
	if clause == nil {
		return decl, true
	}
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		switch child.Kind() {
		case "identifier":
			decl.Specifiers = append(decl.Specifiers, Specifier{
				Type:     SpecImportDefault,
				Imported: "default",
				Local:    ctx.Text(child),
			})
		case "namespace_import":
			if id := ChildOfKind(child, "identifier"); id != nil {
				decl.Specifiers = append(decl.Specifiers, Specifier{
					Type:  SpecImportNamespace,
					Local: ctx.Text(id),
				})
			}
		case "named_imports":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				spec := child.NamedChild(j)
				if spec.Kind() != "import_specifier" {
					continue
				}
				decl.Specifiers = append(decl.Specifiers, importSpecifier(ctx, spec))
			}
		}
	}
	return decl, true
}

func importSpecifier(ctx *ExtractionContext, spec *sitter.Node) Specifier {
	imported := moduleExportName(ctx, spec.ChildByFieldName("name"))
	local := imported
	if alias := spec.ChildByFieldName("alias"); alias != nil {
		local = ctx.Text(alias)
	}
	s := Specifier{Type: SpecImportNamed, Imported: imported, Local: local, Kind: statementKind(spec)}
	if imported == "default" {
		s.Type = SpecImportDefault
	}
	return s
}

// moduleExportName handles both `foo` and `"foo"` in specifier lists.
func moduleExportName(ctx *ExtractionContext, node *sitter.Node) string {
	if node == nil {
		return ""
	}
	if node.Kind() == "string" {
		return ctx.StringValue(node)
	}
	return ctx.Text(node)
}

func exportStatement(ctx *ExtractionContext, node *sitter.Node) (Declaration, bool) {
	isDefault := HasChildToken(node, "default")
	kind := statementKind(node)
	var source string
	if src := node.ChildByFieldName("source"); src != nil {
		source = ctx.StringValue(src)
	}

	if declNode := node.ChildByFieldName("declaration"); declNode != nil {
		decl := Declaration{Type: DeclExportNamed, Kind: kind, Bindings: bindingsOf(ctx, declNode)}
		if isDefault {
			decl.Type = DeclExportDefault
		}
		return decl, true
	}

	if isDefault {
		decl := Declaration{Type: DeclExportDefault, Kind: kind}
		if value := node.ChildByFieldName("value"); value != nil {
			decl.Bindings = defaultValueBindings(ctx, value)
		}
		return decl, true
	}

	if clause := ChildOfKind(node, "export_clause"); clause != nil {
		decl := Declaration{Type: DeclExportNamed, Kind: kind, Source: source}
		for i := uint(0); i < clause.NamedChildCount(); i++ {
			spec := clause.NamedChild(i)
			if spec.Kind() != "export_specifier" {
				continue
			}
			local := moduleExportName(ctx, spec.ChildByFieldName("name"))
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = moduleExportName(ctx, alias)
			}
			decl.Specifiers = append(decl.Specifiers, Specifier{
				Type:     SpecExport,
				Local:    local,
				Exported: exported,
				Kind:     statementKind(spec),
			})
		}
		return decl, true
	}

	if ns := ChildOfKind(node, "namespace_export"); ns != nil {
		name := ChildOfKind(ns, "identifier", "string")
		if name == nil {
			return Declaration{}, false
		}
		return Declaration{
			Type:   DeclExportNamed,
			Kind:   kind,
			Source: source,
			Specifiers: []Specifier{{
				Type:     SpecExportNamespace,
				Exported: moduleExportName(ctx, name),
			}},
		}, true
	}

	if HasChildToken(node, "*") && source != "" {
		return Declaration{Type: DeclExportAll, Kind: kind, Source: source}, true
	}

	// export = x, export as namespace X
	return Declaration{}, false
}

// bindingsOf lists the names introduced by a declaration node.
func bindingsOf(ctx *ExtractionContext, node *sitter.Node) []Binding {
	name := func(t BindingType) []Binding {
		n := node.ChildByFieldName("name")
		if n == nil {
			return []Binding{{Type: t}}
		}
		return []Binding{{Type: t, Name: ctx.Text(n)}}
	}

	switch node.Kind() {
	case "class_declaration", "abstract_class_declaration", "class":
		return name(BindingClass)
	case "function_declaration", "generator_function_declaration", "function_signature",
		"function_expression", "function", "generator_function":
		return name(BindingFunction)
	case "type_alias_declaration":
		return name(BindingTypeAlias)
	case "interface_declaration":
		return name(BindingInterface)
	case "enum_declaration":
		return name(BindingEnum)
	case "internal_module", "module":
		return name(BindingNamespace)
	case "lexical_declaration", "variable_declaration":
		var out []Binding
		for i := uint(0); i < node.NamedChildCount(); i++ {
			declarator := node.NamedChild(i)
			if declarator.Kind() != "variable_declarator" {
				continue
			}
			for _, n := range patternNames(ctx, declarator.ChildByFieldName("name")) {
				out = append(out, Binding{Type: BindingVariable, Name: n})
			}
		}
		return out
	case "ambient_declaration":
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if b := bindingsOf(ctx, node.NamedChild(i)); len(b) > 0 {
				return b
			}
		}
	}
	return nil
}

func defaultValueBindings(ctx *ExtractionContext, value *sitter.Node) []Binding {
	switch value.Kind() {
	case "identifier":
		return []Binding{{Type: BindingIdentifier, Name: ctx.Text(value)}}
	case "class", "function_expression", "function", "generator_function":
		b := bindingsOf(ctx, value)
		if len(b) == 1 && b[0].Name == "" {
			return nil
		}
		return b
	}
	return nil
}

// patternNames lists the identifiers bound by a destructuring pattern.
func patternNames(ctx *ExtractionContext, pattern *sitter.Node) []string {
	if pattern == nil {
		return nil
	}
	switch pattern.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{ctx.Text(pattern)}
	case "object_pattern", "array_pattern", "rest_pattern":
		var out []string
		for i := uint(0); i < pattern.NamedChildCount(); i++ {
			out = append(out, patternNames(ctx, pattern.NamedChild(i))...)
		}
		return out
	case "pair_pattern":
		return patternNames(ctx, pattern.ChildByFieldName("value"))
	case "assignment_pattern", "object_assignment_pattern":
		return patternNames(ctx, pattern.ChildByFieldName("left"))
	}
	return nil
}

// declareModule handles `declare module "name" { ... }`. Members of an
// ambient module are exported whether or not they carry `export`.
func declareModule(ctx *ExtractionContext, node *sitter.Node) (Declaration, bool) {
	mod := ChildOfKind(node, "module")
	if mod == nil {
		return Declaration{}, false
	}
	name := mod.ChildByFieldName("name")
	if name == nil || name.Kind() != "string" {
		return Declaration{}, false
	}
	decl := Declaration{Type: DeclDeclareModule, Source: ctx.StringValue(name)}

	body := mod.ChildByFieldName("body")
	if body == nil {
		return decl, true
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		switch child.Kind() {
		case "import_statement":
			if d, ok := importStatement(ctx, child); ok {
				decl.Body = append(decl.Body, d)
			}
		case "export_statement":
			if d, ok := exportStatement(ctx, child); ok {
				decl.Body = append(decl.Body, d)
			}
		default:
			if b := bindingsOf(ctx, child); len(b) > 0 {
				decl.Body = append(decl.Body, Declaration{Type: DeclExportNamed, Bindings: b})
			}
		}
	}
	return decl, true
}
