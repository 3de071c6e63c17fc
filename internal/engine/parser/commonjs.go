package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

const maxAliasDepth = 16

// extractRequires converts `require()` calls into import declarations:
//
//	const x = require('s')           default import x
//	const {a, b: c} = require('s')   named imports a, c
//	x.prop where x = require('s')    named import prop
//	require('s').prop                named import prop
//
// Nothing is converted when `require` is bound locally.
func extractRequires(ctx *ExtractionContext, root *sitter.Node, scopes *scopeTable) []Declaration {
	var decls []Declaration

	isRequireCall := func(node *sitter.Node) (string, bool) {
		if node == nil || node.Kind() != "call_expression" {
			return "", false
		}
		callee := node.ChildByFieldName("function")
		if callee == nil || callee.Kind() != "identifier" || ctx.Text(callee) != "require" {
			return "", false
		}
		if scopes.lookup(callee, "require") != nil {
			return "", false
		}
		args := node.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() != 1 || args.NamedChild(0).Kind() != "string" {
			return "", false
		}
		return ctx.StringValue(args.NamedChild(0)), true
	}

	// requireSource follows `const a = require('s'); const b = a` chains.
	var requireSource func(declarator *sitter.Node, depth int) (string, bool)
	requireSource = func(declarator *sitter.Node, depth int) (string, bool) {
		if declarator == nil || declarator.Kind() != "variable_declarator" || depth > maxAliasDepth {
			return "", false
		}
		value := declarator.ChildByFieldName("value")
		if value == nil {
			return "", false
		}
		if value.Kind() == "identifier" {
			return requireSource(scopes.lookup(value, ctx.Text(value)), depth+1)
		}
		return isRequireCall(value)
	}

	handlers := map[string]NodeHandler{
		"variable_declarator": func(ctx *ExtractionContext, node *sitter.Node) bool {
			source, ok := requireSource(node, 0)
			if !ok {
				return false
			}
			name := node.ChildByFieldName("name")
			switch name.Kind() {
			case "identifier":
				decls = append(decls, Declaration{
					Type:   DeclImport,
					Kind:   KindValue,
					Source: source,
					Specifiers: []Specifier{{
						Type:     SpecImportDefault,
						Imported: "default",
						Local:    ctx.Text(name),
					}},
				})
			case "object_pattern":
				if specs := objectPatternSpecifiers(ctx, name); len(specs) > 0 {
					decls = append(decls, Declaration{Type: DeclImport, Kind: KindValue, Source: source, Specifiers: specs})
				}
			}
			return false
		},
		"member_expression": func(ctx *ExtractionContext, node *sitter.Node) bool {
			object := node.ChildByFieldName("object")
			property := node.ChildByFieldName("property")
			if object == nil || property == nil || property.Kind() != "property_identifier" {
				return false
			}
			var source string
			var ok bool
			if object.Kind() == "identifier" {
				source, ok = requireSource(scopes.lookup(object, ctx.Text(object)), 0)
			} else {
				source, ok = isRequireCall(object)
			}
			if ok {
				prop := ctx.Text(property)
				decls = append(decls, Declaration{
					Type:   DeclImport,
					Kind:   KindValue,
					Source: source,
					Specifiers: []Specifier{{
						Type:     SpecImportNamed,
						Imported: prop,
						Local:    prop,
					}},
				})
			}
			return false
		},
	}

	NewExtractorEngine(handlers).Walk(ctx, root)
	return decls
}

// objectPatternSpecifiers converts `{a, b: c}` into named specifiers. It
// stops at the first property that is not a plain identifier binding.
func objectPatternSpecifiers(ctx *ExtractionContext, pattern *sitter.Node) []Specifier {
	var specs []Specifier
	for i := uint(0); i < pattern.NamedChildCount(); i++ {
		prop := pattern.NamedChild(i)
		switch prop.Kind() {
		case "shorthand_property_identifier_pattern":
			name := ctx.Text(prop)
			specs = append(specs, Specifier{Type: SpecImportNamed, Imported: name, Local: name})
		case "pair_pattern":
			key := prop.ChildByFieldName("key")
			value := prop.ChildByFieldName("value")
			if key == nil || value == nil || key.Kind() != "property_identifier" || value.Kind() != "identifier" {
				return specs
			}
			specs = append(specs, Specifier{Type: SpecImportNamed, Imported: ctx.Text(key), Local: ctx.Text(value)})
		case "comment":
		default:
			return specs
		}
	}
	return specs
}
