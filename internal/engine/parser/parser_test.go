package parser

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"dwmm/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, path, code string) []Declaration {
	t.Helper()
	decls, err := New().Parse(path, []byte(code))
	require.NoError(t, err)
	return decls
}

func TestParseImports(t *testing.T) {
	decls := parse(t, "a.js", `
import def, * as ns from './ns'
import { a, b as c, default as d } from "pkg"
import type { T } from './types'
import './side-effect'
`)
	require.Len(t, decls, 4)

	assert.Equal(t, Declaration{
		Type:   DeclImport,
		Source: "./ns",
		Specifiers: []Specifier{
			{Type: SpecImportDefault, Imported: "default", Local: "def"},
			{Type: SpecImportNamespace, Local: "ns"},
		},
	}, decls[0])

	assert.Equal(t, Declaration{
		Type:   DeclImport,
		Source: "pkg",
		Specifiers: []Specifier{
			{Type: SpecImportNamed, Imported: "a", Local: "a"},
			{Type: SpecImportNamed, Imported: "b", Local: "c"},
			{Type: SpecImportDefault, Imported: "default", Local: "d"},
		},
	}, decls[1])

	assert.Equal(t, KindType, decls[2].Kind)
	assert.Equal(t, "./types", decls[2].Source)

	assert.Equal(t, "./side-effect", decls[3].Source)
	assert.Empty(t, decls[3].Specifiers)
}

func TestParseExports(t *testing.T) {
	decls := parse(t, "a.ts", `
export const x = 1, { y, z: w } = obj
export function f() {}
export class C {}
export interface I {}
export type Alias = string
export enum E { A }
export { local as exported, other }
export { re } from './re'
export * from './all'
export * as everything from './all'
export default function named() {}
`)
	require.Len(t, decls, 11)

	assert.Equal(t, []Binding{
		{Type: BindingVariable, Name: "x"},
		{Type: BindingVariable, Name: "y"},
		{Type: BindingVariable, Name: "w"},
	}, decls[0].Bindings)
	assert.Equal(t, []Binding{{Type: BindingFunction, Name: "f"}}, decls[1].Bindings)
	assert.Equal(t, []Binding{{Type: BindingClass, Name: "C"}}, decls[2].Bindings)
	assert.Equal(t, []Binding{{Type: BindingInterface, Name: "I"}}, decls[3].Bindings)
	assert.Equal(t, []Binding{{Type: BindingTypeAlias, Name: "Alias"}}, decls[4].Bindings)
	assert.Equal(t, []Binding{{Type: BindingEnum, Name: "E"}}, decls[5].Bindings)

	assert.Equal(t, []Specifier{
		{Type: SpecExport, Local: "local", Exported: "exported"},
		{Type: SpecExport, Local: "other", Exported: "other"},
	}, decls[6].Specifiers)
	assert.Empty(t, decls[6].Source)

	assert.Equal(t, "./re", decls[7].Source)
	assert.Equal(t, DeclExportAll, decls[8].Type)

	assert.Equal(t, DeclExportNamed, decls[9].Type)
	assert.Equal(t, []Specifier{{Type: SpecExportNamespace, Exported: "everything"}}, decls[9].Specifiers)

	assert.Equal(t, DeclExportDefault, decls[10].Type)
	assert.Equal(t, []Binding{{Type: BindingFunction, Name: "named"}}, decls[10].Bindings)
}

func TestParseAnonymousDefault(t *testing.T) {
	decls := parse(t, "a.js", "export default () => 1\n")
	require.Len(t, decls, 1)
	assert.Equal(t, DeclExportDefault, decls[0].Type)
	assert.Empty(t, decls[0].Bindings)

	decls = parse(t, "a.js", "const foo = 1\nexport default foo\n")
	require.Len(t, decls, 1)
	assert.Equal(t, []Binding{{Type: BindingIdentifier, Name: "foo"}}, decls[0].Bindings)
}

func TestParseDeclareModule(t *testing.T) {
	decls := parse(t, "types.d.ts", `
declare module "lodash" {
  export function debounce(): void
  function throttle(): void
}
`)
	require.Len(t, decls, 1)
	assert.Equal(t, DeclDeclareModule, decls[0].Type)
	assert.Equal(t, "lodash", decls[0].Source)
	require.Len(t, decls[0].Body, 2)
	assert.Equal(t, []Binding{{Type: BindingFunction, Name: "debounce"}}, decls[0].Body[0].Bindings)
	assert.Equal(t, []Binding{{Type: BindingFunction, Name: "throttle"}}, decls[0].Body[1].Bindings)
}

func TestParseRequires(t *testing.T) {
	decls := parse(t, "a.js", `
const x = require('x')
const alias = x
const { a, b: c } = require('y')
alias.prop()
require('z').other
function shadow(require) { return require('ignored') }
`)
	var got []Specifier
	var sources []string
	for _, d := range decls {
		require.Equal(t, DeclImport, d.Type)
		sources = append(sources, d.Source)
		got = append(got, d.Specifiers...)
	}
	assert.Equal(t, []string{"x", "x", "y", "x", "z"}, sources)
	assert.Equal(t, []Specifier{
		{Type: SpecImportDefault, Imported: "default", Local: "x"},
		{Type: SpecImportDefault, Imported: "default", Local: "alias"},
		{Type: SpecImportNamed, Imported: "a", Local: "a"},
		{Type: SpecImportNamed, Imported: "b", Local: "c"},
		{Type: SpecImportNamed, Imported: "prop", Local: "prop"},
		{Type: SpecImportNamed, Imported: "other", Local: "other"},
	}, got)
}

func TestParseRequireShadowedAtTopLevel(t *testing.T) {
	decls := parse(t, "a.js", "const require = () => 1\nconst x = require('x')\n")
	assert.Empty(t, decls)
}

func TestParseFileMissing(t *testing.T) {
	_, err := New().ParseFile(filepath.Join(t.TempDir(), "missing.js"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.js")
	require.NoError(t, os.WriteFile(path, []byte("export const a = 1\n"), 0o644))
	decls, err := New().ParseFile(path)
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, "a", decls[0].Bindings[0].Name)
}

func TestUndefinedIdentifiers(t *testing.T) {
	code := `import React from 'react'
const local = 1
function f(param, { destructured }) {
  let inner = param + destructured + local
  return missingValue(inner, window)
}
const el = <Component prop={other}><div /></Component>
const t: MissingType<string> = f
export { notDefined }
export { fromElsewhere } from './x'
obj.property
`
	ids, err := New().UndefinedIdentifiers("a.tsx", []byte(code))
	require.NoError(t, err)

	var names []string
	for _, id := range ids {
		names = append(names, id.Identifier)
	}
	assert.Equal(t, []string{"missingValue", "Component", "other", "MissingType", "notDefined", "obj"}, names)

	first := ids[0]
	assert.Equal(t, Position{Line: 5, Column: 9}, first.Start)
	assert.Equal(t, Position{Line: 5, Column: 21}, first.End)
	assert.Equal(t, "  return missingValue(inner, window)", first.Context)
	assert.Equal(t, KindValue, first.Kind)
	assert.Equal(t, KindType, ids[3].Kind)
}

func TestUndefinedIdentifiersScopes(t *testing.T) {
	code := `function outer() {
  var hoisted = 1
  if (x) { let blockOnly = 2 }
  return blockOnly + hoisted
}
try {} catch (err) { err }
for (const item of list) { item }
const g = function named() { return named }
class K { m() { return K } }
`
	ids, err := New().UndefinedIdentifiers("a.js", []byte(code))
	require.NoError(t, err)

	var names []string
	for _, id := range ids {
		names = append(names, id.Identifier)
	}
	assert.Equal(t, []string{"x", "blockOnly", "list"}, names)
}

func TestUndefinedNamespaceQualifier(t *testing.T) {
	ids, err := New().UndefinedIdentifiers("a.ts", []byte("let v: ns.Thing\n"))
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "ns", ids[0].Identifier)
	assert.Equal(t, Kind(""), ids[0].Kind)
}

func TestMode(t *testing.T) {
	p := New()
	for code, want := range map[string]Mode{
		"const x = require('x')\n":          ModeRequire,
		"import x from 'x'\n":               ModeImport,
		"// @flow\nconst x = require('x')\n": ModeImport,
		"":                                  ModeRequire,
	} {
		got, err := p.Mode("a.js", []byte(code))
		require.NoError(t, err)
		assert.Equal(t, want, got, code)
	}
}

func TestImportDeclaration(t *testing.T) {
	node, err := New().ImportDeclaration(`import def, { a as b } from "pkg"`)
	require.NoError(t, err)

	data, err := json.Marshal(node)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "ImportDeclaration",
		"importKind": "value",
		"specifiers": [
			{"type": "ImportDefaultSpecifier", "local": {"type": "Identifier", "name": "def"}},
			{"type": "ImportSpecifier", "imported": {"type": "Identifier", "name": "a"}, "local": {"type": "Identifier", "name": "b"}}
		],
		"source": {"type": "Literal", "value": "pkg", "raw": "\"pkg\""}
	}`, string(data))

	_, err = New().ImportDeclaration("const x = 1")
	assert.True(t, errors.IsCode(err, errors.CodeParseFailure))
}

func TestRequireDeclaration(t *testing.T) {
	p := New()

	node, err := p.RequireDeclaration(`const {a, b: c} = require("pkg")`)
	require.NoError(t, err)
	require.Len(t, node.Declarations, 1)
	pattern, ok := node.Declarations[0].ID.(ObjectPatternNode)
	require.True(t, ok)
	require.Len(t, pattern.Properties, 2)
	assert.True(t, pattern.Properties[0].Shorthand)
	assert.Equal(t, "c", pattern.Properties[1].Value.Name)
	assert.Equal(t, "pkg", node.Declarations[0].Init.Arguments[0].Value)

	node, err = p.RequireDeclaration(`const x = require('x')`)
	require.NoError(t, err)
	assert.Equal(t, newIdentifier("x"), node.Declarations[0].ID)

	_, err = p.RequireDeclaration(`const x = 1`)
	assert.Error(t, err)
}

func TestIsBuiltin(t *testing.T) {
	assert.True(t, IsBuiltin("Promise"))
	assert.True(t, IsBuiltin("$ReadOnly"))
	assert.True(t, IsBuiltin("Partial"))
	assert.False(t, IsBuiltin("lodash"))
}
