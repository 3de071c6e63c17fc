package index

import (
	"path/filepath"

	"dwmm/internal/core/errors"
	"dwmm/internal/engine/parser"
	"dwmm/internal/shared/observability"
)

type Declaration = parser.Declaration

func (ix *Index) convert(file string, decls []Declaration) []ImportSource {
	var out []ImportSource
	for _, decl := range decls {
		out = append(out, ix.convertDeclaration(file, decl)...)
	}
	return out
}

func (ix *Index) convertDeclaration(file string, decl Declaration) []ImportSource {
	switch decl.Type {
	case parser.DeclImport:
		return ix.convertImport(file, decl)
	case parser.DeclExportNamed:
		return convertExportNamed(file, decl)
	case parser.DeclExportDefault:
		return convertExportDefault(file, decl)
	case parser.DeclDeclareModule:
		return ix.convertDeclareModule(decl)
	}
	// export * from '...' contributes nothing until the target's exports are
	// known.
	return nil
}

func sourceKind(kinds ...parser.Kind) Kind {
	for _, k := range kinds {
		switch k {
		case parser.KindType:
			return KindType
		case parser.KindValue, parser.KindTypeof:
			return KindValue
		}
	}
	return KindValue
}

func (ix *Index) convertImport(file string, decl Declaration) []ImportSource {
	from, ok := ix.resolveImport(file, decl.Source)
	if !ok {
		return nil
	}
	var out []ImportSource
	for _, spec := range decl.Specifiers {
		kind := sourceKind(spec.Kind, decl.Kind)
		var imported Imported
		switch spec.Type {
		case parser.SpecImportNamed:
			imported = Named(spec.Imported)
			if spec.Local != spec.Imported {
				out = append(out, ImportSource{
					Imported: imported,
					ImportAs: spec.Imported,
					From:     from,
					Kind:     kind,
					FoundIn:  file,
				})
			}
		case parser.SpecImportDefault:
			imported = Default()
		case parser.SpecImportNamespace:
			imported = Namespace()
		default:
			continue
		}
		out = append(out, ImportSource{
			Imported: imported,
			ImportAs: spec.Local,
			From:     from,
			Kind:     kind,
			FoundIn:  file,
		})
	}
	return out
}

// resolveImport resolves an import source from the importing file. Core
// modules are skipped. Unresolvable sources get a best-effort path so the
// import can still be suggested.
func (ix *Index) resolveImport(file, source string) (string, bool) {
	if ix.resolver != nil {
		resolved, err := ix.resolver.Resolve(source, filepath.Dir(file))
		if err == nil {
			return resolved, filepath.IsAbs(resolved)
		}
		observability.UnresolvedImportsTotal.Inc()
		err = errors.AddContext(errors.Wrap(err, errors.CodeUnresolvedImport, "resolve "+source), errors.CtxPath, file)
		ix.logger.Warn("unresolved import", "source", source, "path", file, "error", err)
	}
	if filepath.IsAbs(source) {
		return filepath.Clean(source), true
	}
	base := ix.nodeModulesDir
	if len(source) > 0 && source[0] == '.' {
		base = filepath.Dir(file)
	}
	return filepath.Join(base, filepath.FromSlash(source)), true
}

func convertExportNamed(file string, decl Declaration) []ImportSource {
	var out []ImportSource
	for _, spec := range decl.Specifiers {
		kind := sourceKind(spec.Kind, decl.Kind)
		if spec.Exported == "default" {
			out = append(out, ImportSource{
				Imported: Default(),
				ImportAs: IdentifierFromFilename(file),
				From:     file,
				Kind:     kind,
			})
			continue
		}
		out = append(out, ImportSource{
			Imported: Named(spec.Exported),
			ImportAs: spec.Exported,
			From:     file,
			Kind:     kind,
		})
	}
	for _, b := range decl.Bindings {
		if b.Name == "" {
			continue
		}
		out = append(out, ImportSource{
			Imported: Named(b.Name),
			ImportAs: b.Name,
			From:     file,
			Kind:     bindingKind(b, decl.Kind),
		})
	}
	return out
}

func bindingKind(b parser.Binding, declKind parser.Kind) Kind {
	switch b.Type {
	case parser.BindingClass, parser.BindingEnum, parser.BindingNamespace:
		return KindBoth
	case parser.BindingTypeAlias, parser.BindingInterface:
		return KindType
	}
	return sourceKind(declKind)
}

func convertExportDefault(file string, decl Declaration) []ImportSource {
	importAs := IdentifierFromFilename(file)
	kind := KindValue
	var out []ImportSource
	for _, b := range decl.Bindings {
		switch b.Type {
		case parser.BindingClass:
			kind = KindBoth
		case parser.BindingInterface, parser.BindingTypeAlias:
			kind = KindType
			continue
		case parser.BindingFunction:
		default:
			continue
		}
		if b.Name != "" && b.Name != importAs {
			out = append(out, ImportSource{
				Imported: Default(),
				ImportAs: b.Name,
				From:     file,
				Kind:     KindValue,
			})
		}
	}
	if importAs == "" {
		return out
	}
	return append(out, ImportSource{
		Imported: Default(),
		ImportAs: importAs,
		From:     file,
		Kind:     kind,
	})
}

// convertDeclareModule expands `declare module "x" {...}` as though the file
// x resolves to had declared the body itself.
func (ix *Index) convertDeclareModule(decl Declaration) []ImportSource {
	if ix.resolver == nil {
		return nil
	}
	file, err := ix.resolver.Resolve(decl.Source, ix.projectRoot)
	if err != nil || !filepath.IsAbs(file) {
		return nil
	}
	var out []ImportSource
	for _, stmt := range decl.Body {
		switch stmt.Type {
		case parser.DeclExportNamed:
			out = append(out, convertExportNamed(file, stmt)...)
		case parser.DeclExportDefault:
			out = append(out, convertExportDefault(file, stmt)...)
		}
	}
	return out
}
