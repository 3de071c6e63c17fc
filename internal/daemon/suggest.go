package daemon

import (
	"context"
	"log/slog"
	"strings"

	"dwmm/internal/core/ports"
	"dwmm/internal/engine/index"
	"dwmm/internal/engine/parser"
	"dwmm/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Suggester assembles suggestion responses from an index and a parser.
type Suggester struct {
	Index  *index.Index
	Parser ports.CodeParser
	Logger *slog.Logger
}

// Suggest returns suggestions for every undefined identifier in code. Repeat
// occurrences of an identifier merge into the first one.
func (s *Suggester) Suggest(ctx context.Context, file string, code []byte) (SuggestResult, error) {
	_, span := observability.Tracer.Start(ctx, "daemon.suggest")
	span.SetAttributes(attribute.String("file", file))
	defer span.End()

	undefined, err := s.Parser.UndefinedIdentifiers(file, code)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	mode, err := s.Parser.Mode(file, code)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := make(SuggestResult)
	for _, u := range undefined {
		suggested := s.render(index.SuggestOptions{
			Identifier: u.Identifier,
			File:       file,
			Kind:       indexKind(u.Kind),
			Mode:       mode,
		})
		if existing, ok := result[u.Identifier]; ok {
			existing.Suggested = mergeSuggested(existing.Suggested, suggested)
			continue
		}
		start, end := u.Start, u.End
		result[u.Identifier] = &IdentifierSuggestions{
			Identifier: u.Identifier,
			Start:      &start,
			End:        &end,
			Context:    u.Context,
			Kind:       u.Kind,
			Suggested:  suggested,
		}
	}
	span.SetAttributes(attribute.Int("identifiers", len(result)))
	return result, nil
}

// Wheres lists every known import of identifier, with paths relative to
// file.
func (s *Suggester) Wheres(ctx context.Context, identifier, file string) SuggestResult {
	_, span := observability.Tracer.Start(ctx, "daemon.wheres")
	span.SetAttributes(attribute.String("identifier", identifier))
	defer span.End()

	return SuggestResult{
		identifier: {
			Identifier: identifier,
			Suggested:  s.render(index.SuggestOptions{Identifier: identifier, File: file}),
		},
	}
}

func (s *Suggester) render(opts index.SuggestOptions) []SuggestedImport {
	suggestions := s.Index.Suggest(opts)
	out := make([]SuggestedImport, 0, len(suggestions))
	for _, sg := range suggestions {
		out = append(out, SuggestedImport{Code: sg.Code, AST: s.ast(sg.Code)})
	}
	return out
}

func (s *Suggester) ast(code string) any {
	var (
		node any
		err  error
	)
	if strings.HasPrefix(code, "import") {
		node, err = s.Parser.ImportDeclaration(code)
	} else {
		node, err = s.Parser.RequireDeclaration(code)
	}
	if err != nil {
		s.logger().Warn("failed to build syntax tree for suggestion", "code", code, "error", err)
		return nil
	}
	return node
}

func (s *Suggester) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func mergeSuggested(existing, more []SuggestedImport) []SuggestedImport {
	seen := make(map[string]bool, len(existing))
	for _, sg := range existing {
		seen[sg.Code] = true
	}
	for _, sg := range more {
		if !seen[sg.Code] {
			seen[sg.Code] = true
			existing = append(existing, sg)
		}
	}
	return existing
}

func indexKind(k parser.Kind) index.Kind {
	switch k {
	case parser.KindType:
		return index.KindType
	case parser.KindValue:
		return index.KindValue
	default:
		return ""
	}
}
