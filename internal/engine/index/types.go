package index

import (
	"fmt"
	"sort"
)

// ImportedType distinguishes the three ways a binding can be imported.
type ImportedType int

const (
	ImportedNamed ImportedType = iota
	ImportedDefault
	ImportedNamespace
)

// Imported is the name a binding has in the module that exports it.
type Imported struct {
	Type ImportedType
	Name string
}

func Default() Imported {
	return Imported{Type: ImportedDefault}
}

func Namespace() Imported {
	return Imported{Type: ImportedNamespace}
}

func Named(name string) Imported {
	return Imported{Type: ImportedNamed, Name: name}
}

// String renders the import form: "default", "*" or the exported name.
func (i Imported) String() string {
	switch i.Type {
	case ImportedDefault:
		return "default"
	case ImportedNamespace:
		return "*"
	}
	return i.Name
}

func (i Imported) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Imported) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "default":
		*i = Default()
	case "*":
		*i = Namespace()
	case "":
		return fmt.Errorf("empty imported name")
	default:
		*i = Named(s)
	}
	return nil
}

// Kind says which namespace an import binds into. The empty Kind means
// "unspecified" in queries.
type Kind string

const (
	KindValue Kind = "value"
	KindType  Kind = "type"
	KindBoth  Kind = "both"
)

// ImportSource is one fact: Imported is available from From and can be
// bound locally as ImportAs. FoundIn names the file whose import statement
// revealed the fact; it is empty for a module's own exports.
type ImportSource struct {
	Imported Imported `json:"imported"`
	ImportAs string   `json:"importAs"`
	From     string   `json:"from"`
	Kind     Kind     `json:"kind"`
	FoundIn  string   `json:"foundIn,omitempty"`
}

type suggestionKey struct {
	imported Imported
	importAs string
	from     string
}

func (s ImportSource) key() suggestionKey {
	return suggestionKey{imported: s.Imported, importAs: s.ImportAs, from: s.From}
}

// AggregatedSuggestion is the set of sources sharing (Imported, ImportAs,
// From). Sources are reference counted: the same source contributed twice
// must be deleted twice.
type AggregatedSuggestion struct {
	Imported Imported
	ImportAs string
	From     string

	sources   map[ImportSource]int
	kind      Kind
	preferred bool
}

func newAggregatedSuggestion(key suggestionKey) *AggregatedSuggestion {
	return &AggregatedSuggestion{
		Imported: key.imported,
		ImportAs: key.importAs,
		From:     key.from,
		sources:  make(map[ImportSource]int),
	}
}

// Kind is both when some source binds a value and some binds a type.
func (a *AggregatedSuggestion) Kind() Kind { return a.kind }

// IsPreferred reports whether a configuration file contributed a source.
func (a *AggregatedSuggestion) IsPreferred() bool { return a.preferred }

// NumSources counts distinct contributing sources.
func (a *AggregatedSuggestion) NumSources() int { return len(a.sources) }

// Sources returns the distinct contributing sources in a stable order.
func (a *AggregatedSuggestion) Sources() []ImportSource {
	out := make([]ImportSource, 0, len(a.sources))
	for s := range a.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FoundIn != out[j].FoundIn {
			return out[i].FoundIn < out[j].FoundIn
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func (a *AggregatedSuggestion) add(s ImportSource, isConfigFile func(string) bool) {
	a.sources[s]++
	a.recompute(isConfigFile)
}

// remove reports whether the source was present.
func (a *AggregatedSuggestion) remove(s ImportSource, isConfigFile func(string) bool) bool {
	n, ok := a.sources[s]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(a.sources, s)
	} else {
		a.sources[s] = n - 1
	}
	a.recompute(isConfigFile)
	return true
}

func (a *AggregatedSuggestion) recompute(isConfigFile func(string) bool) {
	value, typ, all := false, false, true
	a.preferred = false
	for s := range a.sources {
		switch s.Kind {
		case KindBoth:
			value, typ = true, true
			all = false
		case KindType:
			typ = true
		default:
			value = true
			all = false
		}
		if s.FoundIn != "" && isConfigFile(s.FoundIn) {
			a.preferred = true
		}
	}
	switch {
	case value && typ:
		a.kind = KindBoth
	case all && len(a.sources) > 0:
		a.kind = KindType
	default:
		a.kind = KindValue
	}
}

// SuggestionsForIdentifier holds every way to satisfy an undefined
// Identifier.
type SuggestionsForIdentifier struct {
	Identifier  string
	suggestions map[suggestionKey]*AggregatedSuggestion
}

// Suggestions returns the aggregates in no particular order.
func (s *SuggestionsForIdentifier) Suggestions() []*AggregatedSuggestion {
	out := make([]*AggregatedSuggestion, 0, len(s.suggestions))
	for _, a := range s.suggestions {
		out = append(out, a)
	}
	return out
}

// Module is the list of sources one file contributed, kept so the file can
// be undeclared.
type Module struct {
	File    string
	Sources []ImportSource
}
