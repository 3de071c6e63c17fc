package index

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"dwmm/internal/core/ports"
	"dwmm/internal/shared/observability"
)

// Options configure an Index.
type Options struct {
	ProjectRoot string
	Resolver    ports.ModuleResolver
	// IsConfigFile marks files whose imports are preferred suggestions.
	IsConfigFile func(path string) bool
	Logger       *slog.Logger
}

// Index maps identifiers to the imports that could bind them.
//
// Declarations are converted to sources before the write lock is taken, and
// a redeclare swaps a module's sources under a single lock, so readers see
// either the old or the new module.
type Index struct {
	projectRoot    string
	nodeModulesDir string
	resolver       ports.ModuleResolver
	isConfigFile   func(string) bool
	logger         *slog.Logger

	mu          sync.RWMutex
	identifiers map[string]*SuggestionsForIdentifier
	modules     map[string]*Module
}

func New(opts Options) *Index {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	isConfigFile := opts.IsConfigFile
	if isConfigFile == nil {
		isConfigFile = func(string) bool { return false }
	}
	return &Index{
		projectRoot:    opts.ProjectRoot,
		nodeModulesDir: filepath.Join(opts.ProjectRoot, "node_modules"),
		resolver:       opts.Resolver,
		isConfigFile:   isConfigFile,
		logger:         logger,
		identifiers:    make(map[string]*SuggestionsForIdentifier),
		modules:        make(map[string]*Module),
	}
}

func (ix *Index) ProjectRoot() string {
	return ix.projectRoot
}

// AddSuggestion inserts a single source.
func (ix *Index) AddSuggestion(s ImportSource) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.addLocked(s)
}

// DeleteSuggestion removes a single source, dropping the aggregate and the
// identifier entry once they are empty.
func (ix *Index) DeleteSuggestion(s ImportSource) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.deleteLocked(s)
}

func (ix *Index) addLocked(s ImportSource) {
	forID := ix.identifiers[s.ImportAs]
	if forID == nil {
		forID = &SuggestionsForIdentifier{
			Identifier:  s.ImportAs,
			suggestions: make(map[suggestionKey]*AggregatedSuggestion),
		}
		ix.identifiers[s.ImportAs] = forID
	}
	key := s.key()
	agg := forID.suggestions[key]
	if agg == nil {
		agg = newAggregatedSuggestion(key)
		forID.suggestions[key] = agg
	}
	agg.add(s, ix.isConfigFile)
}

func (ix *Index) deleteLocked(s ImportSource) {
	forID := ix.identifiers[s.ImportAs]
	if forID == nil {
		return
	}
	key := s.key()
	agg := forID.suggestions[key]
	if agg == nil || !agg.remove(s, ix.isConfigFile) {
		return
	}
	if agg.NumSources() == 0 {
		delete(forID.suggestions, key)
	}
	if len(forID.suggestions) == 0 {
		delete(ix.identifiers, s.ImportAs)
	}
}

// DeclareModule replaces everything file contributed with sources converted
// from decls.
func (ix *Index) DeclareModule(file string, decls []Declaration) {
	sources := ix.convert(file, decls)
	ix.replaceModule(file, sources)
}

// DeclareSynthetic replaces the sources of a module that has no file, such
// as a runtime core module.
func (ix *Index) DeclareSynthetic(name string, sources []ImportSource) {
	ix.replaceModule(name, sources)
}

func (ix *Index) replaceModule(key string, sources []ImportSource) {
	ix.mu.Lock()
	ix.undeclareLocked(key)
	if len(sources) > 0 {
		ix.modules[key] = &Module{File: key, Sources: sources}
		for _, s := range sources {
			ix.addLocked(s)
		}
	}
	ix.publishStatsLocked()
	ix.mu.Unlock()
}

// UndeclareModule removes every source file contributed.
func (ix *Index) UndeclareModule(file string) {
	ix.mu.Lock()
	ix.undeclareLocked(file)
	ix.publishStatsLocked()
	ix.mu.Unlock()
}

func (ix *Index) undeclareLocked(file string) {
	mod := ix.modules[file]
	if mod == nil {
		return
	}
	for _, s := range mod.Sources {
		ix.deleteLocked(s)
	}
	delete(ix.modules, file)
}

// Module returns a copy of the sources file contributed.
func (ix *Index) Module(file string) (Module, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	mod := ix.modules[file]
	if mod == nil {
		return Module{}, false
	}
	return Module{File: mod.File, Sources: append([]ImportSource(nil), mod.Sources...)}, true
}

// Identifiers lists every identifier with at least one suggestion, sorted.
func (ix *Index) Identifiers() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.identifiers))
	for id := range ix.identifiers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type Stats struct {
	Modules     int `json:"modules"`
	Identifiers int `json:"identifiers"`
}

func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{Modules: len(ix.modules), Identifiers: len(ix.identifiers)}
}

func (ix *Index) publishStatsLocked() {
	observability.IndexedModules.Set(float64(len(ix.modules)))
	observability.IndexedIdentifiers.Set(float64(len(ix.identifiers)))
}

// snapshot is a copy of an aggregate taken under the read lock.
type snapshot struct {
	imported   Imported
	importAs   string
	from       string
	kind       Kind
	preferred  bool
	numSources int
}

func (ix *Index) snapshots(identifier string) []snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	forID := ix.identifiers[identifier]
	if forID == nil {
		return nil
	}
	out := make([]snapshot, 0, len(forID.suggestions))
	for _, agg := range forID.suggestions {
		out = append(out, snapshot{
			imported:   agg.Imported,
			importAs:   agg.ImportAs,
			from:       agg.From,
			kind:       agg.kind,
			preferred:  agg.preferred,
			numSources: len(agg.sources),
		})
	}
	return out
}
