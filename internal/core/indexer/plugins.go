package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"dwmm/internal/core/ports"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"
)

// pluginScript loads a configuration module and prints its preferred import
// snippets as a JSON array. The module may export an array, a function
// returning one, or an object with a preferredImports field.
const pluginScript = `const [file, projectRoot] = process.argv.slice(1)
let m = require(file)
if (m && m.__esModule && 'default' in m) m = m.default
if (typeof m === 'function') m = m({ file, projectRoot })
Promise.resolve(m).then(v => {
  if (v && !Array.isArray(v)) v = v.preferredImports
  if (!Array.isArray(v)) v = []
  console.log(JSON.stringify(v.filter(s => typeof s === 'string')))
}).catch(e => {
  console.error((e && e.stack) || String(e))
  process.exit(1)
})
`

// NodePlugin evaluates .js configuration files in a node subprocess.
type NodePlugin struct {
	Binary      string
	Timeout     time.Duration
	ProjectRoot string
}

var _ ports.PreferredImportsLoader = (*NodePlugin)(nil)

func (n *NodePlugin) Supports(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".js" || ext == ".cjs" || ext == ".mjs"
}

func (n *NodePlugin) LoadPreferredImports(ctx context.Context, path string) ([]string, error) {
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}
	binary := n.Binary
	if binary == "" {
		binary = "node"
	}
	cmd := exec.CommandContext(ctx, binary, "-e", pluginScript, path, n.ProjectRoot)
	cmd.Dir = filepath.Dir(path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w: %s", path, err, bytes.TrimSpace(stderr.Bytes()))
	}
	var snippets []string
	if err := json.Unmarshal(out, &snippets); err != nil {
		return nil, fmt.Errorf("decode preferred imports of %s: %w", path, err)
	}
	return snippets, nil
}

// RisorPlugin evaluates .risor configuration files in an embedded VM. The
// script sees the globals file and projectRoot and must evaluate to a list
// of strings.
type RisorPlugin struct {
	ProjectRoot string
	Timeout     time.Duration
}

var _ ports.PreferredImportsLoader = (*RisorPlugin)(nil)

func (r *RisorPlugin) Supports(path string) bool {
	return filepath.Ext(path) == ".risor"
}

func (r *RisorPlugin) LoadPreferredImports(ctx context.Context, path string) ([]string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	result, err := risor.Eval(ctx, string(src),
		risor.WithGlobal("file", object.NewString(path)),
		risor.WithGlobal("projectRoot", object.NewString(r.ProjectRoot)),
	)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", path, err)
	}
	list, ok := result.(*object.List)
	if !ok {
		return nil, fmt.Errorf("evaluate %s: expected a list of strings, got %s", path, result.Type())
	}
	snippets := make([]string, 0, len(list.Value()))
	for i, item := range list.Value() {
		s, ok := item.(*object.String)
		if !ok {
			return nil, fmt.Errorf("evaluate %s: item %d is %s, not a string", path, i, item.Type())
		}
		snippets = append(snippets, s.Value())
	}
	return snippets, nil
}

// Plugins dispatches to the first loader that supports a file.
type Plugins []ports.PreferredImportsLoader

func (p Plugins) Supports(path string) bool {
	return p.find(path) != nil
}

func (p Plugins) LoadPreferredImports(ctx context.Context, path string) ([]string, error) {
	l := p.find(path)
	if l == nil {
		return nil, fmt.Errorf("no configuration loader for %s", filepath.Base(path))
	}
	return l.LoadPreferredImports(ctx, path)
}

func (p Plugins) find(path string) ports.PreferredImportsLoader {
	for _, l := range p {
		if l != nil && l.Supports(path) {
			return l
		}
	}
	return nil
}
