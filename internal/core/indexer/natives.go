package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"dwmm/internal/core/ports"
	"dwmm/internal/engine/resolver"
)

// nativesScript prints {module: [exportName...]} for every loadable core
// module.
const nativesScript = `const result = {}
const names = require('module').builtinModules
for (const key of names) {
  if (/^_|\/|^sys$/.test(key)) continue
  try {
    result[key] = Object.keys(require(key))
  } catch (error) {}
}
console.log(JSON.stringify(result))
`

// NodeNatives asks a short-lived node process for the core modules and their
// exports.
type NodeNatives struct {
	Binary  string
	Timeout time.Duration
}

var _ ports.NativesLoader = (*NodeNatives)(nil)

func (n *NodeNatives) LoadNatives(ctx context.Context) (map[string][]string, error) {
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}
	binary := n.Binary
	if binary == "" {
		binary = "node"
	}
	cmd := exec.CommandContext(ctx, binary, "-e", nativesScript)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("natives helper failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	natives := make(map[string][]string)
	if err := json.Unmarshal(out, &natives); err != nil {
		return nil, fmt.Errorf("decode natives: %w", err)
	}
	return natives, nil
}

// StaticNatives serves the bundled core module list without export names.
type StaticNatives struct{}

func (StaticNatives) LoadNatives(context.Context) (map[string][]string, error) {
	natives := make(map[string][]string)
	for _, name := range resolver.BuiltinModules() {
		natives[name] = nil
	}
	return natives, nil
}

// FallbackNatives tries Primary and falls back to Secondary on error.
type FallbackNatives struct {
	Primary   ports.NativesLoader
	Secondary ports.NativesLoader
}

func (f FallbackNatives) LoadNatives(ctx context.Context) (map[string][]string, error) {
	natives, err := f.Primary.LoadNatives(ctx)
	if err == nil || f.Secondary == nil {
		return natives, err
	}
	slog.Warn("natives helper unavailable, using bundled module list", "error", err)
	fallback, ferr := f.Secondary.LoadNatives(ctx)
	if ferr != nil {
		return nil, err
	}
	return fallback, nil
}
