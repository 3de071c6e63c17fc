package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var (
	DefaultExtensions     = []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}
	DefaultConfigSuffixes = []string{".dude-wheres-my-module.js", ".dude-wheres-my-module.risor"}
)

// Load reads a config file. Decoding, defaults and validation follow the same
// order for every entry point.
func Load(path string) (*Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadForProject loads <root>/dwmm.toml when present and falls back to the
// defaults otherwise. Environment overrides are applied in both cases.
func LoadForProject(root string) (*Config, error) {
	cfg := &Config{}
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); err == nil {
		if cfg, err = decodeFile(path); err != nil {
			return nil, err
		}
	}
	ApplyEnvOverrides(cfg)
	return finish(cfg)
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	normalizeWatch(cfg)
	return cfg
}

func decodeFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	applyDefaults(cfg)
	normalizeWatch(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if len(cfg.Watch.Extensions) == 0 {
		cfg.Watch.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if len(cfg.Watch.ConfigSuffixes) == 0 {
		cfg.Watch.ConfigSuffixes = append([]string(nil), DefaultConfigSuffixes...)
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 50 * time.Millisecond
	}
	if cfg.Watch.ProgressInterval == 0 {
		cfg.Watch.ProgressInterval = time.Second
	}

	if strings.TrimSpace(cfg.Daemon.TempDir) == "" {
		cfg.Daemon.TempDir = filepath.Join(os.TempDir(), "dude-wheres-my-module")
	}
	if cfg.Daemon.LockStale == 0 {
		cfg.Daemon.LockStale = 11 * time.Second
	}
	if cfg.Daemon.LockRefresh == 0 {
		cfg.Daemon.LockRefresh = 10 * time.Second
	}
	if cfg.Daemon.ConnectTimeout == 0 {
		cfg.Daemon.ConnectTimeout = 30 * time.Second
	}
	if cfg.Daemon.ConnectInterval == 0 {
		cfg.Daemon.ConnectInterval = 100 * time.Millisecond
	}
	if cfg.Daemon.NativesTimeout == 0 {
		cfg.Daemon.NativesTimeout = 10 * time.Second
	}
	if cfg.Daemon.PluginTimeout == 0 {
		cfg.Daemon.PluginTimeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.Daemon.NodeBinary) == "" {
		cfg.Daemon.NodeBinary = "node"
	}
	if cfg.Daemon.RequestsPerSecond > 0 && cfg.Daemon.RequestBurst <= 0 {
		cfg.Daemon.RequestBurst = int(cfg.Daemon.RequestsPerSecond)
		if cfg.Daemon.RequestBurst < 1 {
			cfg.Daemon.RequestBurst = 1
		}
	}

	if strings.TrimSpace(cfg.Cache.Path) == "" {
		cfg.Cache.Path = "declarations.db"
	}
	if cfg.Cache.ResolveEntries == 0 {
		cfg.Cache.ResolveEntries = 4096
	}

	if strings.TrimSpace(cfg.Observability.MetricsAddr) == "" {
		cfg.Observability.MetricsAddr = "127.0.0.1:9464"
	}

	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
}

func normalizeWatch(cfg *Config) {
	normalized := make([]string, 0, len(cfg.Watch.Extensions))
	for _, ext := range cfg.Watch.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	cfg.Watch.Extensions = normalized

	suffixes := make([]string, 0, len(cfg.Watch.ConfigSuffixes))
	for _, suffix := range cfg.Watch.ConfigSuffixes {
		if suffix = strings.TrimSpace(suffix); suffix != "" {
			suffixes = append(suffixes, suffix)
		}
	}
	cfg.Watch.ConfigSuffixes = suffixes
}
