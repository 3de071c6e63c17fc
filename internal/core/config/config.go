package config

import (
	"strings"
	"time"
)

// FileName is the optional per-project configuration file.
const FileName = "dwmm.toml"

type Config struct {
	Version       int                 `toml:"version"`
	Watch         Watch               `toml:"watch"`
	Daemon        Daemon              `toml:"daemon"`
	Cache         Cache               `toml:"cache"`
	Observability ObservabilityConfig `toml:"observability"`
	Log           Log                 `toml:"log"`
}

type Watch struct {
	Extensions []string `toml:"extensions"`
	// ConfigSuffixes name the files that declare preferred imports.
	ConfigSuffixes   []string      `toml:"config_suffixes"`
	ExtraIgnore      []string      `toml:"extra_ignore"`
	Debounce         time.Duration `toml:"debounce"`
	ProgressInterval time.Duration `toml:"progress_interval"`
}

type Daemon struct {
	TempDir         string        `toml:"temp_dir"`
	LockStale       time.Duration `toml:"lock_stale"`
	LockRefresh     time.Duration `toml:"lock_refresh"`
	ConnectTimeout  time.Duration `toml:"connect_timeout"`
	ConnectInterval time.Duration `toml:"connect_interval"`
	NativesTimeout  time.Duration `toml:"natives_timeout"`
	PluginTimeout   time.Duration `toml:"plugin_timeout"`
	NodeBinary      string        `toml:"node_binary"`
	// RequestsPerSecond caps requests per connection; zero disables the limit.
	RequestsPerSecond float64 `toml:"requests_per_second"`
	RequestBurst      int     `toml:"request_burst"`
}

type Cache struct {
	Enabled        bool   `toml:"enabled"`
	Path           string `toml:"path"`
	ResolveEntries int    `toml:"resolve_entries"`
}

type ObservabilityConfig struct {
	Enabled       bool   `toml:"enabled"`
	MetricsAddr   string `toml:"metrics_addr"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
}

type Log struct {
	Level string `toml:"level"`
}

// IsConfigFile reports whether path is a preferred-imports configuration
// file.
func (w Watch) IsConfigFile(path string) bool {
	return hasAnySuffix(path, w.ConfigSuffixes)
}

// IsSourceFile reports whether path has a watched source extension.
func (w Watch) IsSourceFile(path string) bool {
	return hasAnySuffix(strings.ToLower(path), w.Extensions)
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
