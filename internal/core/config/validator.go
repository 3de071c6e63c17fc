package config

import (
	"dwmm/internal/shared/util"
	"fmt"
	"strings"
	"time"
)

func validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}
	if len(cfg.Watch.Extensions) == 0 {
		return fmt.Errorf("watch.extensions must not be empty")
	}

	durations := map[string]time.Duration{
		"watch.debounce":          cfg.Watch.Debounce,
		"watch.progress_interval": cfg.Watch.ProgressInterval,
		"daemon.lock_stale":       cfg.Daemon.LockStale,
		"daemon.lock_refresh":     cfg.Daemon.LockRefresh,
		"daemon.connect_timeout":  cfg.Daemon.ConnectTimeout,
		"daemon.connect_interval": cfg.Daemon.ConnectInterval,
		"daemon.natives_timeout":  cfg.Daemon.NativesTimeout,
		"daemon.plugin_timeout":   cfg.Daemon.PluginTimeout,
	}
	for _, key := range util.SortedStringKeys(durations) {
		if durations[key] < 0 {
			return fmt.Errorf("%s must not be negative, got %s", key, durations[key])
		}
	}
	if cfg.Daemon.LockRefresh >= cfg.Daemon.LockStale {
		return fmt.Errorf("daemon.lock_refresh (%s) must be shorter than daemon.lock_stale (%s)", cfg.Daemon.LockRefresh, cfg.Daemon.LockStale)
	}
	if cfg.Daemon.RequestsPerSecond < 0 {
		return fmt.Errorf("daemon.requests_per_second must not be negative")
	}
	if cfg.Cache.ResolveEntries < 0 {
		return fmt.Errorf("cache.resolve_entries must not be negative")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", cfg.Log.Level)
	}
	return nil
}
