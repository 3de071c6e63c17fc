package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: DWMM_[SECTION]_[KEY] (e.g., DWMM_DAEMON_TEMP_DIR).
func ApplyEnvOverrides(cfg *Config) {
	// Watch
	setEnvList(&cfg.Watch.Extensions, "DWMM_WATCH_EXTENSIONS")
	setEnvList(&cfg.Watch.ExtraIgnore, "DWMM_WATCH_EXTRA_IGNORE")
	setEnvDuration(&cfg.Watch.Debounce, "DWMM_WATCH_DEBOUNCE")
	setEnvDuration(&cfg.Watch.ProgressInterval, "DWMM_WATCH_PROGRESS_INTERVAL")

	// Daemon
	setEnvString(&cfg.Daemon.TempDir, "DWMM_DAEMON_TEMP_DIR")
	setEnvDuration(&cfg.Daemon.LockStale, "DWMM_DAEMON_LOCK_STALE")
	setEnvDuration(&cfg.Daemon.LockRefresh, "DWMM_DAEMON_LOCK_REFRESH")
	setEnvDuration(&cfg.Daemon.ConnectTimeout, "DWMM_DAEMON_CONNECT_TIMEOUT")
	setEnvDuration(&cfg.Daemon.ConnectInterval, "DWMM_DAEMON_CONNECT_INTERVAL")
	setEnvDuration(&cfg.Daemon.NativesTimeout, "DWMM_DAEMON_NATIVES_TIMEOUT")
	setEnvDuration(&cfg.Daemon.PluginTimeout, "DWMM_DAEMON_PLUGIN_TIMEOUT")
	setEnvString(&cfg.Daemon.NodeBinary, "DWMM_DAEMON_NODE_BINARY")
	setEnvFloat64(&cfg.Daemon.RequestsPerSecond, "DWMM_DAEMON_REQUESTS_PER_SECOND")
	setEnvInt(&cfg.Daemon.RequestBurst, "DWMM_DAEMON_REQUEST_BURST")

	// Cache
	setEnvBool(&cfg.Cache.Enabled, "DWMM_CACHE_ENABLED")
	setEnvString(&cfg.Cache.Path, "DWMM_CACHE_PATH")
	setEnvInt(&cfg.Cache.ResolveEntries, "DWMM_CACHE_RESOLVE_ENTRIES")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "DWMM_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.MetricsAddr, "DWMM_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "DWMM_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "DWMM_OBSERVABILITY_ENABLE_TRACING")

	// Log
	setEnvString(&cfg.Log.Level, "DWMM_LOG_LEVEL")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Printf("Applying env override: %s=%s", key, val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		log.Printf("Applying env override: %s=%s", key, val)
		*target = out
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = d
		}
	}
}
