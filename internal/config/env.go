package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays RESCUE_* environment variables onto cfg. Malformed
// numbers and booleans are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("RESCUE_ALLOW_AUTO_CREATE_NAMESPACES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowAutoCreateNamespaces = b
		}
	}
	if v := os.Getenv("RESCUE_DEFAULT_NAMESPACE_NAME"); v != "" {
		cfg.DefaultNamespaceName = v
	}
	if v := os.Getenv("RESCUE_NAMESPACE_NAME_REGEX"); v != "" {
		cfg.NamespaceNameRegex = v
	}
	setInt(&cfg.MaxNamespaces, "RESCUE_MAX_NAMESPACES")
	if v := os.Getenv("RESCUE_ALLOWED_NAMESPACES"); v != "" {
		cfg.AllowedNamespaces = splitList(v)
	}
	if v := os.Getenv("RESCUE_ENGINE"); v != "" {
		cfg.Engine = strings.ToLower(v)
	}
	setInt64(&cfg.SweepIntervalMs, "RESCUE_SWEEP_INTERVAL_MS")

	setInt64(&cfg.Queue.LeaseTTLMs, "RESCUE_LEASE_TTL_MS")
	setInt(&cfg.Queue.ScanBatch, "RESCUE_SCAN_BATCH")
	if v := os.Getenv("RESCUE_OBFUSCATION_KEY"); v != "" {
		cfg.Queue.ObfuscationKey = v
	}

	setInt(&cfg.Worker.Workers, "RESCUE_WORKERS")
	setInt64(&cfg.Worker.PollIntervalMs, "RESCUE_POLL_INTERVAL_MS")
	setInt64(&cfg.Worker.PollTimeoutMs, "RESCUE_POLL_TIMEOUT_MS")

	if v := os.Getenv("RESCUE_MAX_CANDIDATES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Producer.MaxCandidates = n
		}
	}
	if v := os.Getenv("RESCUE_SUFFIXES"); v != "" {
		cfg.Producer.Suffixes = splitList(v)
	}
	if v := os.Getenv("RESCUE_FILTER"); v != "" {
		cfg.Producer.Filter = v
	}

	if v := os.Getenv("RESCUE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RESCUE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("RESCUE_LOG_REVEAL_SECRETS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.RevealSecrets = b
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
