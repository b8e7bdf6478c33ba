package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.AllowAutoCreateNamespaces {
		t.Fatalf("default allow auto create should be true")
	}
	if cfg.DefaultNamespaceName != "default" {
		t.Fatalf("default ns name")
	}
	if cfg.Engine != EnginePebble {
		t.Fatalf("engine default: %s", cfg.Engine)
	}
	if cfg.LeaseTTL() != 60*time.Second {
		t.Fatalf("lease ttl default: %s", cfg.LeaseTTL())
	}
	if cfg.PollInterval() != time.Second || cfg.PollTimeout() != 5*time.Second {
		t.Fatalf("poll defaults: %s %s", cfg.PollInterval(), cfg.PollTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default must validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rescue.json")
	data := []byte(`{"allowAutoCreateNamespaces":false,"defaultNamespaceName":"prod","engine":"sqlite","queue":{"leaseTtlMs":30000,"scanBatch":64}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AllowAutoCreateNamespaces {
		t.Fatalf("expected false")
	}
	if cfg.DefaultNamespaceName != "prod" || cfg.Engine != EngineSQLite {
		t.Fatalf("unexpected %+v", cfg)
	}
	if cfg.LeaseTTL() != 30*time.Second || cfg.Queue.ScanBatch != 64 {
		t.Fatalf("queue %+v", cfg.Queue)
	}
	// untouched sections keep their defaults
	if cfg.Worker.PollTimeoutMs != 5000 {
		t.Fatalf("worker defaults lost: %+v", cfg.Worker)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rescue.yaml")
	data := []byte(`
defaultNamespaceName: luks
worker:
  workers: 8
  pollTimeoutMs: 2500
producer:
  suffixes: ["Master 1", "Master 2"]
  filter: "length >= 8"
log:
  level: debug
`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultNamespaceName != "luks" || cfg.Worker.Workers != 8 || cfg.PollTimeout() != 2500*time.Millisecond {
		t.Fatalf("unexpected %+v", cfg)
	}
	if len(cfg.Producer.Suffixes) != 2 || cfg.Producer.Filter != "length >= 8" {
		t.Fatalf("producer %+v", cfg.Producer)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Fatalf("log %+v", cfg.Log)
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(file, []byte("queue: [1, 2"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("RESCUE_ALLOW_AUTO_CREATE_NAMESPACES", "false")
	t.Setenv("RESCUE_DEFAULT_NAMESPACE_NAME", "staging")
	t.Setenv("RESCUE_ENGINE", "SQLite")
	t.Setenv("RESCUE_LEASE_TTL_MS", "1500")
	t.Setenv("RESCUE_WORKERS", "3")
	t.Setenv("RESCUE_SUFFIXES", "Master 1, Master 2,")
	t.Setenv("RESCUE_SCAN_BATCH", "not-a-number")
	FromEnv(&cfg)
	if cfg.AllowAutoCreateNamespaces {
		t.Fatalf("env override bool")
	}
	if cfg.DefaultNamespaceName != "staging" {
		t.Fatalf("env override name")
	}
	if cfg.Engine != EngineSQLite {
		t.Fatalf("env override engine: %s", cfg.Engine)
	}
	if cfg.LeaseTTL() != 1500*time.Millisecond || cfg.Worker.Workers != 3 {
		t.Fatalf("env override numbers: %+v", cfg)
	}
	if len(cfg.Producer.Suffixes) != 2 || cfg.Producer.Suffixes[1] != "Master 2" {
		t.Fatalf("env override suffixes: %q", cfg.Producer.Suffixes)
	}
	if cfg.Queue.ScanBatch != 256 {
		t.Fatalf("malformed value must be ignored, got %d", cfg.Queue.ScanBatch)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"engine", func(c *Config) { c.Engine = "redis" }},
		{"lease", func(c *Config) { c.Queue.LeaseTTLMs = 0 }},
		{"workers", func(c *Config) { c.Worker.Workers = -1 }},
		{"interval", func(c *Config) { c.Worker.PollIntervalMs = -5 }},
		{"regex", func(c *Config) { c.NamespaceNameRegex = "[" }},
		{"default ns", func(c *Config) { c.DefaultNamespaceName = "Not Valid" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
