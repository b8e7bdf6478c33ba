package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage engines a server can run on.
const (
	EnginePebble = "pebble"
	EngineSQLite = "sqlite"
	// EngineMemory keeps the queue in process memory; nothing survives a restart.
	EngineMemory = "memory"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	AllowAutoCreateNamespaces bool     `json:"allowAutoCreateNamespaces" yaml:"allowAutoCreateNamespaces"`
	DefaultNamespaceName      string   `json:"defaultNamespaceName" yaml:"defaultNamespaceName"`
	NamespaceNameRegex        string   `json:"namespaceNameRegex" yaml:"namespaceNameRegex"`
	MaxNamespaces             int      `json:"maxNamespaces" yaml:"maxNamespaces"`
	AllowedNamespaces         []string `json:"allowedNamespaces" yaml:"allowedNamespaces"`

	Engine          string `json:"engine" yaml:"engine"`
	SweepIntervalMs int64  `json:"sweepIntervalMs" yaml:"sweepIntervalMs"`

	Queue    QueueDefaults    `json:"queue" yaml:"queue"`
	Worker   WorkerDefaults   `json:"worker" yaml:"worker"`
	Producer ProducerDefaults `json:"producer" yaml:"producer"`
	Log      LogConfig        `json:"log" yaml:"log"`
}

// QueueDefaults apply to every namespace queue opened by a server.
type QueueDefaults struct {
	LeaseTTLMs     int64  `json:"leaseTtlMs" yaml:"leaseTtlMs"`
	ScanBatch      int    `json:"scanBatch" yaml:"scanBatch"`
	ObfuscationKey string `json:"obfuscationKey" yaml:"obfuscationKey"`
}

// WorkerDefaults configure the consume side.
type WorkerDefaults struct {
	Workers        int   `json:"workers" yaml:"workers"`
	PollIntervalMs int64 `json:"pollIntervalMs" yaml:"pollIntervalMs"`
	PollTimeoutMs  int64 `json:"pollTimeoutMs" yaml:"pollTimeoutMs"`
}

// ProducerDefaults configure the produce side.
type ProducerDefaults struct {
	MaxCandidates uint64   `json:"maxCandidates" yaml:"maxCandidates"`
	Suffixes      []string `json:"suffixes" yaml:"suffixes"`
	Filter        string   `json:"filter" yaml:"filter"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	// RevealSecrets logs candidates and patterns in clear text.
	RevealSecrets bool `json:"revealSecrets" yaml:"revealSecrets"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		AllowAutoCreateNamespaces: true,
		DefaultNamespaceName:      "default",
		NamespaceNameRegex:        "[a-z0-9-_]{1,64}",
		Engine:                    EnginePebble,
		SweepIntervalMs:           1000,
		Queue: QueueDefaults{
			LeaseTTLMs: 60_000,
			ScanBatch:  256,
		},
		Worker: WorkerDefaults{
			PollIntervalMs: 1000,
			PollTimeoutMs:  5000,
		},
		Producer: ProducerDefaults{
			MaxCandidates: 50_000_000,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch c.Engine {
	case EnginePebble, EngineSQLite, EngineMemory:
	default:
		return fmt.Errorf("config: unknown engine %q", c.Engine)
	}
	if c.Queue.LeaseTTLMs <= 0 {
		return errors.New("config: queue.leaseTtlMs must be positive")
	}
	if c.Queue.ScanBatch < 0 || c.Worker.Workers < 0 {
		return errors.New("config: negative scanBatch or workers")
	}
	if c.Worker.PollIntervalMs < 0 || c.Worker.PollTimeoutMs < 0 || c.SweepIntervalMs < 0 {
		return errors.New("config: negative interval")
	}
	if c.NamespaceNameRegex != "" {
		re, err := regexp.Compile("^(?:" + c.NamespaceNameRegex + ")$")
		if err != nil {
			return fmt.Errorf("config: namespaceNameRegex: %w", err)
		}
		if !re.MatchString(c.DefaultNamespaceName) {
			return fmt.Errorf("config: default namespace %q does not match %q", c.DefaultNamespaceName, c.NamespaceNameRegex)
		}
	}
	return nil
}

func (c Config) LeaseTTL() time.Duration      { return ms(c.Queue.LeaseTTLMs) }
func (c Config) SweepInterval() time.Duration { return ms(c.SweepIntervalMs) }
func (c Config) PollInterval() time.Duration  { return ms(c.Worker.PollIntervalMs) }
func (c Config) PollTimeout() time.Duration   { return ms(c.Worker.PollTimeoutMs) }

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }
