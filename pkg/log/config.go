package log

import (
	"fmt"
	"strings"
)

// Config describes a logger declaratively. Zero values select info/text on
// the console.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	// Outputs lists "console", "null" or "file:<path>" sinks.
	Outputs []string `json:"outputs" yaml:"outputs"`
	// Redact replaces the values of these field keys with [REDACTED].
	Redact []string `json:"redact" yaml:"redact"`
	// SampleInitial/SampleThereafter keep the first N lines of each message
	// and then every Mth.
	SampleInitial    int  `json:"sampleInitial" yaml:"sampleInitial"`
	SampleThereafter int  `json:"sampleThereafter" yaml:"sampleThereafter"`
	ShowCaller       bool `json:"showCaller" yaml:"showCaller"`
	// RevealSecrets prints Secret fields (candidates, patterns) in clear.
	RevealSecrets bool `json:"revealSecrets" yaml:"revealSecrets"`
}

// ParseLevel maps a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// ApplyConfig builds a logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{ShowCaller: cfg.ShowCaller}
	case "json":
		formatter = &JSONFormatter{ShowCaller: cfg.ShowCaller}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	opts := []LoggerOption{
		WithLevel(level),
		WithFormatter(formatter),
		WithRevealSecrets(cfg.RevealSecrets),
		WithRedact(cfg.Redact...),
		WithSampling(cfg.SampleInitial, cfg.SampleThereafter),
	}
	for _, o := range cfg.Outputs {
		switch {
		case o == "console":
			opts = append(opts, WithOutput(NewConsoleOutput()))
		case o == "null":
			opts = append(opts, WithOutput(NullOutput{}))
		case strings.HasPrefix(o, "file:"):
			fo, err := NewFileOutput(strings.TrimPrefix(o, "file:"))
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithOutput(fo))
		default:
			return nil, fmt.Errorf("log: unknown output %q", o)
		}
	}

	return NewLogger(opts...), nil
}
