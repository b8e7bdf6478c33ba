package log

import (
	"log/slog"
	"os"
	"time"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Fields is a map of field names to values.
type Fields map[string]interface{}

// ComponentKey is the field naming the emitting component.
const ComponentKey = "component"

// Entry represents a single log entry.
type Entry struct {
	Level     Level
	Message   string
	Fields    Fields
	Timestamp time.Time
	Caller    string
}

// Logger is the leveled, structured logger passed to every rescue component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal logs and exits the process with status 1.
	Fatal(msg string, fields ...Field)

	// With returns a child logger carrying fields on every line.
	With(fields ...Field) Logger
	WithError(err error) Logger
	WithComponent(component string) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Formatter defines the interface for formatting log entries.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output defines the interface for log outputs.
type Output interface {
	Write(entry *Entry, formattedEntry []byte) error
	Close() error
}

// LoggerOption is a function that configures a logger.
type LoggerOption func(*BaseLogger)

// BaseLogger implements Logger on top of a slog handler that feeds the
// formatter and outputs.
type BaseLogger struct {
	level      Level
	fields     Fields
	formatter  Formatter
	outputs    []Output
	policy     *policy
	slogLogger *slog.Logger
	exit       func(int)
}

// NewLogger creates a new logger with the given options. There is no global
// default logger; construct one and pass it explicitly.
func NewLogger(options ...LoggerOption) Logger {
	logger := &BaseLogger{
		level:     InfoLevel,
		fields:    Fields{},
		formatter: &JSONFormatter{},
		policy:    &policy{},
		exit:      os.Exit,
	}
	for _, option := range options {
		option(logger)
	}
	if len(logger.outputs) == 0 {
		logger.outputs = append(logger.outputs, &ConsoleOutput{})
	}
	logger.slogLogger = slog.New(&handler{logger: logger})
	return logger
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(l *BaseLogger) {
		l.level = level
	}
}

// WithFormatter sets the log formatter.
func WithFormatter(formatter Formatter) LoggerOption {
	return func(l *BaseLogger) {
		l.formatter = formatter
	}
}

// WithOutput adds an output to the logger.
func WithOutput(output Output) LoggerOption {
	return func(l *BaseLogger) {
		l.outputs = append(l.outputs, output)
	}
}

// WithRevealSecrets prints Secret fields in clear text instead of their length.
func WithRevealSecrets(reveal bool) LoggerOption {
	return func(l *BaseLogger) {
		l.policy.reveal = reveal
	}
}

// WithRedact replaces the values of the given keys with [REDACTED].
func WithRedact(keys ...string) LoggerOption {
	return func(l *BaseLogger) {
		if len(keys) == 0 {
			return
		}
		l.policy.redact = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			l.policy.redact[k] = struct{}{}
		}
	}
}

// WithSampling keeps the first initial lines of each message and then every
// thereafter-th one.
func WithSampling(initial, thereafter int) LoggerOption {
	return func(l *BaseLogger) {
		if thereafter > 0 {
			l.policy.sampler = newSampler(initial, thereafter)
		}
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return NewLogger(WithLevel(FatalLevel), WithOutput(NullOutput{}))
}
