package log

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// log must be called directly by the exported level methods so the caller
// frame skip stays right.
func (l *BaseLogger) log(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip Callers, log and the level method
	r := slog.NewRecord(time.Now(), toSlogLevel(level), msg, pcs[0])
	for _, f := range fields {
		r.AddAttrs(slog.Any(f.Key, f.Value))
	}
	_ = l.slogLogger.Handler().Handle(context.Background(), r)
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// Fatal logs at fatal level, closes the outputs and exits.
func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fields)
	l.closeOutputs()
	l.exit(1)
}

func (l *BaseLogger) With(fields ...Field) Logger {
	m := make(Fields, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return l.clone(m)
}

func (l *BaseLogger) WithError(err error) Logger {
	f := Err(err)
	return l.clone(Fields{f.Key: f.Value})
}

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.clone(Fields{ComponentKey: component})
}

// SetLevel only affects this logger, not its parent or existing children.
func (l *BaseLogger) SetLevel(level Level) { l.level = level }

func (l *BaseLogger) GetLevel() Level { return l.level }

// Slog exposes the underlying slog.Logger.
func (l *BaseLogger) Slog() *slog.Logger { return l.slogLogger }

func (l *BaseLogger) clone(extra Fields) *BaseLogger {
	merged := make(Fields, len(l.fields)+len(extra))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	child := &BaseLogger{
		level:     l.level,
		fields:    merged,
		formatter: l.formatter,
		outputs:   l.outputs,
		policy:    l.policy,
		exit:      l.exit,
	}
	child.slogLogger = slog.New(&handler{logger: child})
	return child
}

func (l *BaseLogger) closeOutputs() {
	for _, out := range l.outputs {
		if err := out.Close(); err != nil {
			fmt.Printf("log: close output: %v\n", err)
		}
	}
}
