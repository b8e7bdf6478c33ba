package log

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
)

// policy decides how field values are rendered. It is shared by a logger
// and all of its children.
type policy struct {
	reveal  bool
	redact  map[string]struct{}
	sampler *sampler
}

func (p *policy) render(key string, v any) any {
	if _, ok := p.redact[key]; ok {
		return "[REDACTED]"
	}
	if s, ok := v.(secret); ok {
		if p.reveal {
			return string(s)
		}
		return s.masked()
	}
	return v
}

// handler is the slog.Handler behind BaseLogger. Records become Entries that
// go through the logger's formatter and outputs.
type handler struct {
	logger *BaseLogger
	attrs  []slog.Attr
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.level <= fromSlogLevel(level)
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	l := h.logger
	if l.policy.sampler != nil && !l.policy.sampler.allow(r.Level, r.Message) {
		return nil
	}
	fields := make(Fields, len(l.fields)+len(h.attrs)+r.NumAttrs())
	for k, v := range l.fields {
		fields[k] = l.policy.render(k, v)
	}
	add := func(a slog.Attr) bool {
		fields[a.Key] = l.policy.render(a.Key, a.Value.Any())
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)

	caller := ""
	if r.PC != 0 {
		if fn := runtime.FuncForPC(r.PC); fn != nil {
			file, line := fn.FileLine(r.PC)
			caller = file + ":" + strconv.Itoa(line)
		}
	}
	entry := &Entry{
		Level:     fromSlogLevel(r.Level),
		Message:   r.Message,
		Fields:    fields,
		Timestamp: r.Time,
		Caller:    caller,
	}
	formatted, err := l.formatter.Format(entry)
	if err != nil {
		return err
	}
	for _, out := range l.outputs {
		_ = out.Write(entry, formatted)
	}
	return nil
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{logger: h.logger, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

// WithGroup is accepted but groups are flattened.
func (h *handler) WithGroup(string) slog.Handler { return h }

// sampler counts lines per level and message.
type sampler struct {
	mu         sync.Mutex
	initial    uint64
	thereafter uint64
	counts     map[string]uint64
}

func newSampler(initial, thereafter int) *sampler {
	if initial < 0 {
		initial = 0
	}
	return &sampler{
		initial:    uint64(initial),
		thereafter: uint64(thereafter),
		counts:     make(map[string]uint64),
	}
}

func (s *sampler) allow(level slog.Level, message string) bool {
	key := strconv.Itoa(int(level)) + ":" + message
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.counts[key]
	s.counts[key] = n + 1
	if n < s.initial {
		return true
	}
	return (n-s.initial)%s.thereafter == 0
}

// slog has no fatal level; fatal lines use LevelError+4.
const slogFatal = slog.LevelError + 4

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	case FatalLevel:
		return slogFatal
	default:
		return slog.LevelInfo
	}
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level <= slog.LevelDebug:
		return DebugLevel
	case level < slog.LevelWarn:
		return InfoLevel
	case level < slog.LevelError:
		return WarnLevel
	case level < slogFatal:
		return ErrorLevel
	default:
		return FatalLevel
	}
}
