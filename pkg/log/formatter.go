package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// TextFormatter renders entries as a single human readable line:
//
//	2024-01-02T15:04:05.000Z INFO  lease acquired component=worker digest=9375d1ab...
type TextFormatter struct {
	// DisableTimestamp omits the leading timestamp.
	DisableTimestamp bool
	// ShowCaller appends the caller file:line.
	ShowCaller bool
	// TimestampFormat overrides the default RFC3339 millisecond layout.
	TimestampFormat string
}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var b bytes.Buffer
	if !f.DisableTimestamp {
		layout := f.TimestampFormat
		if layout == "" {
			layout = "2006-01-02T15:04:05.000Z07:00"
		}
		ts := entry.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		b.WriteString(ts.Format(layout))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s %s", entry.Level.String(), entry.Message)

	for _, k := range sortedKeys(entry.Fields) {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		writeTextValue(&b, entry.Fields[k])
	}
	if f.ShowCaller && entry.Caller != "" {
		b.WriteString(" caller=")
		b.WriteString(entry.Caller)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func writeTextValue(b *bytes.Buffer, v interface{}) {
	s := fmt.Sprint(v)
	if s == "" || bytes.ContainsAny([]byte(s), " \t\n\"=") {
		fmt.Fprintf(b, "%q", s)
		return
	}
	b.WriteString(s)
}

// JSONFormatter renders entries as one JSON object per line.
type JSONFormatter struct {
	// ShowCaller adds a "caller" key.
	ShowCaller bool
}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	out := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		out[k] = v
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	out["ts"] = ts.UTC().Format(time.RFC3339Nano)
	out["level"] = entry.Level.String()
	out["msg"] = entry.Message
	if f.ShowCaller && entry.Caller != "" {
		out["caller"] = entry.Caller
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func sortedKeys(m Fields) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
