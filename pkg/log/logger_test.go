package log

import (
	"bytes"
	"encoding/json"
	stdlog "log"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, f Formatter, opts ...LoggerOption) (*BaseLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts = append([]LoggerOption{WithFormatter(f), WithOutput(NewWriterOutput(&buf))}, opts...)
	return NewLogger(opts...).(*BaseLogger), &buf
}

func TestLevelGating(t *testing.T) {
	l, buf := newBufferLogger(t, &TextFormatter{DisableTimestamp: true}, WithLevel(WarnLevel))
	l.Info("hidden")
	l.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "WARN  shown") {
		t.Fatalf("missing warn line: %q", out)
	}
}

func TestTextFieldsSortedAndQuoted(t *testing.T) {
	l, buf := newBufferLogger(t, &TextFormatter{DisableTimestamp: true}, WithLevel(DebugLevel))
	l.With(Component("worker")).Info("polled", Str("b", "two words"), Int("a", 1))
	got := strings.TrimSpace(buf.String())
	want := `INFO  polled a=1 b="two words" component=worker`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestJSONFormatter(t *testing.T) {
	l, buf := newBufferLogger(t, &JSONFormatter{})
	l.With(Str("worker", "w1")).Error("verify failed", Err(errString("boom")))
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if m["msg"] != "verify failed" || m["level"] != "ERROR" || m["worker"] != "w1" || m["error"] != "boom" {
		t.Fatalf("unexpected entry: %v", m)
	}
}

func TestCallerPointsAtCallSite(t *testing.T) {
	l, buf := newBufferLogger(t, &TextFormatter{DisableTimestamp: true, ShowCaller: true})
	l.Info("here")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("caller missing or wrong: %q", buf.String())
	}
}

func TestChildLevelIsIndependent(t *testing.T) {
	l, buf := newBufferLogger(t, &TextFormatter{DisableTimestamp: true})
	child := l.WithComponent("c")
	child.SetLevel(ErrorLevel)
	child.Info("child-info")
	l.Info("parent-info")
	out := buf.String()
	if strings.Contains(out, "child-info") || !strings.Contains(out, "parent-info") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestSecretsMaskedByDefault(t *testing.T) {
	l, buf := newBufferLogger(t, &TextFormatter{DisableTimestamp: true})
	l.With(Secret("pattern", "Hi [wo|rl]!")).Info("leased", Secret("candidate", "hunter2"))
	out := buf.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "Hi [wo") {
		t.Fatalf("secret leaked: %q", out)
	}
	if !strings.Contains(out, `candidate="<7 bytes>"`) || !strings.Contains(out, `pattern="<11 bytes>"`) {
		t.Fatalf("secret not masked: %q", out)
	}
}

func TestSecretsRevealed(t *testing.T) {
	l, buf := newBufferLogger(t, &JSONFormatter{}, WithRevealSecrets(true))
	l.Info("leased", Secret("candidate", "hunter2"))
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["candidate"] != "hunter2" {
		t.Fatalf("secret not revealed: %v", m)
	}
}

func TestApplyConfigRedactsAndSamples(t *testing.T) {
	lg, err := ApplyConfig(&Config{Level: "debug", Format: "text", Outputs: []string{"null"}, Redact: []string{"digest"}, SampleInitial: 1, SampleThereafter: 3})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	bl := lg.(*BaseLogger)
	var buf bytes.Buffer
	bl.outputs = []Output{NewWriterOutput(&buf)}
	child := bl.WithComponent("workqueue")
	for i := 0; i < 5; i++ {
		child.Info("no work", Str("digest", "9375d1ab"))
	}
	out := buf.String()
	if strings.Contains(out, "9375d1ab") || !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("digest not redacted: %q", out)
	}
	// lines 1, 2 and 5 pass: the first, then every third
	if n := strings.Count(out, "no work"); n != 3 {
		t.Fatalf("sampled lines = %d, want 3: %q", n, out)
	}
}

func TestApplyConfigRejectsUnknown(t *testing.T) {
	if _, err := ApplyConfig(&Config{Level: "loud"}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := ApplyConfig(&Config{Format: "xml"}); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestFatalCallsExit(t *testing.T) {
	l, buf := newBufferLogger(t, &TextFormatter{DisableTimestamp: true})
	code := -1
	l.exit = func(c int) { code = c }
	l.Fatal("bye")
	if code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(buf.String(), "FATAL bye") {
		t.Fatalf("fatal line missing: %q", buf.String())
	}
}

func TestRedirectStdLog(t *testing.T) {
	l, buf := newBufferLogger(t, &TextFormatter{DisableTimestamp: true})
	restore := RedirectStdLog(l)
	defer restore()
	stdlog.Print("from pebble")
	if !strings.Contains(buf.String(), "from pebble") || !strings.Contains(buf.String(), "component=stdlog") {
		t.Fatalf("std log not redirected: %q", buf.String())
	}
}

type errString string

func (e errString) Error() string { return string(e) }
