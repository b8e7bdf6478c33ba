package client

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/MrMoose/rescue/internal/candidate"
	cfgpkg "github.com/MrMoose/rescue/internal/config"
	"github.com/MrMoose/rescue/internal/runtime"
	grpcserver "github.com/MrMoose/rescue/internal/server/grpc"
	pebblestore "github.com/MrMoose/rescue/internal/storage/pebble"
	"github.com/MrMoose/rescue/internal/verify"
)

// startServer runs a coordination server on a loopback port and points
// RESCUE_SERVER at it.
func startServer(t *testing.T) {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpcserver.New(rt)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		srv.Close()
		_ = rt.Close()
	})
	t.Setenv("RESCUE_SERVER", lis.Addr().String())
	t.Setenv("RESCUE_POLL_INTERVAL_MS", "5")
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) string {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return buf.String()
}

func TestExpandPrintsCountAndCandidates(t *testing.T) {
	out := execute(t, NewExpandCommand(), "", "[ab|cd]", "--case", "first", "--limit", "0")
	want := "count: 4\nAb\nab\nCd\ncd\n"
	if out != want {
		t.Fatalf("expand output:\n%q\nwant\n%q", out, want)
	}
}

func TestExpandCountOnly(t *testing.T) {
	out := execute(t, NewExpandCommand(), "", "Hi [wo|rl]!", "--count")
	if out != "count: 192\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestExpandLimit(t *testing.T) {
	out := execute(t, NewExpandCommand(), "", "abc", "--limit", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 || lines[0] != "count: 8" || lines[3] != "..." {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestExpandRejectsBadInput(t *testing.T) {
	for _, args := range [][]string{{"[a|b"}, {"ab", "--case", "upper"}} {
		cmd := NewExpandCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		if err := cmd.Execute(); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestProduceStatusConsume(t *testing.T) {
	startServer(t)

	out := execute(t, NewProduceCommand(), "# comment\n[ab|cd]\n", "--case", "first")
	if !strings.Contains(out, "line 2: generated=4 inserted=4 known=0 filtered=0") {
		t.Fatalf("produce output: %s", out)
	}
	// the second run only finds known candidates
	out = execute(t, NewProduceCommand(), "[ab|cd]\n", "--case", "first")
	if !strings.Contains(out, "inserted=0 known=4") {
		t.Fatalf("produce output: %s", out)
	}

	var st statusView
	out = execute(t, NewStatusCommand(), "", "--json")
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("status json: %v\n%s", err, out)
	}
	if st.Candidates != 4 || st.Pending != 4 || len(st.Winners) != 0 {
		t.Fatalf("unexpected status: %+v", st)
	}

	res := filepath.Join(t.TempDir(), "digest.txt")
	if err := os.WriteFile(res, []byte(candidate.Digest("cd")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out = execute(t, NewConsumeCommand(), "", "--resource", res, "--verifier", "digest", "--workers", "2")
	if !strings.Contains(out, "passphrase found: cd") {
		t.Fatalf("consume output: %s", out)
	}

	out = execute(t, NewStatusCommand(), "")
	if !strings.Contains(out, "passphrase found: cd") || !strings.Contains(out, "succeeded") {
		t.Fatalf("status output: %s", out)
	}
}

func TestProduceFilter(t *testing.T) {
	startServer(t)
	out := execute(t, NewProduceCommand(), "[ab|cd]\n", "--case", "first", "--filter", `candidate.startsWith("a")`, "--namespace", "filtered")
	if !strings.Contains(out, "generated=4 inserted=1 known=0 filtered=3") {
		t.Fatalf("produce output: %s", out)
	}
}

func TestNewVerifier(t *testing.T) {
	v, err := newVerifier("exec", "cryptsetup open --test-passphrase --key-file=- {resource}")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if e, ok := v.(*verify.Exec); !ok || len(e.Command) != 5 {
		t.Fatalf("unexpected exec verifier: %#v", v)
	}
	if _, err := newVerifier("digest", ""); err != nil {
		t.Fatalf("digest: %v", err)
	}
	if _, err := newVerifier("exec", "  "); err == nil {
		t.Fatal("expected error for empty command")
	}
	if _, err := newVerifier("luks", ""); err == nil {
		t.Fatal("expected error for unknown verifier")
	}
}

func TestServerAddrFromEnv(t *testing.T) {
	t.Setenv("RESCUE_SERVER", "")
	if got := serverAddrFromEnv(); got != "127.0.0.1:50051" {
		t.Fatalf("default addr: %s", got)
	}
	t.Setenv("RESCUE_SERVER", "nats://127.0.0.1:4222")
	if got := serverAddrFromEnv(); got != "nats://127.0.0.1:4222" {
		t.Fatalf("env addr: %s", got)
	}
}
