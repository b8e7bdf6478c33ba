package serverrun

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	cfgpkg "github.com/MrMoose/rescue/internal/config"
	pebblestore "github.com/MrMoose/rescue/internal/storage/pebble"
)

func TestGetenvDefault(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		def      string
		envValue string
		expected string
	}{
		{name: "environment variable set", key: "RESCUE_TEST_VAR", def: "default", envValue: "env_value", expected: "env_value"},
		{name: "environment variable not set", key: "RESCUE_TEST_VAR_NOT_SET", def: "default", expected: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			} else {
				_ = os.Unsetenv(tt.key)
			}
			if got := getenvDefault(tt.key, tt.def); got != tt.expected {
				t.Errorf("getenvDefault(%s, %s) = %s, expected %s", tt.key, tt.def, got, tt.expected)
			}
		})
	}
}

func TestStoreDir(t *testing.T) {
	opts := Options{DataDir: "/tmp/rescue"}
	if got, want := opts.storeDir(), filepath.Join("/tmp/rescue", "store"); got != want {
		t.Errorf("Expected store dir %s, got %s", want, got)
	}
}

func TestNewLoggerFallsBackOnBadConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Log.Format = "xml"
	if newLogger(cfg) == nil {
		t.Fatal("expected a logger")
	}
	t.Setenv("RESCUE_LOG_LEVEL", "debug")
	if newLogger(cfgpkg.Default()) == nil {
		t.Fatal("expected a logger")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

// TestRunIntegration starts both servers on free ports and stops them by
// cancelling the context.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	for _, engine := range []string{cfgpkg.EnginePebble, cfgpkg.EngineSQLite} {
		t.Run(engine, func(t *testing.T) {
			cfg := cfgpkg.Default()
			cfg.Engine = engine
			opts := Options{
				DataDir:       t.TempDir(),
				GRPCAddr:      freeAddr(t),
				HTTPAddr:      freeAddr(t),
				Fsync:         pebblestore.FsyncModeNever,
				FsyncInterval: time.Millisecond,
				Config:        cfg,
			}

			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			if err := Run(ctx, opts); err != nil {
				t.Errorf("Run: %v", err)
			}
		})
	}
}
