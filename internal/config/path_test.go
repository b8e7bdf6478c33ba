package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultDataDirEnvOverride(t *testing.T) {
	t.Setenv("RESCUE_DATA_DIR", "/srv/rescue-data")
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/srv/rescue-data" {
		t.Fatalf("got %s", got)
	}
}

func TestDefaultDataDirXDG(t *testing.T) {
	t.Setenv("RESCUE_DATA_DIR", "")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got, want := DefaultDataDir(), filepath.Join("/custom/data", "rescue"); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skip("home directory is not taken from $HOME")
	}
	t.Setenv("RESCUE_DATA_DIR", "")
	t.Setenv("HOME", "")
	if got := DefaultDataDir(); got != "./data" {
		t.Fatalf("got %s", got)
	}
}

func TestDefaultDataDirPlatformFallback(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("home directory is not taken from $HOME")
	}
	home := t.TempDir()
	t.Setenv("RESCUE_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", home)

	want := filepath.Join(home, ".rescue")
	if isDir("/var/lib") {
		want = "/var/lib/rescue"
	}
	if got := DefaultDataDir(); got != want {
		t.Fatalf("got %s want %s", got, want)
	}

	if isDir("/var/lib") {
		return
	}
	if err := os.Mkdir(filepath.Join(home, "Library"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got, want := DefaultDataDir(), filepath.Join(home, "Library", "Application Support", "Rescue"); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if !isDir(dir) || isDir(file) || isDir(filepath.Join(dir, "missing")) {
		t.Fatal("isDir misreports")
	}
}
