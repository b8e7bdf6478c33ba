package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the server's data directory. RESCUE_DATA_DIR wins;
// otherwise standard per-OS locations are preferred, falling back to a
// dotdir in the user's home directory.
func DefaultDataDir() string {
	if dir := os.Getenv("RESCUE_DATA_DIR"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}

	// XDG (Linux) override
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "rescue")
	}

	// Common Linux/Unix system dir
	if isDir("/var/lib") {
		return "/var/lib/rescue"
	}

	// macOS: ~/Library/Application Support/Rescue
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", "Rescue")
	}

	// Windows: %USERPROFILE%/AppData/Local/Rescue
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Local", "Rescue")
	}

	// Fallback: ~/.rescue
	return filepath.Join(homeDir, ".rescue")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
