// Package paths provides XDG-compliant path resolution for editsync.
//
// Resolution order:
// 1. EDITSYNC_HOME (portable root) → $EDITSYNC_HOME/{config,state,cache,run}
// 2. XDG env vars → $XDG_*_HOME/editsync
// 3. Platform defaults → ~/.config/editsync, ~/.local/state/editsync, etc.
package paths

import (
	"os"
	"path/filepath"
)

const appDir = "editsync"

// homeOr returns $EDITSYNC_HOME/<sub>, the XDG variable, or the home-relative fallback.
func homeOr(sub, xdgVar string, fallback ...string) string {
	if home := os.Getenv("EDITSYNC_HOME"); home != "" {
		return filepath.Join(home, sub)
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, appDir)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, append(fallback, appDir)...)...)
	}
	return ""
}

// ConfigDir returns the editsync configuration directory.
// The global editsync.yml layer lives here.
func ConfigDir() string {
	return homeOr("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir returns the editsync state directory.
// Used for the persisted extension settings, logs and the pidfile.
func StateDir() string {
	return homeOr("state", "XDG_STATE_HOME", ".local", "state")
}

// CacheDir returns the editsync cache directory.
func CacheDir() string {
	return homeOr("cache", "XDG_CACHE_HOME", ".cache")
}

// RuntimeDir returns the directory for sockets.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if home := os.Getenv("EDITSYNC_HOME"); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appDir)
	}
	return StateDir()
}

// SocketPath returns the path to the session daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "editsync.sock")
}

// PidFilePath returns the path to the session daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "editsync.pid")
}

// StateFilePath returns the default persisted settings file.
func StateFilePath() string {
	return filepath.Join(StateDir(), "state.yml")
}

// EnsureDirs creates all editsync directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), CacheDir(), RuntimeDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
