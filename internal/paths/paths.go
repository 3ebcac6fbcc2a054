// Package paths provides a single source of truth for dbxlink file paths.
// All path helpers honor environment variable overrides for isolated testing.
//
// Path resolution precedence:
//  1. Specific env vars (DBXLINK_COMMAND_SOCKET, DBXLINK_HOOK_SOCKET) take highest priority
//  2. DBXLINK_DROPBOX_DIR sets the Dropbox directory (derives sockets and pid file)
//  3. Default behavior (~/.dropbox, ~/.config/dbxlink) when no env vars are set
//
// Nothing is cached: the home directory is read on every call, so a socket
// path is always derived at connect time.
package paths

import (
	"os"
	"path/filepath"
)

// Environment variable names for path overrides.
const (
	// EnvDropboxDir overrides the Dropbox state directory (~/.dropbox).
	EnvDropboxDir = "DBXLINK_DROPBOX_DIR"

	// EnvCommandSocket overrides the command socket path directly.
	EnvCommandSocket = "DBXLINK_COMMAND_SOCKET"

	// EnvHookSocket overrides the hook socket path directly.
	EnvHookSocket = "DBXLINK_HOOK_SOCKET"

	// EnvDir overrides the dbxlink config directory (~/.config/dbxlink).
	EnvDir = "DBXLINK_DIR"
)

// Socket and pid file names inside the Dropbox directory.
const (
	CommandSocketName = "command_socket"
	HookSocketName    = "iface_socket"
	PIDFileName       = "dropbox.pid"
)

// DropboxDir returns the daemon's state directory (~/.dropbox by default).
// Honors DBXLINK_DROPBOX_DIR.
func DropboxDir() (string, error) {
	if dir := os.Getenv(EnvDropboxDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".dropbox"), nil
}

// CommandSocketPath returns the daemon's command socket path.
// Precedence: DBXLINK_COMMAND_SOCKET > DBXLINK_DROPBOX_DIR/command_socket > ~/.dropbox/command_socket
func CommandSocketPath() (string, error) {
	return socketPath(EnvCommandSocket, CommandSocketName)
}

// HookSocketPath returns the daemon's hook (notification) socket path.
// Precedence: DBXLINK_HOOK_SOCKET > DBXLINK_DROPBOX_DIR/iface_socket > ~/.dropbox/iface_socket
func HookSocketPath() (string, error) {
	return socketPath(EnvHookSocket, HookSocketName)
}

func socketPath(env, name string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	dir, err := DropboxDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// PIDPath returns the path of the Dropbox daemon's pid file.
func PIDPath() (string, error) {
	dir, err := DropboxDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PIDFileName), nil
}

// ConfigDir returns the dbxlink config directory (~/.config/dbxlink by default).
// Honors DBXLINK_DIR.
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "dbxlink"), nil
}

// ConfigPath returns the path to the dbxlink config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LogPath returns the default log file path.
func LogPath() string {
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "dbxlink.log")
	}
	return filepath.Join(dir, "dbxlink.log")
}
