package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/tessro/dbxlink/internal/paths"
)

// DefaultPIDPath returns the Dropbox daemon's pid file path, or "" if the
// home directory is unknown.
func DefaultPIDPath() string {
	path, err := paths.PIDPath()
	if err != nil {
		return ""
	}
	return path
}

// WritePID writes the current process ID to path. The fake daemon uses it
// so that liveness checks see it as running.
func WritePID(path string) error {
	if path == "" {
		path = DefaultPIDPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}

	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// ReadPID reads the process ID from a pid file.
func ReadPID(path string) (int, error) {
	if path == "" {
		path = DefaultPIDPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid: %w", err)
	}
	return pid, nil
}

// RemovePID removes a pid file. It returns nil if the file doesn't exist.
func RemovePID(path string) error {
	if path == "" {
		path = DefaultPIDPath()
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// IsProcessRunning checks if a process with the given PID exists.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		return true
	case errors.Is(err, syscall.EPERM):
		// Exists, but belongs to someone else.
		return true
	default:
		return false
	}
}

// IsDropboxRunning reports whether the process named by the Dropbox pid
// file is alive, and its pid.
func IsDropboxRunning(pidPath string) (bool, int) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return false, 0
	}
	if IsProcessRunning(pid) {
		return true, pid
	}
	return false, 0
}
