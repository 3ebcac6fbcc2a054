package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Validation errors.
var (
	ErrInvalidDuration  = errors.New("duration must be a positive Go duration")
	ErrRelativePath     = errors.New("path must be absolute")
	ErrInvalidLogLevel  = errors.New("log level must be debug, info, warn, or error")
	ErrInvalidCacheSize = errors.New("cache size must not be negative")
)

// ValidationError wraps a validation error with context.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks every field that has a constrained format.
// Empty fields are valid and fall back to defaults.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := ValidateLogLevel(c.LogLevel); err != nil {
		return err
	}

	durations := []struct {
		field string
		value string
	}{
		{"daemon.connect_timeout", c.Daemon.ConnectTimeout},
		{"daemon.retry_delay", c.Daemon.RetryDelay},
		{"daemon.io_timeout", c.Daemon.IOTimeout},
		{"daemon.idle_poll", c.Daemon.IdlePoll},
	}
	for _, d := range durations {
		if err := ValidateDuration(d.field, d.value); err != nil {
			return err
		}
	}

	socketPaths := []struct {
		field string
		value string
	}{
		{"daemon.dropbox_dir", c.Daemon.DropboxDir},
		{"daemon.command_socket", c.Daemon.CommandSocket},
		{"daemon.hook_socket", c.Daemon.HookSocket},
		{"log_file", c.LogFile},
	}
	for _, p := range socketPaths {
		if err := ValidateAbsPath(p.field, p.value); err != nil {
			return err
		}
	}

	if c.Overlay.CacheSize < 0 {
		return &ValidationError{
			Field:   "overlay.cache_size",
			Value:   fmt.Sprintf("%d", c.Overlay.CacheSize),
			Message: "must not be negative",
			Err:     ErrInvalidCacheSize,
		}
	}
	return nil
}

// ValidateLogLevel validates a log level name. Empty is allowed.
func ValidateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "error":
		return nil
	}
	return &ValidationError{
		Field:   "log_level",
		Value:   level,
		Message: "must be debug, info, warn, or error",
		Err:     ErrInvalidLogLevel,
	}
}

// ValidateDuration validates a duration string. Empty is allowed.
func ValidateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return &ValidationError{
			Field:   field,
			Value:   value,
			Message: "must be a positive duration like \"1s\" or \"250ms\"",
			Err:     ErrInvalidDuration,
		}
	}
	return nil
}

// ValidateAbsPath validates that a configured path is absolute. Empty is allowed.
func ValidateAbsPath(field, value string) error {
	if value == "" || filepath.IsAbs(value) {
		return nil
	}
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: "must be an absolute path",
		Err:     ErrRelativePath,
	}
}
