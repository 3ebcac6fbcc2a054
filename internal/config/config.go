// Package config loads the dbxlink configuration file.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tessro/dbxlink/internal/paths"
)

// Config represents the dbxlink configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// LogFile overrides the default log file location.
	LogFile string `toml:"log_file"`
	// SentryDSN enables forwarding of error logs to Sentry.
	SentryDSN string `toml:"sentry_dsn"`

	Daemon  DaemonConfig  `toml:"daemon"`
	Overlay OverlayConfig `toml:"overlay"`
}

// DaemonConfig controls how the daemon sockets are located and driven.
// Durations are Go duration strings ("1s", "250ms").
type DaemonConfig struct {
	DropboxDir     string `toml:"dropbox_dir"`
	CommandSocket  string `toml:"command_socket"`
	HookSocket     string `toml:"hook_socket"`
	ConnectTimeout string `toml:"connect_timeout"`
	RetryDelay     string `toml:"retry_delay"`
	IOTimeout      string `toml:"io_timeout"`
	IdlePoll       string `toml:"idle_poll"`
	VerifyPeer     *bool  `toml:"verify_peer"`
}

// OverlayConfig controls the file status cache.
type OverlayConfig struct {
	CacheSize int `toml:"cache_size"`
}

// Defaults.
const (
	DefaultLogLevel       = "info"
	DefaultConnectTimeout = time.Second
	DefaultRetryDelay     = time.Second
	DefaultIOTimeout      = 3 * time.Second
	DefaultIdlePoll       = 100 * time.Millisecond
	DefaultCacheSize      = 4096
)

// Load loads the config from paths.ConfigPath().
// Returns nil config and nil error if the file doesn't exist.
func Load() (*Config, error) {
	path, err := paths.ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads the config from a specific path.
// Returns nil config and nil error if the file doesn't exist.
func LoadFromPath(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetLogLevel returns the configured log level or the default.
func (c *Config) GetLogLevel() string {
	if c != nil && c.LogLevel != "" {
		return c.LogLevel
	}
	return DefaultLogLevel
}

// GetConnectTimeout returns how long a connect may wait for readiness.
func (c *Config) GetConnectTimeout() time.Duration {
	if c == nil {
		return DefaultConnectTimeout
	}
	return durationOr(c.Daemon.ConnectTimeout, DefaultConnectTimeout)
}

// GetRetryDelay returns the pause between failed connection attempts.
func (c *Config) GetRetryDelay() time.Duration {
	if c == nil {
		return DefaultRetryDelay
	}
	return durationOr(c.Daemon.RetryDelay, DefaultRetryDelay)
}

// GetIOTimeout returns the send/receive timeout on the command socket.
func (c *Config) GetIOTimeout() time.Duration {
	if c == nil {
		return DefaultIOTimeout
	}
	return durationOr(c.Daemon.IOTimeout, DefaultIOTimeout)
}

// GetIdlePoll returns how long the command worker waits for a queued
// command before checking the idle socket.
func (c *Config) GetIdlePoll() time.Duration {
	if c == nil {
		return DefaultIdlePoll
	}
	return durationOr(c.Daemon.IdlePoll, DefaultIdlePoll)
}

// GetVerifyPeer reports whether the daemon's peer credentials are checked.
// Defaults to true.
func (c *Config) GetVerifyPeer() bool {
	if c == nil || c.Daemon.VerifyPeer == nil {
		return true
	}
	return *c.Daemon.VerifyPeer
}

// GetCacheSize returns the maximum number of cached file statuses.
func (c *Config) GetCacheSize() int {
	if c != nil && c.Overlay.CacheSize > 0 {
		return c.Overlay.CacheSize
	}
	return DefaultCacheSize
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
