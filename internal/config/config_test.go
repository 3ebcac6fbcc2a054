package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPath(t *testing.T) {
	t.Run("missing file returns nil", func(t *testing.T) {
		cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg != nil {
			t.Errorf("expected nil config, got %+v", cfg)
		}
	})

	t.Run("parses all sections", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
log_level = "debug"
sentry_dsn = "https://key@example.invalid/1"

[daemon]
dropbox_dir = "/srv/dropbox"
hook_socket = "/run/hook.sock"
io_timeout = "5s"
idle_poll = "50ms"
verify_peer = false

[overlay]
cache_size = 16
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFromPath(path)
		if err != nil {
			t.Fatalf("LoadFromPath() error = %v", err)
		}
		if cfg.GetLogLevel() != "debug" {
			t.Errorf("GetLogLevel() = %q", cfg.GetLogLevel())
		}
		if cfg.Daemon.DropboxDir != "/srv/dropbox" || cfg.Daemon.HookSocket != "/run/hook.sock" {
			t.Errorf("daemon paths = %+v", cfg.Daemon)
		}
		if cfg.GetIOTimeout() != 5*time.Second {
			t.Errorf("GetIOTimeout() = %v", cfg.GetIOTimeout())
		}
		if cfg.GetIdlePoll() != 50*time.Millisecond {
			t.Errorf("GetIdlePoll() = %v", cfg.GetIdlePoll())
		}
		if cfg.GetConnectTimeout() != DefaultConnectTimeout {
			t.Errorf("GetConnectTimeout() = %v, want default", cfg.GetConnectTimeout())
		}
		if cfg.GetVerifyPeer() {
			t.Error("GetVerifyPeer() should be false")
		}
		if cfg.GetCacheSize() != 16 {
			t.Errorf("GetCacheSize() = %d", cfg.GetCacheSize())
		}
	})

	t.Run("invalid duration rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("[daemon]\nretry_delay = \"never\"\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFromPath(path); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("malformed toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("log_level = \n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFromPath(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestDefaults(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"empty config", &Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetLogLevel(); got != DefaultLogLevel {
				t.Errorf("GetLogLevel() = %q", got)
			}
			if got := tt.cfg.GetConnectTimeout(); got != DefaultConnectTimeout {
				t.Errorf("GetConnectTimeout() = %v", got)
			}
			if got := tt.cfg.GetRetryDelay(); got != DefaultRetryDelay {
				t.Errorf("GetRetryDelay() = %v", got)
			}
			if got := tt.cfg.GetIOTimeout(); got != DefaultIOTimeout {
				t.Errorf("GetIOTimeout() = %v", got)
			}
			if got := tt.cfg.GetIdlePoll(); got != DefaultIdlePoll {
				t.Errorf("GetIdlePoll() = %v", got)
			}
			if !tt.cfg.GetVerifyPeer() {
				t.Error("GetVerifyPeer() should default to true")
			}
			if got := tt.cfg.GetCacheSize(); got != DefaultCacheSize {
				t.Errorf("GetCacheSize() = %d", got)
			}
		})
	}
}
