package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"debug lowercase", "debug", slog.LevelDebug},
		{"debug uppercase", "DEBUG", slog.LevelDebug},
		{"info lowercase", "info", slog.LevelInfo},
		{"warn mixed", "Warn", slog.LevelWarn},
		{"error uppercase", "ERROR", slog.LevelError},
		{"empty string", "", slog.LevelInfo},
		{"invalid value", "invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "nested", "dbxlink.log")
	var extra bytes.Buffer
	cleanup, err := Setup(Options{Path: path, Level: slog.LevelWarn, Extra: &extra})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	slog.Info("dropped")
	slog.Warn("kept", "channel", "command")
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "dropped") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(string(data), `"channel":"command"`) {
		t.Errorf("expected JSON record in log file, got %s", data)
	}
	if !strings.Contains(extra.String(), "kept") {
		t.Error("expected record copied to extra writer")
	}
}

func TestLogPanic(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupTest(&buf)

	var recovered any
	func() {
		defer LogPanic("test-goroutine", func(r any) { recovered = r })
		panic(errors.New("boom"))
	}()

	if recovered == nil {
		t.Fatal("onRecover was not called")
	}
	if !strings.Contains(buf.String(), "test-goroutine") {
		t.Errorf("expected goroutine name in log, got %s", buf.String())
	}
}

func TestRecordToEvent(t *testing.T) {
	r := slog.NewRecord(time.Now(), slog.LevelError, "connect failed", 0)
	r.AddAttrs(slog.Int("attempt", 3))
	event := recordToEvent(r, []slog.Attr{slog.String("channel", "hook")})

	if event.Message != "connect failed" {
		t.Errorf("Message = %q", event.Message)
	}
	if event.Extra["channel"] != "hook" {
		t.Errorf("Extra[channel] = %v", event.Extra["channel"])
	}
	if event.Extra["attempt"] != int64(3) {
		t.Errorf("Extra[attempt] = %v (%T)", event.Extra["attempt"], event.Extra["attempt"])
	}
}
