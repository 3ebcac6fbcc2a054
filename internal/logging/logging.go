// Package logging provides slog-based logging for dbxlink, with optional
// forwarding of error records to Sentry.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tessro/dbxlink/internal/paths"
	"github.com/tessro/dbxlink/internal/version"
)

// Options controls Setup.
type Options struct {
	// Path is the log file. Empty means paths.LogPath().
	Path string
	// Level is the minimum level written.
	Level slog.Level
	// Extra receives a copy of every record (e.g. os.Stderr). Optional.
	Extra io.Writer
	// SentryDSN enables Sentry forwarding of error records when set.
	SentryDSN string
}

var sentryEnabled atomic.Bool

// ParseLevel converts a log level string to slog.Level.
// Valid values: "debug", "info", "warn", "error" (case-insensitive).
// Returns slog.LevelInfo for unrecognized values.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the global slog logger to write JSON records to the log
// file (and opts.Extra, if set). Returns a cleanup function that flushes
// Sentry and closes the log file.
func Setup(opts Options) (cleanup func(), err error) {
	path := opts.Path
	if path == "" {
		path = paths.LogPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	var w io.Writer = f
	if opts.Extra != nil {
		w = io.MultiWriter(f, opts.Extra)
	}

	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: opts.Level,
	})

	if opts.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     opts.SentryDSN,
			Release: "dbxlink@" + version.Version,
		}); err != nil {
			f.Close()
			return nil, fmt.Errorf("sentry init: %w", err)
		}
		sentryEnabled.Store(true)
		handler = &sentryHandler{Handler: handler}
	}

	slog.SetDefault(slog.New(handler))

	return func() {
		Flush(2 * time.Second)
		f.Close()
	}, nil
}

// SetupTest configures logging for tests (writes to provided writer, text format).
func SetupTest(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(handler))
}

// Flush waits up to timeout for buffered Sentry events to be delivered.
func Flush(timeout time.Duration) {
	if sentryEnabled.Load() {
		sentry.Flush(timeout)
	}
}

// LogPanic logs a panic with stack trace and context.
// Use in a defer at the start of goroutines:
//
//	defer logging.LogPanic("goroutine-name", nil)
//
// Or with a recovery callback:
//
//	defer logging.LogPanic("goroutine-name", func(r any) { cleanup() })
func LogPanic(name string, onRecover func(any)) {
	if r := recover(); r != nil {
		slog.Error("panic recovered",
			"goroutine", name,
			"panic", r,
			"stack", string(captureStack()),
		)
		if sentryEnabled.Load() {
			sentry.CurrentHub().Recover(r)
		}
		if onRecover != nil {
			onRecover(r)
		}
	}
}

// captureStack returns the current goroutine's stack trace.
func captureStack() []byte {
	buf := make([]byte, 4096)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, len(buf)*2)
	}
}
