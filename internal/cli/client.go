package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tessro/dbxlink/internal/daemon"
	"github.com/tessro/dbxlink/internal/overlay"
)

// ErrDaemonNotRunning indicates the Dropbox daemon process is not running.
var ErrDaemonNotRunning = errors.New("dropbox daemon is not running")

// ErrNotLinked indicates the daemon is running but the link did not come up
// in time.
var ErrNotLinked = errors.New("could not link to the dropbox daemon")

// session is a running daemon link with an overlay service on top.
type session struct {
	client  *daemon.Client
	overlay *overlay.Service

	cancel context.CancelFunc
	done   chan error
}

// newSession builds a link from the loaded config without starting it, so
// callers can subscribe to events first.
func newSession() *session {
	client := daemon.NewClient(daemon.OptionsFromConfig(cfg))
	return &session{
		client:  client,
		overlay: overlay.New(client, cfg.GetCacheSize()),
	}
}

// start runs the link in the background until ctx is done or Close.
func (s *session) start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan error, 1)
	go func() { s.done <- s.client.Run(ctx) }()
}

// Close stops the link and waits for both channels to shut down.
func (s *session) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

// connect starts a session and waits up to --wait for both channels.
func connect(ctx context.Context) (*session, error) {
	s := newSession()
	s.start(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, waitFor)
	defer cancel()
	if err := s.client.WaitConnected(waitCtx); err != nil {
		s.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, notLinked()
	}
	return s, nil
}

// notLinked explains a failed link using the daemon's pid file.
func notLinked() error {
	running, pid := daemon.IsDropboxRunning(daemon.DefaultPIDPath())
	if !running {
		return ErrDaemonNotRunning
	}
	slog.Debug("daemon running but link timed out", "pid", pid, "wait", waitFor)
	return fmt.Errorf("%w: daemon pid %d did not answer within %s", ErrNotLinked, pid, waitFor)
}
