package daemon

import (
	"errors"
	"fmt"

	"github.com/tessro/dbxlink/internal/wire"
)

// Sentinel errors for channel operations.
// These can be checked using errors.Is().
var (
	// ErrDisconnected completes a Command whose channel was not connected
	// when it was serviced, or dropped while it was in flight.
	ErrDisconnected = errors.New("daemon: disconnected")

	// ErrConnectionFailed is reported by ConnectionAttempt events when a
	// connect attempt fails.
	ErrConnectionFailed = errors.New("daemon: connection failed")

	// ErrProtocolViolation means the daemon broke the line protocol. The
	// connection is always abandoned.
	ErrProtocolViolation = errors.New("daemon: protocol violation")

	// ErrPeerMismatch means the process behind a daemon socket runs as a
	// different user.
	ErrPeerMismatch = errors.New("daemon: socket peer belongs to another user")

	// errForcedReconnect ends a connection on request.
	errForcedReconnect = errors.New("daemon: reconnect requested")
)

// IsRemoteError reports whether err is a non-ok answer from the daemon.
func IsRemoteError(err error) bool {
	var re *wire.RemoteError
	return errors.As(err, &re)
}

// protocolViolation tags a wire-level parse error as fatal to the connection.
func protocolViolation(err error) error {
	if wire.IsProtocolError(err) {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	return err
}
