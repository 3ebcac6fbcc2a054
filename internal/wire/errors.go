package wire

import (
	"errors"
	"fmt"
)

// Protocol errors. A connection that produced any of these must be abandoned.
var (
	// ErrMalicious is returned when a message carries MaxArgs or more
	// argument lines before its done terminator.
	ErrMalicious = errors.New("wire: too many arguments before done")

	// ErrMalformed is returned for an argument line without a value.
	ErrMalformed = errors.New("wire: malformed argument line")

	// ErrLineTooLong is returned when a line exceeds MaxLineLength.
	ErrLineTooLong = errors.New("wire: line too long")
)

// IsProtocolError reports whether err means the peer broke the protocol.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrMalicious) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrLineTooLong)
}

// RemoteError is returned when the daemon answers a request with a status
// other than "ok". The body the daemon sends with it has no stable format and
// is discarded; only the status line is kept for logging.
type RemoteError struct {
	Status string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("daemon returned %q", e.Status)
}
