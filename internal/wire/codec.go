package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// MaxArgs caps the argument lines accepted before the done terminator.
	// A message with MaxArgs or more argument lines is rejected.
	MaxArgs = 20

	// MaxLineLength caps a single protocol line, excluding the newline.
	MaxLineLength = 1 << 20

	// StatusOK is the first response line of a successful request.
	StatusOK = "ok"

	// Done terminates every request, response and notification.
	Done = "done"
)

// EncodeRequest renders a request: the sanitized name, one line per argument
// with tab-separated sanitized tokens, then the done line. Arguments are
// written in the table's insertion order.
func EncodeRequest(name string, args *Args) []byte {
	var b bytes.Buffer
	b.WriteString(Sanitize(name))
	b.WriteByte('\n')
	for _, k := range args.Keys() {
		b.WriteString(Sanitize(k))
		for _, v := range args.values[k] {
			b.WriteByte('\t')
			b.WriteString(Sanitize(v))
		}
		b.WriteByte('\n')
	}
	b.WriteString(Done)
	b.WriteByte('\n')
	return b.Bytes()
}

// WriteRequest encodes a request and writes it with a single Write call.
func WriteRequest(w io.Writer, name string, args *Args) error {
	if _, err := w.Write(EncodeRequest(name, args)); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// ReadLine reads one newline-terminated line and returns it without the
// newline. Lines longer than MaxLineLength fail with ErrLineTooLong. A line
// cut short by EOF is reported as io.ErrUnexpectedEOF.
func ReadLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(buf)+len(chunk) > MaxLineLength+1 {
			return "", ErrLineTooLong
		}
		buf = append(buf, chunk...)
		switch {
		case err == nil:
			return string(buf[:len(buf)-1]), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(buf) > 0:
			return "", io.ErrUnexpectedEOF
		default:
			return "", err
		}
	}
}

// ParseArgLine splits an argument line into its desanitized key and values.
func ParseArgLine(line string) (string, []string, error) {
	parts := strings.Split(line, "\t")
	if len(parts) < 2 {
		return "", nil, fmt.Errorf("%w: %q", ErrMalformed, truncate(line))
	}
	values := make([]string, len(parts)-1)
	for i, p := range parts[1:] {
		values[i] = Desanitize(p)
	}
	return Desanitize(parts[0]), values, nil
}

// ReadResponse reads one response. An "ok" status yields the argument table.
// Any other status is drained up to done and returned as a *RemoteError.
// Both branches stop with ErrMalicious at MaxArgs lines.
func ReadResponse(r *bufio.Reader) (*Args, error) {
	status, err := ReadLine(r)
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	if status != StatusOK {
		for n := 0; ; n++ {
			line, err := ReadLine(r)
			if err != nil {
				return nil, fmt.Errorf("drain error response: %w", err)
			}
			if line == Done {
				return nil, &RemoteError{Status: status}
			}
			if n+1 >= MaxArgs {
				return nil, ErrMalicious
			}
		}
	}

	args := NewArgs()
	for n := 0; ; {
		line, err := ReadLine(r)
		if err != nil {
			return nil, fmt.Errorf("read argument: %w", err)
		}
		if line == Done {
			return args, nil
		}
		n++
		if n >= MaxArgs {
			return nil, ErrMalicious
		}
		key, values, err := ParseArgLine(line)
		if err != nil {
			return nil, err
		}
		args.Set(key, values...)
	}
}

// DecodeResponse reads one response from src.
// Prefer ReadResponse with a long-lived reader when reading several
// responses from one stream, since buffered bytes are lost here.
func DecodeResponse(src io.Reader) (*Args, error) {
	return ReadResponse(bufio.NewReader(src))
}

// EncodeResponse renders a successful response. It is used by the fake
// daemon and by tests.
func EncodeResponse(args *Args) []byte {
	return EncodeRequest(StatusOK, args)
}

// EncodeFailure renders a response with a non-ok status and no body.
func EncodeFailure(status string) []byte {
	return []byte(Sanitize(status) + "\n" + Done + "\n")
}

func truncate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
