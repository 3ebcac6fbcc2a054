package wire

import "bytes"

// Phase is the position of a Parser inside the current message.
type Phase int

const (
	// PhaseName waits for the name line of the next message.
	PhaseName Phase = iota
	// PhaseArgs collects argument lines until done.
	PhaseArgs
)

func (p Phase) String() string {
	switch p {
	case PhaseName:
		return "name"
	case PhaseArgs:
		return "args"
	default:
		return "unknown"
	}
}

// Message is one fully parsed notification.
type Message struct {
	Name string
	Args *Args
}

// Parser incrementally decodes a stream of messages. Bytes may arrive in
// arbitrary fragments; anything after the last newline is buffered until the
// next Feed. A Parser is not safe for concurrent use.
type Parser struct {
	phase   Phase
	partial []byte
	name    string
	args    *Args
	count   int
}

// Feed consumes data and returns every message it completed, in stream
// order. On a protocol error Feed returns the messages completed before the
// offending line together with the error; the parser must then be Reset.
func (p *Parser) Feed(data []byte) ([]Message, error) {
	p.partial = append(p.partial, data...)

	var msgs []Message
	off := 0
	for {
		i := bytes.IndexByte(p.partial[off:], '\n')
		if i < 0 {
			break
		}
		if i > MaxLineLength {
			return msgs, ErrLineTooLong
		}
		line := string(p.partial[off : off+i])
		off += i + 1

		msg, ok, err := p.line(line)
		if err != nil {
			return msgs, err
		}
		if ok {
			msgs = append(msgs, msg)
		}
	}

	n := copy(p.partial, p.partial[off:])
	p.partial = p.partial[:n]
	if len(p.partial) > MaxLineLength {
		return msgs, ErrLineTooLong
	}
	return msgs, nil
}

// line advances the state machine by one complete line.
func (p *Parser) line(line string) (Message, bool, error) {
	if p.phase == PhaseName {
		p.name = Desanitize(line)
		p.args = NewArgs()
		p.count = 0
		p.phase = PhaseArgs
		return Message{}, false, nil
	}

	if line == Done {
		msg := Message{Name: p.name, Args: p.args}
		p.phase = PhaseName
		p.name = ""
		p.args = nil
		p.count = 0
		return msg, true, nil
	}

	p.count++
	if p.count >= MaxArgs {
		return Message{}, false, ErrMalicious
	}
	key, values, err := ParseArgLine(line)
	if err != nil {
		return Message{}, false, err
	}
	p.args.Set(key, values...)
	return Message{}, false, nil
}

// Reset discards any partial line and in-progress message.
func (p *Parser) Reset() {
	p.phase = PhaseName
	p.partial = p.partial[:0]
	p.name = ""
	p.args = nil
	p.count = 0
}

// Phase returns the parser's current phase.
func (p *Parser) Phase() Phase {
	return p.phase
}

// Buffered returns the number of bytes held from an incomplete line.
func (p *Parser) Buffered() int {
	return len(p.partial)
}
