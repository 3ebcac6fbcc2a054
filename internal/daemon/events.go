package daemon

import "fmt"

// State is a channel's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Channel names used in events and log attributes.
const (
	ChannelCommand = "command"
	ChannelHook    = "hook"
)

// EventKind identifies a channel or link event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventConnectionAttempt
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventConnectionAttempt:
		return "connection_attempt"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ChannelEvent reports a connection change on one channel.
type ChannelEvent struct {
	Channel string
	Kind    EventKind
	// Attempt is the 1-based count of consecutive failed connects.
	// Set only for EventConnectionAttempt.
	Attempt int
	// Err is why a connect failed or a connection ended, if known.
	Err error
}

// LinkEvent is emitted by Client. Connected and Disconnected refer to both
// channels together. ConnectionAttempt events are forwarded from either
// channel with Channel set.
type LinkEvent struct {
	Kind    EventKind
	Channel string
	Attempt int
	Err     error
}
