package daemon

import "fmt"

// Side names one of the two channels.
type Side int

const (
	SideCommand Side = iota
	SideHook
)

func (s Side) String() string {
	if s == SideHook {
		return ChannelHook
	}
	return ChannelCommand
}

// Partner returns the other side.
func (s Side) Partner() Side {
	if s == SideHook {
		return SideCommand
	}
	return SideHook
}

// LinkState combines the two channel states.
type LinkState int

const (
	BothDown LinkState = iota
	CommandUp
	HookUp
	BothUp
)

func (s LinkState) String() string {
	switch s {
	case BothDown:
		return "both_down"
	case CommandUp:
		return "command_up"
	case HookUp:
		return "hook_up"
	case BothUp:
		return "both_up"
	default:
		return fmt.Sprintf("LinkState(%d)", int(s))
	}
}

func (s LinkState) has(side Side) bool {
	return s&side.bit() != 0
}

func (s Side) bit() LinkState {
	if s == SideHook {
		return HookUp
	}
	return CommandUp
}

// Transition describes what a Link update requires of its owner.
type Transition struct {
	From, To LinkState
	// Connected means the unified connect event must fire.
	Connected bool
	// Disconnected means the unified disconnect event must fire.
	Disconnected bool
	// Reconnect means the partner of the side that went down is still up
	// and must be forced to reconnect.
	Reconnect bool
	Partner   Side
}

// Link tracks whether the command and hook channels are up together.
// The unified connect fires on entering BothUp. The unified disconnect
// fires on entering BothDown, but only after a unified connect, so a link
// that never fully came up never reports going down. Link is not safe for
// concurrent use.
type Link struct {
	state  LinkState
	linked bool
}

// State returns the current combined state.
func (l *Link) State() LinkState {
	return l.state
}

// Linked reports whether the unified connect has fired without a matching
// unified disconnect.
func (l *Link) Linked() bool {
	return l.linked
}

// Up records that side connected.
func (l *Link) Up(side Side) Transition {
	t := Transition{From: l.state}
	l.state |= side.bit()
	t.To = l.state
	if t.To == BothUp && t.From != BothUp {
		l.linked = true
		t.Connected = true
	}
	return t
}

// Down records that side disconnected. A repeated Down for a side that is
// already down changes nothing.
func (l *Link) Down(side Side) Transition {
	t := Transition{From: l.state}
	if !l.state.has(side) {
		t.To = l.state
		return t
	}
	l.state &^= side.bit()
	t.To = l.state

	if t.To.has(side.Partner()) {
		t.Reconnect = true
		t.Partner = side.Partner()
	}
	if t.To == BothDown && l.linked {
		l.linked = false
		t.Disconnected = true
	}
	return t
}
