package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/tessro/dbxlink/internal/daemon"
	"github.com/tessro/dbxlink/internal/overlay"
)

// Severity picks the color an entry is drawn in.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityGood
	SeverityWarn
	SeverityError
)

// Entry is one line of the monitor's event log.
type Entry struct {
	Time     time.Time
	Kind     string
	Channel  string
	Text     string
	Severity Severity

	// Link carries the link event this entry came from, if any.
	Link *daemon.LinkEvent
}

// LinkEntry describes a link event.
func LinkEntry(ev daemon.LinkEvent) Entry {
	e := Entry{Time: time.Now(), Kind: ev.Kind.String(), Channel: ev.Channel, Link: &ev}
	switch ev.Kind {
	case daemon.EventConnected:
		e.Severity = SeverityGood
		e.Text = "command and hook channels up"
	case daemon.EventDisconnected:
		e.Severity = SeverityError
		e.Text = "link down"
	case daemon.EventConnectionAttempt:
		e.Severity = SeverityWarn
		e.Text = fmt.Sprintf("attempt %d failed", ev.Attempt)
	}
	if ev.Err != nil {
		e.Text += ": " + ev.Err.Error()
	}
	return e
}

// OverlayEntry describes an overlay event.
func OverlayEntry(ev overlay.Event) Entry {
	e := Entry{Time: time.Now(), Kind: ev.Kind.String()}
	switch ev.Kind {
	case overlay.EventInvalidate, overlay.EventLaunchFolder:
		e.Text = ev.Path
	case overlay.EventLaunchURL:
		e.Text = ev.URL
	case overlay.EventEmblemPaths:
		e.Text = strings.Join(ev.Paths, " ")
	}
	return e
}

// eventLog holds the most recent entries, overwriting the oldest when full.
type eventLog struct {
	entries []Entry
	size    int
	head    int // next write position
	count   int
	total   int // entries ever added
}

// defaultLogSize is the number of entries kept when none is given.
const defaultLogSize = 1000

func newEventLog(size int) *eventLog {
	if size <= 0 {
		size = defaultLogSize
	}
	return &eventLog{entries: make([]Entry, size), size: size}
}

func (l *eventLog) add(e Entry) {
	l.entries[l.head] = e
	l.head = (l.head + 1) % l.size
	if l.count < l.size {
		l.count++
	}
	l.total++
}

// all returns the stored entries oldest first.
func (l *eventLog) all() []Entry {
	out := make([]Entry, 0, l.count)
	start := 0
	if l.count == l.size {
		start = l.head
	}
	for i := 0; i < l.count; i++ {
		out = append(out, l.entries[(start+i)%l.size])
	}
	return out
}

func (l *eventLog) clear() {
	clear(l.entries)
	l.head = 0
	l.count = 0
}

func (l *eventLog) len() int {
	return l.count
}
