package tui

import "time"

// entryMsg delivers one event log entry from the feed.
type entryMsg struct {
	Entry Entry
}

// feedClosedMsg is sent when the feed channel is closed.
type feedClosedMsg struct{}

// tickMsg is sent on regular intervals to refresh link state.
type tickMsg time.Time

// clearErrorMsg is sent to clear the error display after a timeout.
type clearErrorMsg struct{}
