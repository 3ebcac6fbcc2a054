package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/dbxlink/internal/daemon"
)

// Header displays the monitor header with branding and link status.
type Header struct {
	width int

	state       daemon.LinkState
	linkedSince time.Time
	attempts    map[string]int // last failed attempt per channel
	events      int
}

// NewHeader creates a new header component.
func NewHeader() Header {
	return Header{attempts: make(map[string]int)}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// SetLinkState updates the per-channel state display.
func (h *Header) SetLinkState(state daemon.LinkState) {
	if state == daemon.BothUp && h.state != daemon.BothUp {
		h.linkedSince = time.Now()
	}
	h.state = state
}

// ObserveLink records attempt counters from a link event.
func (h *Header) ObserveLink(ev daemon.LinkEvent) {
	switch ev.Kind {
	case daemon.EventConnectionAttempt:
		h.attempts[ev.Channel] = ev.Attempt
	case daemon.EventConnected:
		clear(h.attempts)
	}
}

// SetEventCount updates the number of events seen.
func (h *Header) SetEventCount(n int) {
	h.events = n
}

// View renders the header.
func (h Header) View() string {
	brand := headerBrandStyle.Render("📦 dbxlink")

	var linkStatus string
	switch {
	case h.state == daemon.BothUp:
		linkStatus = headerLinkedStyle.Render(" ● linked")
	case len(h.attempts) > 0:
		linkStatus = headerConnReconnectingStyle.Render(fmt.Sprintf(" ◌ connecting (attempt %d)", h.maxAttempt()))
	default:
		linkStatus = headerConnDisconnectedStyle.Render(" ● disconnected")
	}

	statsParts := []string{
		"command " + channelMark(h.state&daemon.CommandUp != 0),
		"hook " + channelMark(h.state&daemon.HookUp != 0),
	}
	if h.state == daemon.BothUp && !h.linkedSince.IsZero() {
		statsParts = append(statsParts, "up "+formatDuration(time.Since(h.linkedSince)))
	}
	statsParts = append(statsParts, fmt.Sprintf("%d events", h.events))
	stats := headerStatsStyle.Render(strings.Join(statsParts, "  •  "))

	brandWidth := lipgloss.Width(brand)
	linkWidth := lipgloss.Width(linkStatus)
	statsWidth := lipgloss.Width(stats)
	spacerWidth := h.width - brandWidth - linkWidth - statsWidth
	if spacerWidth < 0 {
		spacerWidth = 0
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	content := lipgloss.JoinHorizontal(lipgloss.Top, brand, linkStatus, spacer, stats)
	return headerContainerStyle.Width(h.width).Render(content)
}

func (h Header) maxAttempt() int {
	n := 0
	for _, a := range h.attempts {
		n = max(n, a)
	}
	return n
}

func channelMark(up bool) string {
	if up {
		return "✓"
	}
	return "✗"
}

// formatDuration renders d compactly: 45s, 5m, 2h30m.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
