package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// HelpBar displays keyboard shortcuts at the bottom of the monitor.
type HelpBar struct {
	width int
	keys  KeyBindings

	// Error display
	errorMsg string
}

// NewHelpBar creates a new help bar component.
func NewHelpBar() HelpBar {
	return HelpBar{
		keys: DefaultKeyBindings(),
	}
}

// SetWidth updates the help bar width.
func (h *HelpBar) SetWidth(width int) {
	h.width = width
}

// SetError sets the error message to display.
func (h *HelpBar) SetError(msg string) {
	h.errorMsg = msg
}

// ClearError clears the error message.
func (h *HelpBar) ClearError() {
	h.errorMsg = ""
}

// View renders the help bar.
func (h HelpBar) View() string {
	if h.errorMsg != "" {
		return errorBarStyle.Width(h.width).Render("Error: " + h.errorMsg)
	}
	bindings := []key.Binding{h.keys.Down, h.keys.PageUp, h.keys.Bottom, h.keys.Reconnect, h.keys.Clear, h.keys.Quit}
	return statusStyle.Width(h.width).Render(formatHelp(bindings))
}

// formatHelp formats a list of key bindings as help text.
func formatHelp(bindings []key.Binding) string {
	var parts []string
	for _, b := range bindings {
		help := b.Help()
		parts = append(parts, help.Key+": "+help.Desc)
	}
	return strings.Join(parts, "  ")
}
