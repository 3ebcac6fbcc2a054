package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

// LogView shows the event log in a scrollable viewport.
type LogView struct {
	width  int
	height int
	ready  bool

	log      *eventLog
	viewport viewport.Model
}

// NewLogView creates a log view keeping at most size entries.
func NewLogView(size int) LogView {
	return LogView{log: newEventLog(size)}
}

// SetSize updates the component dimensions, border included.
func (v *LogView) SetSize(width, height int) {
	v.width = width
	v.height = height

	contentWidth := max(width-2, 1)
	contentHeight := max(height-2, 1)
	if !v.ready {
		v.viewport = viewport.New(contentWidth, contentHeight)
		v.ready = true
	} else {
		v.viewport.Width = contentWidth
		v.viewport.Height = contentHeight
	}
	v.updateContent()
}

// Append adds an entry and follows the tail if the view was at the bottom.
func (v *LogView) Append(e Entry) {
	follow := !v.ready || v.viewport.AtBottom()
	v.log.add(e)
	v.updateContent()
	if follow {
		v.viewport.GotoBottom()
	}
}

// Clear empties the log.
func (v *LogView) Clear() {
	v.log.clear()
	v.updateContent()
	v.viewport.GotoTop()
}

// Len returns the number of entries held.
func (v *LogView) Len() int {
	return v.log.len()
}

// Total returns the number of entries ever appended.
func (v *LogView) Total() int {
	return v.log.total
}

func (v *LogView) ScrollUp(n int)   { v.viewport.LineUp(n) }
func (v *LogView) ScrollDown(n int) { v.viewport.LineDown(n) }
func (v *LogView) ScrollToTop()     { v.viewport.GotoTop() }
func (v *LogView) ScrollToBottom()  { v.viewport.GotoBottom() }
func (v *LogView) PageUp()          { v.viewport.ViewUp() }
func (v *LogView) PageDown()        { v.viewport.ViewDown() }

func (v *LogView) updateContent() {
	if !v.ready {
		return
	}
	entries := v.log.all()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, renderEntry(e, v.viewport.Width))
	}
	v.viewport.SetContent(strings.Join(lines, "\n"))
}

// renderEntry draws one entry on a single line, cutting the text to fit.
func renderEntry(e Entry, width int) string {
	ts := logTimeStyle.Render(e.Time.Format("15:04:05"))
	kind := severityStyle(e.Severity).Render(e.Kind)
	prefix := ts + " " + kind
	if e.Channel != "" {
		prefix += logTimeStyle.Render(" [" + e.Channel + "]")
	}
	if e.Text == "" {
		return prefix
	}
	room := width - lipgloss.Width(prefix) - 1
	if room <= 0 {
		return prefix
	}
	text := truncate.StringWithTail(e.Text, uint(room), "…")
	return prefix + " " + logTextStyle.Render(text)
}

func severityStyle(s Severity) lipgloss.Style {
	switch s {
	case SeverityGood:
		return logGoodStyle
	case SeverityWarn:
		return logWarnStyle
	case SeverityError:
		return logErrorStyle
	default:
		return logInfoStyle
	}
}

// View renders the log inside its border.
func (v LogView) View() string {
	if !v.ready {
		return ""
	}
	body := v.viewport.View()
	if v.log.len() == 0 {
		body = logEmptyStyle.Width(v.viewport.Width).Height(v.viewport.Height).
			Render("Waiting for daemon events...")
	}
	return logBorderStyle.Render(body)
}
