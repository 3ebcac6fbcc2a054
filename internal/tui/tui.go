// Package tui provides the Bubbletea-based link monitor for dbxlink.
package tui

import (
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tessro/dbxlink/internal/daemon"
)

// Link is the daemon client as seen by the monitor.
type Link interface {
	LinkState() daemon.LinkState
	ForceReconnect()
}

// refreshInterval is how often the header re-reads the link state.
const refreshInterval = time.Second

// Model is the main Bubbletea model for the monitor.
type Model struct {
	// Window dimensions
	width  int
	height int

	// UI state
	ready bool

	// Components
	header  Header
	logView LogView
	helpBar HelpBar

	link Link
	feed <-chan Entry

	// Key bindings
	keys KeyBindings
}

// Options configures the monitor.
type Options struct {
	// LogSize is the number of entries kept. Zero means 1000.
	LogSize int
}

// New creates a monitor model for link, reading entries from feed.
func New(link Link, feed <-chan Entry, opts *Options) Model {
	size := 0
	if opts != nil {
		size = opts.LogSize
	}
	return Model{
		header:  NewHeader(),
		logView: NewLogView(size),
		helpBar: NewHelpBar(),
		link:    link,
		feed:    feed,
		keys:    DefaultKeyBindings(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	slog.Debug("monitor starting")
	return tea.Batch(m.waitForEntry(), m.tickCmd())
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.header.View(), m.logView.View(), m.helpBar.View())
}

// Run starts the monitor and blocks until the user quits.
func Run(link Link, feed <-chan Entry, opts *Options) error {
	p := tea.NewProgram(
		New(link, feed, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	slog.Debug("monitor exited", "error", err)
	return err
}
