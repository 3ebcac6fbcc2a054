package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tessro/dbxlink/internal/daemon"
)

// errorDisplayTime is how long an error stays in the help bar.
const errorDisplayTime = 3 * time.Second

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reconnect):
			if m.link == nil {
				break
			}
			if m.link.LinkState() != daemon.BothUp {
				m.helpBar.SetError("link is down and already retrying")
				cmds = append(cmds, clearErrorAfter(errorDisplayTime))
				break
			}
			m.link.ForceReconnect()
		case key.Matches(msg, m.keys.Clear):
			m.logView.Clear()
		case key.Matches(msg, m.keys.Up):
			m.logView.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.logView.ScrollDown(1)
		case key.Matches(msg, m.keys.Top):
			m.logView.ScrollToTop()
		case key.Matches(msg, m.keys.Bottom):
			m.logView.ScrollToBottom()
		case key.Matches(msg, m.keys.PageUp):
			m.logView.PageUp()
		case key.Matches(msg, m.keys.PageDown):
			m.logView.PageDown()
		}

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.logView.ScrollUp(3)
		case tea.MouseButtonWheelDown:
			m.logView.ScrollDown(3)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		// Header and help bar take one line each.
		m.header.SetWidth(msg.Width)
		m.helpBar.SetWidth(msg.Width)
		m.logView.SetSize(msg.Width, max(msg.Height-2, 3))

	case entryMsg:
		m.logView.Append(msg.Entry)
		m.header.SetEventCount(m.logView.Total())
		if msg.Entry.Link != nil {
			m.header.ObserveLink(*msg.Entry.Link)
		}
		m.refreshState()
		cmds = append(cmds, m.waitForEntry())

	case feedClosedMsg:
		m.helpBar.SetError("event feed closed")

	case tickMsg:
		m.refreshState()
		cmds = append(cmds, m.tickCmd())

	case clearErrorMsg:
		m.helpBar.ClearError()
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) refreshState() {
	if m.link != nil {
		m.header.SetLinkState(m.link.LinkState())
	}
}

// waitForEntry blocks on the feed for the next entry.
func (m Model) waitForEntry() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	feed := m.feed
	return func() tea.Msg {
		e, ok := <-feed
		if !ok {
			return feedClosedMsg{}
		}
		return entryMsg{Entry: e}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// clearErrorAfter returns a command that clears the error display later.
func clearErrorAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearErrorMsg{}
	})
}
