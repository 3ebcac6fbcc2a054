package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primaryColor   = lipgloss.Color("#0061FE") // Dropbox blue
	secondaryColor = lipgloss.Color("#10B981") // Green
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	errorColor     = lipgloss.Color("#EF4444") // Red
	warningColor   = lipgloss.Color("#F59E0B") // Amber/Yellow

	// Header styles
	headerContainerStyle = lipgloss.NewStyle().
				Background(primaryColor)

	headerBrandStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(primaryColor).
				Padding(0, 1)

	headerStatsStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#E0E0E0")).
				Background(primaryColor).
				Padding(0, 1)

	// Link status styles
	headerLinkedStyle = lipgloss.NewStyle().
				Foreground(secondaryColor).
				Background(primaryColor)

	headerConnDisconnectedStyle = lipgloss.NewStyle().
					Foreground(errorColor).
					Background(primaryColor)

	headerConnReconnectingStyle = lipgloss.NewStyle().
					Foreground(warningColor).
					Background(primaryColor)

	// Status bar style
	statusStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	// Event log styles
	logEmptyStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(1, 2)

	logTimeStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	logInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // blue
	logGoodStyle  = lipgloss.NewStyle().Foreground(secondaryColor)
	logWarnStyle  = lipgloss.NewStyle().Foreground(warningColor)
	logErrorStyle = lipgloss.NewStyle().Foreground(errorColor)

	logTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0"))

	logBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor)

	// Error display styles
	errorBarStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Padding(0, 1)
)
