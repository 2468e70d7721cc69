package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accentCyan    = lipgloss.Color("#00D7FF")
	accentMagenta = lipgloss.Color("#D75FD7")
	accentGreen   = lipgloss.Color("#5FD75F")
	accentYellow  = lipgloss.Color("#FFD75F")
	accentOrange  = lipgloss.Color("#FF8700")
	errorRed      = lipgloss.Color("#FF5F5F")
	dimWhite      = lipgloss.Color("#B0B0B0")
	panelBg       = lipgloss.Color("#1C1C1C")

	titleBarStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true).
			Padding(0, 1)

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentMagenta).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(accentMagenta).
			Foreground(panelBg).
			Bold(true).
			Padding(0, 1)

	// Stats styles
	statsLabelStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(accentYellow)

	// Status styles
	successStyle = lipgloss.NewStyle().
			Foreground(accentGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(accentOrange).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimWhite).
			Faint(true)

	// File list styles
	fileItemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	fileActiveStyle = lipgloss.NewStyle().
			Foreground(accentGreen).
			Bold(true).
			PaddingLeft(2)

	// Log styles
	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	logMessageStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)
)

// stateStyle returns the style and icon used for a file state
func stateStyle(state FileState) (lipgloss.Style, string) {
	switch state {
	case FileProcessing:
		return fileActiveStyle, ""
	case FileGenerated:
		return successStyle, "✓"
	case FileUnchanged:
		return dimStyle, "="
	case FileSkipped:
		return dimStyle, "-"
	case FileFailed:
		return errorStyle, "✗"
	default:
		return fileItemStyle, "•"
	}
}
