package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire dashboard
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderTitle())

	width := (m.width - 2) / 2
	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		lipgloss.JoinVertical(lipgloss.Left, m.renderStatsPanel(width), m.renderFilesPanel(width)),
		"  ",
		m.renderLogsPanel(width),
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to quit"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderTitle() string {
	mode := "gen"
	if m.dryRun {
		mode = "gen --dry-run"
	}
	status := m.spinner.View() + " running"
	if m.finished {
		status = successStyle.Render("done")
		if m.Counts()[FileFailed] > 0 {
			status = errorStyle.Render("failed")
		}
	}
	return titleBarStyle.Render(fmt.Sprintf("backon %s · %d workers · %s", mode, m.workers, status))
}

// renderStatsPanel renders the counters and the overall progress bar
func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" GENERATION ")
	counts := m.Counts()

	m.progress.Width = width - 6
	if m.progress.Width < 10 {
		m.progress.Width = 10
	}

	done := len(m.files) - counts[FilePending] - counts[FileProcessing]
	stats := []string{
		m.progress.ViewAs(m.Fraction()),
		stat("Files:", fmt.Sprintf("%d/%d", done, len(m.files))),
		stat("Generated:", fmt.Sprintf("%d", counts[FileGenerated])),
		stat("Up to date:", fmt.Sprintf("%d", counts[FileUnchanged])),
		stat("Functions:", fmt.Sprintf("%d", m.Functions())),
		stat("Elapsed:", formatDuration(m.Elapsed())),
	}
	if n := counts[FileSkipped]; n > 0 {
		stats = append(stats, stat("No directives:", fmt.Sprintf("%d", n)))
	}
	if n := counts[FileFailed]; n > 0 {
		stats = append(stats, errorStyle.Render(fmt.Sprintf("%d files rejected", n)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func stat(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}

// renderFilesPanel lists files being processed, then the most recent results
func (m *Model) renderFilesPanel(width int) string {
	title := titleStyle.Render(" FILES ")

	var items []string
	for _, f := range m.FilesIn(FileProcessing) {
		items = append(items, fileActiveStyle.Render(m.spinner.View()+" "+shortPath(f.Path)))
	}

	if pending := m.FilesIn(FilePending); len(pending) > 0 {
		items = append(items, warningStyle.Render(fmt.Sprintf("⏳ %d pending", len(pending))))
	}

	var finished []*FileItem
	for _, path := range m.fileOrder {
		if f := m.files[path]; f.State != FilePending && f.State != FileProcessing {
			finished = append(finished, f)
		}
	}
	start := len(finished) - 8
	if start < 0 {
		start = 0
	}
	for _, f := range finished[start:] {
		style, icon := stateStyle(f.State)
		line := fmt.Sprintf("%s %s", icon, shortPath(f.Path))
		if f.State == FileGenerated || f.State == FileUnchanged {
			line += fmt.Sprintf(" → %s", shortPath(f.Output))
		}
		items = append(items, style.Render(line))
	}

	content := dimStyle.Render("Waiting for files...")
	if len(items) > 0 {
		content = lipgloss.JoinVertical(lipgloss.Left, items...)
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderLogsPanel renders the logs panel
func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 15
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 22
	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))

		// Truncate before styling so escape codes are never cut
		text := log.Message
		if maxMsgLen > 3 && len(text) > maxMsgLen {
			text = text[:maxMsgLen-3] + "..."
		}

		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(text)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = dimStyle.Render("No logs yet...")
	}

	logsHeight := m.height - 6
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/esc    - Quit
    ctrl+l   - Clear the log
    ?        - Toggle this help

  File states:
    ` + successStyle.Render("✓") + `        - Generated file written
    ` + dimStyle.Render("=") + `        - Generated file already up to date
    ` + dimStyle.Render("-") + `        - Template without directives
    ` + errorStyle.Render("✗") + `        - Rejected with diagnostics
`

	return panelStyle.Width(m.width - 2).Render(help)
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
