package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Message types for the dashboard

// FilesQueuedMsg is sent once the template files are discovered
type FilesQueuedMsg struct {
	Paths []string
}

// FileStartMsg is sent when a worker picks up a file
type FileStartMsg struct {
	Path string
}

// FileCompleteMsg is sent when a file expanded
type FileCompleteMsg struct {
	Path      string
	Output    string
	Functions int
	Written   bool
}

// FileSkippedMsg is sent for templates without directives
type FileSkippedMsg struct {
	Path string
}

// FileErrorMsg is sent when a file is rejected
type FileErrorMsg struct {
	Path  string
	Error error
}

// DoneMsg is sent after the last file
type DoneMsg struct{}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.finished {
			return m, nil
		}
		return m, tickCmd()

	case FilesQueuedMsg:
		m.QueueFiles(msg.Paths)
		m.AddLogMessage("INFO", fmt.Sprintf("Found %d template files", len(msg.Paths)))
		return m, nil

	case FileStartMsg:
		m.StartFile(msg.Path)
		return m, nil

	case FileCompleteMsg:
		m.CompleteFile(msg.Path, msg.Output, msg.Functions, msg.Written)
		if msg.Written {
			verb := "Wrote"
			if m.dryRun {
				verb = "Would write"
			}
			m.AddLogMessage("SUCCESS", fmt.Sprintf("%s %s (%d functions)", verb, shortPath(msg.Output), msg.Functions))
		}
		return m, nil

	case FileSkippedMsg:
		m.SkipFile(msg.Path)
		return m, nil

	case FileErrorMsg:
		m.FailFile(msg.Path, msg.Error)
		m.AddLogMessage("ERROR", "Rejected "+shortPath(msg.Path)+": "+firstLine(msg.Error))
		return m, nil

	case DoneMsg:
		m.Finish()
		m.AddLogMessage("INFO", "Generation finished, press q to exit")
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c", "esc":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func firstLine(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
