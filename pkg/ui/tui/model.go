package tui

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FileState represents where a template file is in the pipeline
type FileState int

const (
	FilePending FileState = iota
	FileProcessing
	FileGenerated
	FileUnchanged
	FileSkipped
	FileFailed
)

func (s FileState) String() string {
	switch s {
	case FilePending:
		return "pending"
	case FileProcessing:
		return "processing"
	case FileGenerated:
		return "generated"
	case FileUnchanged:
		return "up to date"
	case FileSkipped:
		return "no directives"
	case FileFailed:
		return "failed"
	}
	return fmt.Sprintf("FileState(%d)", int(s))
}

// FileItem is one template file of the run
type FileItem struct {
	Path      string
	Output    string
	State     FileState
	Functions int
	StartTime time.Time
	Duration  time.Duration
	Error     error
}

// Model is the dashboard state. It is only touched from the bubbletea event loop.
type Model struct {
	// UI components
	spinner  spinner.Model
	progress progress.Model

	// File state
	files     map[string]*FileItem
	fileOrder []string
	workers   int
	dryRun    bool

	sessionStartTime time.Time
	finished         bool
	elapsed          time.Duration

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new dashboard model
func NewModel(workers int, dryRun bool) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return Model{
		spinner:          s,
		progress:         p,
		files:            make(map[string]*FileItem),
		workers:          workers,
		dryRun:           dryRun,
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// QueueFiles adds files in the pending state
func (m *Model) QueueFiles(paths []string) {
	for _, path := range paths {
		if _, ok := m.files[path]; ok {
			continue
		}
		m.files[path] = &FileItem{Path: path, State: FilePending}
		m.fileOrder = append(m.fileOrder, path)
	}
}

func (m *Model) item(path string) *FileItem {
	if f, ok := m.files[path]; ok {
		return f
	}
	m.QueueFiles([]string{path})
	return m.files[path]
}

// StartFile marks a file as picked up by a worker
func (m *Model) StartFile(path string) {
	f := m.item(path)
	f.State = FileProcessing
	f.StartTime = time.Now()
}

// CompleteFile marks a file as expanded
func (m *Model) CompleteFile(path, output string, functions int, written bool) {
	f := m.item(path)
	f.Output = output
	f.Functions = functions
	f.State = FileUnchanged
	if written {
		f.State = FileGenerated
	}
	m.finish(f)
}

// SkipFile marks a template that had nothing to expand
func (m *Model) SkipFile(path string) {
	f := m.item(path)
	f.State = FileSkipped
	m.finish(f)
}

// FailFile marks a file as rejected
func (m *Model) FailFile(path string, err error) {
	f := m.item(path)
	f.State = FileFailed
	f.Error = err
	m.finish(f)
}

func (m *Model) finish(f *FileItem) {
	if !f.StartTime.IsZero() {
		f.Duration = time.Since(f.StartTime)
	}
}

// Finish freezes the session clock
func (m *Model) Finish() {
	m.finished = true
	m.elapsed = time.Since(m.sessionStartTime)
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = errorRed
	case "WARN":
		color = accentOrange
	case "SUCCESS":
		color = accentGreen
	case "INFO":
		color = accentCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// FilesIn returns the files in the given state, in queue order
func (m *Model) FilesIn(state FileState) []*FileItem {
	var out []*FileItem
	for _, path := range m.fileOrder {
		if f := m.files[path]; f.State == state {
			out = append(out, f)
		}
	}
	return out
}

// Counts returns how many files are in each state
func (m *Model) Counts() map[FileState]int {
	counts := make(map[FileState]int)
	for _, f := range m.files {
		counts[f.State]++
	}
	return counts
}

// Fraction returns the share of files that are done
func (m *Model) Fraction() float64 {
	if len(m.files) == 0 {
		return 0
	}
	counts := m.Counts()
	done := len(m.files) - counts[FilePending] - counts[FileProcessing]
	return float64(done) / float64(len(m.files))
}

// Functions returns the number of functions expanded so far
func (m *Model) Functions() int {
	total := 0
	for _, f := range m.files {
		total += f.Functions
	}
	return total
}

// Elapsed returns the session duration
func (m *Model) Elapsed() time.Duration {
	if m.finished {
		return m.elapsed
	}
	return time.Since(m.sessionStartTime)
}

// Finished reports whether the run is over
func (m *Model) Finished() bool {
	return m.finished
}

// shortPath trims a path to its last two elements
func shortPath(path string) string {
	dir, file := filepath.Split(filepath.Clean(path))
	parent := filepath.Base(dir)
	if dir == "" || parent == "." || parent == string(filepath.Separator) {
		return file
	}
	return filepath.Join(parent, file)
}
