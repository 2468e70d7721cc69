package tui

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bxb100/backon/pkg/ui"
)

var _ ui.Reporter = (*TUI)(nil)

// TUI is the live dashboard of a gen run. It implements ui.Reporter, so the
// generator can report to it from any goroutine.
type TUI struct {
	program *tea.Program
	model   *Model
}

// Option configures the underlying bubbletea program
type Option = tea.ProgramOption

// WithIO runs the dashboard on the given streams instead of the terminal
func WithIO(in io.Reader, out io.Writer) Option {
	return func(p *tea.Program) {
		tea.WithInput(in)(p)
		tea.WithOutput(out)(p)
	}
}

// NewTUI creates a new dashboard for a run with the given number of workers
func NewTUI(workers int, dryRun bool, opts ...Option) *TUI {
	model := NewModel(workers, dryRun)
	opts = append([]Option{tea.WithAltScreen()}, opts...)
	program := tea.NewProgram(&model, opts...)

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Start runs the dashboard until the user quits. It blocks.
func (t *TUI) Start() error {
	go func() {
		// Send initial tick to start the clock
		time.Sleep(100 * time.Millisecond)
		t.program.Send(TickMsg(time.Now()))
	}()

	_, err := t.program.Run()
	return err
}

// Stop stops the dashboard
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the dashboard
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// QueueFiles lists the files of the run
func (t *TUI) QueueFiles(paths []string) {
	t.Send(FilesQueuedMsg{Paths: append([]string(nil), paths...)})
}

// StartFile notifies the dashboard that a worker picked up a file
func (t *TUI) StartFile(path string) {
	t.Send(FileStartMsg{Path: path})
}

// CompleteFile notifies the dashboard that a file expanded
func (t *TUI) CompleteFile(path, output string, functions int, written bool) {
	t.Send(FileCompleteMsg{Path: path, Output: output, Functions: functions, Written: written})
}

// SkipFile notifies the dashboard of a template without directives
func (t *TUI) SkipFile(path string) {
	t.Send(FileSkippedMsg{Path: path})
}

// FailFile notifies the dashboard that a file was rejected
func (t *TUI) FailFile(path string, err error) {
	t.Send(FileErrorMsg{Path: path, Error: err})
}

// Finish tells the dashboard the run is over
func (t *TUI) Finish() {
	t.Send(DoneMsg{})
}

// Log sends a log message to the dashboard
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}
