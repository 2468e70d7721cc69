package ui

import (
	"fmt"
	"strings"
	"sync"
)

// LineReporter prints one line per generated file followed by a summary
type LineReporter struct {
	mu      sync.Mutex
	tracker *StatusTracker
	dryRun  bool
	verbose bool
}

// NewLineReporter creates a line reporter. Verbose reporters also list files
// that were already up to date or had nothing to expand.
func NewLineReporter(dryRun, verbose bool) *LineReporter {
	return &LineReporter{
		tracker: NewStatusTracker(0),
		dryRun:  dryRun,
		verbose: verbose,
	}
}

// Tracker exposes the counters behind the reporter
func (r *LineReporter) Tracker() *StatusTracker {
	return r.tracker
}

// QueueFiles sets the number of files in the run
func (r *LineReporter) QueueFiles(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker = NewStatusTracker(len(paths))
}

// StartFile is a no-op for line output
func (r *LineReporter) StartFile(path string) {}

// CompleteFile prints the output file when it changed
func (r *LineReporter) CompleteFile(path, output string, functions int, written bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !written {
		r.tracker.RecordUnchanged(functions)
		if r.verbose {
			printf(false, "%s %s %s\n", Dim("="), output, Dim("up to date"))
		}
		return
	}

	r.tracker.RecordGenerated(functions)
	mark := Green("✓")
	if r.dryRun {
		mark = Yellow("~")
	}
	printf(false, "%s %s %s\n", mark, output, Dim(fmt.Sprintf("(%s)", plural(functions, "function"))))
}

// SkipFile records a template without directives
func (r *LineReporter) SkipFile(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.RecordSkipped()
	if r.verbose {
		printf(false, "%s %s %s\n", Dim("-"), path, Dim("no directives"))
	}
}

// FailFile prints every diagnostic of a rejected file
func (r *LineReporter) FailFile(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.RecordFailed()
	printf(true, "%s %s\n", Red("✗"), path)
	PrintDiagnostics(err)
}

// Finish prints the run summary
func (r *LineReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.PrintSummary(r.dryRun)
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, strings.TrimSuffix(word, "s"))
}
