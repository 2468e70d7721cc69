package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker keeps track of generation progress. It is safe for concurrent use.
type StatusTracker struct {
	mu        sync.Mutex
	total     int
	generated int
	unchanged int
	skipped   int
	failed    int
	functions int
	startTime time.Time
}

// NewStatusTracker creates a tracker for total template files
func NewStatusTracker(total int) *StatusTracker {
	return &StatusTracker{
		total:     total,
		startTime: time.Now(),
	}
}

// RecordGenerated counts a file whose output was (or would be) written
func (st *StatusTracker) RecordGenerated(functions int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.generated++
	st.functions += functions
}

// RecordUnchanged counts a file whose output was already up to date
func (st *StatusTracker) RecordUnchanged(functions int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.unchanged++
	st.functions += functions
}

// RecordSkipped counts a file without directives
func (st *StatusTracker) RecordSkipped() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.skipped++
}

// RecordFailed counts a file rejected with diagnostics
func (st *StatusTracker) RecordFailed() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.failed++
}

// Processed returns how many files have been recorded
func (st *StatusTracker) Processed() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.processed()
}

func (st *StatusTracker) processed() int {
	return st.generated + st.unchanged + st.skipped + st.failed
}

// Failed returns the number of rejected files
func (st *StatusTracker) Failed() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.failed
}

// GetProgress returns a formatted progress bar
func (st *StatusTracker) GetProgress() string {
	st.mu.Lock()
	defer st.mu.Unlock()

	const width = 20
	filled := 0
	if st.total > 0 {
		filled = st.processed() * width / st.total
	}
	if filled > width {
		filled = width
	}

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, st.processed(), st.total)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.startTime)
}

// PrintProgress rewrites the current progress line
func (st *StatusTracker) PrintProgress() {
	printf(false, "\r%s %s", Cyan("[GENERATING]"), st.GetProgress())
}

// Summary renders the closing line of a run
func (st *StatusTracker) Summary(dryRun bool) string {
	st.mu.Lock()
	defer st.mu.Unlock()

	verb := "generated"
	if dryRun {
		verb = "would generate"
	}
	parts := []string{
		fmt.Sprintf("%d %s", st.generated, verb),
		fmt.Sprintf("%d up to date", st.unchanged),
	}
	if st.skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d without directives", st.skipped))
	}
	if st.failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", st.failed))
	}
	return fmt.Sprintf("%s · %d functions · %s",
		strings.Join(parts, ", "), st.functions, formatDuration(time.Since(st.startTime)))
}

// PrintSummary prints the closing line of a run
func (st *StatusTracker) PrintSummary(dryRun bool) {
	line := st.Summary(dryRun)
	if st.Failed() > 0 {
		printf(true, "%s %s\n", Red("✗"), line)
		return
	}
	printf(false, "%s %s\n", Green("✓"), line)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
