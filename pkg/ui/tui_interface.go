package ui

// Reporter is told about every template file of a gen run. It is implemented by
// LineReporter and by the dashboard in pkg/ui/tui.
type Reporter interface {
	QueueFiles(paths []string)
	StartFile(path string)
	CompleteFile(path, output string, functions int, written bool)
	SkipFile(path string)
	FailFile(path string, err error)
	Finish()
}
