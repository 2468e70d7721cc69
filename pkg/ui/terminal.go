// Package ui renders backon's terminal output: coloured status lines, the
// generation summary and, in pkg/ui/tui, the interactive dashboard.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	errs "github.com/bxb100/backon/pkg/errors"
)

// Banner is printed at the top of gen runs
const Banner = "backon · retry wiring generator"

var (
	mu     sync.Mutex
	output io.Writer = os.Stdout
	color            = term.IsTerminal(int(os.Stdout.Fd()))
	quiet  bool
)

// Color functions for terminal output
var (
	Cyan    = colorize(lipgloss.Color("6"))
	Yellow  = colorize(lipgloss.Color("3"))
	Red     = colorize(lipgloss.Color("1"))
	Green   = colorize(lipgloss.Color("2"))
	Magenta = colorize(lipgloss.Color("5"))
	Dim     = colorize(lipgloss.Color("8"))
)

// colorize returns a function that renders text in c when colour is enabled
func colorize(c lipgloss.Color) func(string) string {
	style := lipgloss.NewStyle().Foreground(c)
	return func(text string) string {
		mu.Lock()
		enabled := color
		mu.Unlock()
		if !enabled {
			return text
		}
		return style.Render(text)
	}
}

// Configure sets the output writer and preferences. Colour is only used when
// requested and out is a terminal.
func Configure(out io.Writer, useColor, beQuiet bool) {
	mu.Lock()
	defer mu.Unlock()

	output = out
	color = useColor && IsTerminal(out)
	quiet = beQuiet
}

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Output returns the configured writer
func Output() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

func printf(always bool, format string, args ...interface{}) {
	mu.Lock()
	out, silent := output, quiet && !always
	mu.Unlock()
	if silent {
		return
	}
	fmt.Fprintf(out, format, args...)
}

// PrintBanner prints the program banner
func PrintBanner() {
	printf(false, "%s\n\n", Cyan(Banner))
}

// PrintError prints an error message in red. Errors are printed even in quiet mode.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf(true, "%s\n", Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf(true, "%s\n", Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf(false, "%s\n", Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	printf(false, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf(false, "%s\n", Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf(false, "%s\n", Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf(false, "%s\n", Magenta(msg))
}

// PrintDiagnostics prints every diagnostic carried by err, one per line, in the
// file:line:col form editors understand. Errors that are not diagnostics are
// printed as they are.
func PrintDiagnostics(err error) {
	diags := errs.Diagnostics(err)
	if len(diags) == 0 {
		if err != nil {
			PrintError(err.Error())
		}
		return
	}
	for _, d := range diags {
		pos := ""
		if d.Pos.IsValid() || d.Pos.Filename != "" {
			pos = d.Pos.String() + ": "
		}
		printf(true, "%s%s %s\n", pos, Red("error:"), d.Message+" "+Dim("["+string(d.Code)+"]"))
	}
}
