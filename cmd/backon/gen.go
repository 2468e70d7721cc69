package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bxb100/backon/internal/generator"
	"github.com/bxb100/backon/pkg/config"
	"github.com/bxb100/backon/pkg/expand"
	"github.com/bxb100/backon/pkg/logger"
	"github.com/bxb100/backon/pkg/storage"
	"github.com/bxb100/backon/pkg/ui"
	"github.com/bxb100/backon/pkg/ui/tui"
)

var (
	// Generator flags, shared by gen and check
	workers     int
	buildTag    string
	suffix      string
	runtimePkg  string
	strictSleep bool
	fixImports  bool

	// gen flags
	dryRun  bool
	useTUI  bool
	verbose bool
)

// genCmd represents the gen command
var genCmd = &cobra.Command{
	Use:   "gen [paths...]",
	Short: "Expand templates into generated files",
	Long: `Expand every //backon:retry directive found in template files.

Paths may name files, directories (templates directly inside them) or
directory trees written as dir/... . Without paths the current directory is used.
Directories only contribute files constrained by the template build tag.

A file with any diagnostic is left alone; all of its diagnostics are reported.`,
	Example: `  # Expand the templates of the current package
  backon gen

  # Expand a whole module, eight files at a time
  backon gen ./... --workers 8

  # See what would change without writing anything
  backon gen ./... --dry-run -v

  # Watch progress in the terminal dashboard
  backon gen ./... --tui`,
	RunE: runGen,
}

func addGeneratorFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "number of files expanded concurrently")
	cmd.Flags().StringVar(&buildTag, "tag", "backon", "build tag that marks template files")
	cmd.Flags().StringVar(&suffix, "suffix", "_backon.go", "file name suffix of generated files")
	cmd.Flags().StringVar(&runtimePkg, "runtime", config.DefaultRuntimePackage, "import path of the retry runtime")
	cmd.Flags().BoolVar(&strictSleep, "strict-sleep", false, "require an explicit sleep option on every directive")
	cmd.Flags().BoolVar(&fixImports, "fix-imports", false, "let goimports add imports missing from templates")
}

func init() {
	rootCmd.AddCommand(genCmd)

	addGeneratorFlags(genCmd)
	genCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report what would be written without writing")
	genCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	genCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also list files that are up to date or have no directives")
}

func runGen(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	paths, err := generator.Discover(args, cfg.Generator.BuildTag, cfg.Generator.OutputSuffix)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		ui.PrintWarning("No template files found")
		return nil
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	interactive := useTUI && ui.IsTerminal(os.Stdout)
	if useTUI && !interactive {
		logger.Warn("Dashboard needs a terminal, falling back to line output")
	}

	if interactive && cfg.Logging.File == "" {
		// stderr logging would scribble over the dashboard
		quietLogs := cfg.Logging
		quietLogs.Level = "disabled"
		if err := logger.Initialize(&quietLogs); err != nil {
			return err
		}
	}

	log := logger.GetLogger()
	processor := expand.NewProcessor(cfg.Generator, log)
	store := storage.NewManager(dryRun)

	logger.LogComponentStart("generator", map[string]interface{}{
		"files":   len(paths),
		"workers": cfg.Generator.Workers,
		"dry_run": dryRun,
	})

	var results []generator.Result
	if interactive {
		results, err = generateWithTUI(ctx, paths, cfg, processor, store, log)
	} else {
		ui.PrintBanner()
		results, err = generate(ctx, paths, cfg, processor, store, log, ui.NewLineReporter(dryRun, verbose))
	}

	failed := countFailures(results)
	logger.LogMetrics("gen", map[string]interface{}{
		"files":     len(results),
		"failed":    failed,
		"written":   store.WrittenCount(),
		"unchanged": store.UnchangedCount(),
	})
	logger.LogComponentStop("generator", "finished")

	if err != nil {
		return err
	}
	if failed > 0 {
		return &exitError{code: 1}
	}
	return nil
}

// generate runs the worker pool and reports every file to reporter
func generate(
	ctx context.Context,
	paths []string,
	cfg *config.Config,
	processor generator.FileProcessor,
	store generator.FileStorage,
	log logger.Logger,
	reporter ui.Reporter,
) ([]generator.Result, error) {
	reporter.QueueFiles(paths)
	results, err := generator.Run(ctx, paths, cfg.Generator.Workers, processor, store, log, &reportObserver{reporter: reporter})
	reporter.Finish()
	return results, err
}

// generateWithTUI runs the dashboard in the foreground and the generator behind it.
// Quitting the dashboard cancels files not yet started.
func generateWithTUI(
	ctx context.Context,
	paths []string,
	cfg *config.Config,
	processor generator.FileProcessor,
	store generator.FileStorage,
	log logger.Logger,
) ([]generator.Result, error) {
	terminal := tui.NewTUI(cfg.Generator.Workers, dryRun)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		results []generator.Result
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := generate(ctx, paths, cfg, processor, store, log, terminal)
		done <- outcome{results, err}
	}()

	tuiErr := terminal.Start()
	cancel()
	out := <-done

	// the dashboard is gone, so repeat what needs attention
	for _, r := range out.results {
		if r.Error != nil {
			ui.PrintError(r.Job.Path)
			ui.PrintDiagnostics(r.Error)
		}
	}

	if tuiErr != nil {
		return out.results, tuiErr
	}
	if errors.Is(out.err, context.Canceled) {
		ui.PrintWarning("Generation interrupted")
		return out.results, nil
	}
	return out.results, out.err
}

// reportObserver forwards pool events to a ui.Reporter
type reportObserver struct {
	reporter ui.Reporter
}

func (o *reportObserver) FileStarted(job generator.Job) {
	o.reporter.StartFile(job.Path)
}

func (o *reportObserver) FileFinished(r generator.Result) {
	switch {
	case r.Error != nil:
		o.reporter.FailFile(r.Job.Path, r.Error)
	case r.File == nil || r.File.Code == nil:
		o.reporter.SkipFile(r.Job.Path)
	default:
		o.reporter.CompleteFile(r.Job.Path, r.File.Output, len(r.File.Expansions), r.Written)
	}
}

func countFailures(results []generator.Result) int {
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	return failed
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
