package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/bxb100/backon/pkg/config"
	"github.com/bxb100/backon/pkg/logger"
	"github.com/bxb100/backon/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// exitError carries a process exit code for failures that were already reported
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backon",
	Short: "Generate retry wiring for annotated Go functions",
	Long: `backon turns ordinary Go functions into functions that run under a retry policy.

Write the function in a template file constrained by //go:build backon and mark it
with a directive in its doc comment:

  //backon:retry backoff=retry.NewExponentialBuilder, when=isTemporary, context=true
  func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) { ... }

'backon gen' writes <name>_backon.go next to each template. The generated file has
the same declarations, with every annotated body delegated to the executors in
github.com/bxb100/backon/pkg/retry.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.backon.yaml or $HOME/.config/backon/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	// Version template
	rootCmd.SetVersionTemplate(`backon {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// flagOverrides collects the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects
func flagOverrides(cmd *cobra.Command) map[string]interface{} {
	fs := cmd.Flags()
	flags := make(map[string]interface{})

	for _, name := range []string{"tag", "suffix", "runtime", "log-level"} {
		if fs.Changed(name) {
			if v, err := fs.GetString(name); err == nil {
				flags[name] = v
			}
		}
	}
	for _, name := range []string{"strict-sleep", "fix-imports", "no-color", "quiet"} {
		if fs.Changed(name) {
			if v, err := fs.GetBool(name); err == nil {
				flags[name] = v
			}
		}
	}
	if fs.Changed("workers") {
		if v, err := fs.GetInt("workers"); err == nil {
			flags["workers"] = v
		}
	}

	return flags
}

// setup loads the configuration and initializes logging and terminal output
func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, flagOverrides(cmd))
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	ui.Configure(cmd.OutOrStdout(), cfg.Output.Color, cfg.Output.Quiet)

	logger.GetLogger().DebugWithFields("Configuration loaded", map[string]interface{}{
		"build_tag": cfg.Generator.BuildTag,
		"suffix":    cfg.Generator.OutputSuffix,
		"runtime":   cfg.Generator.RuntimePackage,
		"workers":   cfg.Generator.Workers,
	})

	return cfg, nil
}
