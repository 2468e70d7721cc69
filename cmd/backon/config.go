package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"github.com/bxb100/backon/pkg/config"
	"github.com/bxb100/backon/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage backon configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (BACKON_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.backon.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging all sources:
  - Command line flags
  - Environment variables
  - Configuration file
  - Default values`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - The build tag and output suffix
  - The runtime import path
  - Worker count and log settings`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# backon configuration file
#
# Every option can also be set with an environment variable prefixed with
# BACKON_, for example BACKON_BUILD_TAG or BACKON_WORKERS.

generator:
  # Build tag that marks template files (//go:build backon)
  build_tag: "backon"

  # Suffix that replaces .go in the name of generated files
  output_suffix: "_backon.go"

  # Import path generated code delegates to
  runtime_package: "github.com/bxb100/backon/pkg/retry"

  # Require an explicit sleep option on every directive
  strict_sleep: false

  # Let goimports add imports the template forgot
  fix_imports: false

  # Number of files expanded concurrently
  # Range: 1-64
  workers: 4

output:
  # Enable colored output (also disabled by NO_COLOR)
  color: true

  # Only print errors
  quiet: false

logging:
  # Log level: debug, info, warn, error, disabled
  level: "warn"

  # Log file path (optional)
  # Leave empty to log to stderr only
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	ui.Configure(cmd.OutOrStdout(), !noColor, quiet)

	// Determine config file path
	configPath := configFile
	if configPath == "" {
		configPath = ".backon.yaml"
	}

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to overwrite)", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	ui.PrintInfo("Next", "run 'backon config validate' to check it")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))

	source := "(none found)"
	if configFile != "" {
		source = configFile
	} else if found := findConfigFile(); found != "" {
		source = found
	}

	fmt.Fprintln(out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "2. Environment variables (BACKON_*)")
	fmt.Fprintf(out, "3. Configuration file: %s\n", source)
	fmt.Fprintln(out, "4. Default values")
	return nil
}

func findConfigFile() string {
	for _, path := range config.ConfigFileLocations() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	ui.Configure(cmd.OutOrStdout(), !noColor, quiet)

	path := configFile
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return errors.New("no configuration file found, specify one with --config")
		}
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, flagOverrides(cmd))
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Checks beyond config.Validate
	var problems []string
	if err := module.CheckImportPath(cfg.Generator.RuntimePackage); err != nil {
		problems = append(problems, fmt.Sprintf("runtime package: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			ui.PrintError("  - " + p)
		}
		return &exitError{code: 1}
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("  Build tag", cfg.Generator.BuildTag)
	ui.PrintInfo("  Output suffix", cfg.Generator.OutputSuffix)
	ui.PrintInfo("  Runtime package", cfg.Generator.RuntimePackage)
	ui.PrintInfo("  Workers", fmt.Sprintf("%d", cfg.Generator.Workers))
	ui.PrintInfo("  Log level", cfg.Logging.Level)
	return nil
}
