package config

import (
	"errors"
	"fmt"
	"go/build/constraint"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultRuntimePackage is the import path generated code delegates to
const DefaultRuntimePackage = "github.com/bxb100/backon/pkg/retry"

// Config holds all configuration options for the backon generator
type Config struct {
	// Code generation settings
	Generator GeneratorConfig `yaml:"generator" json:"generator"`

	// Terminal output
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// GeneratorConfig controls how templates are found and expanded
type GeneratorConfig struct {
	// BuildTag marks template files: they carry //go:build <tag>
	BuildTag string `yaml:"build_tag" json:"build_tag"`
	// OutputSuffix replaces ".go" in the name of generated files
	OutputSuffix string `yaml:"output_suffix" json:"output_suffix"`
	// RuntimePackage is the import path of the executor runtime
	RuntimePackage string `yaml:"runtime_package" json:"runtime_package"`
	// StrictSleep requires an explicit sleep option on every directive
	StrictSleep bool `yaml:"strict_sleep" json:"strict_sleep"`
	// FixImports lets goimports add imports the template forgot
	FixImports bool `yaml:"fix_imports" json:"fix_imports"`
	// Workers is the number of files expanded concurrently
	Workers int `yaml:"workers" json:"workers"`
}

// OutputConfig holds terminal output preferences
type OutputConfig struct {
	Color bool `yaml:"color" json:"color"`
	Quiet bool `yaml:"quiet" json:"quiet"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Generator: GeneratorConfig{
			BuildTag:       "backon",
			OutputSuffix:   "_backon.go",
			RuntimePackage: DefaultRuntimePackage,
			StrictSleep:    false,
			FixImports:     false,
			Workers:        4,
		},
		Output: OutputConfig{
			Color: true,
			Quiet: false,
		},
		Logging: LoggingConfig{
			Level: "warn",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from BACKON_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if tag := os.Getenv("BACKON_BUILD_TAG"); tag != "" {
		c.Generator.BuildTag = tag
	}
	if suffix := os.Getenv("BACKON_OUTPUT_SUFFIX"); suffix != "" {
		c.Generator.OutputSuffix = suffix
	}
	if pkg := os.Getenv("BACKON_RUNTIME_PACKAGE"); pkg != "" {
		c.Generator.RuntimePackage = pkg
	}
	if err := envBool("BACKON_STRICT_SLEEP", &c.Generator.StrictSleep); err != nil {
		errs = append(errs, err)
	}
	if err := envBool("BACKON_FIX_IMPORTS", &c.Generator.FixImports); err != nil {
		errs = append(errs, err)
	}
	if workers := os.Getenv("BACKON_WORKERS"); workers != "" {
		val, err := strconv.Atoi(workers)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid BACKON_WORKERS: %w", err))
		} else {
			c.Generator.Workers = val
		}
	}

	// NO_COLOR is honoured as well, see https://no-color.org
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.Output.Color = false
	}
	var noColor bool
	if err := envBool("BACKON_NO_COLOR", &noColor); err != nil {
		errs = append(errs, err)
	} else if noColor {
		c.Output.Color = false
	}

	if logLevel := os.Getenv("BACKON_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("BACKON_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

func envBool(key string, dst *bool) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = val
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ConfigFileLocations lists the files searched when no config path is given, in
// order of precedence
func ConfigFileLocations() []string {
	home := os.Getenv("HOME")
	return []string{
		".backon.yaml",
		".backon.yml",
		filepath.Join(home, ".config", "backon", "config.yaml"),
		filepath.Join(home, ".config", "backon", "config.yml"),
	}
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	for _, loc := range ConfigFileLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Validate generator settings
	if err := validateBuildTag(c.Generator.BuildTag); err != nil {
		errs = append(errs, err)
	}
	suffix := c.Generator.OutputSuffix
	if !strings.HasSuffix(suffix, ".go") || suffix == ".go" {
		errs = append(errs, fmt.Errorf("output suffix %q must end in .go and add something before it", suffix))
	}
	if strings.HasSuffix(suffix, "_test.go") {
		errs = append(errs, errors.New("output suffix must not produce test files"))
	}
	if c.Generator.RuntimePackage == "" {
		errs = append(errs, errors.New("runtime package is required"))
	}
	if c.Generator.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Generator.Workers > 64 {
		errs = append(errs, errors.New("workers should not exceed 64"))
	}

	// Validate logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validateBuildTag accepts a single build tag usable in //go:build lines
func validateBuildTag(tag string) error {
	if tag == "" {
		return errors.New("build tag is required")
	}
	expr, err := constraint.Parse("//go:build " + tag)
	if err != nil {
		return fmt.Errorf("invalid build tag %q: %w", tag, err)
	}
	if _, ok := expr.(*constraint.TagExpr); !ok {
		return fmt.Errorf("build tag %q must be a single tag", tag)
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if tag, ok := flags["tag"].(string); ok && tag != "" {
		c.Generator.BuildTag = tag
	}
	if suffix, ok := flags["suffix"].(string); ok && suffix != "" {
		c.Generator.OutputSuffix = suffix
	}
	if runtime, ok := flags["runtime"].(string); ok && runtime != "" {
		c.Generator.RuntimePackage = runtime
	}
	if strict, ok := flags["strict-sleep"].(bool); ok {
		c.Generator.StrictSleep = strict
	}
	if fix, ok := flags["fix-imports"].(bool); ok {
		c.Generator.FixImports = fix
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Generator.Workers = workers
	}
	if noColor, ok := flags["no-color"].(bool); ok && noColor {
		c.Output.Color = false
	}
	if quiet, ok := flags["quiet"].(bool); ok {
		c.Output.Quiet = quiet
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".backon.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
