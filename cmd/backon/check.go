package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bxb100/backon/internal/generator"
	errs "github.com/bxb100/backon/pkg/errors"
	"github.com/bxb100/backon/pkg/expand"
	"github.com/bxb100/backon/pkg/logger"
	"github.com/bxb100/backon/pkg/ui"
)

var outputFormat string

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Validate templates and print the resolved plans",
	Long: `Run the whole expansion pipeline without writing anything.

Every annotated function is listed with the executor variant and capture strategy
it resolves to. Diagnostics are reported in file:line:col form and make the
command exit with status 1, which makes check suitable for CI.`,
	Example: `  # Check the templates of a module
  backon check ./...

  # Machine-readable output
  backon check ./... --format json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	addGeneratorFlags(checkCmd)
	checkCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format: text, json or yaml")
}

// Diagnostic is the serialisable form of a generation-time error
type Diagnostic struct {
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
	Column  int    `json:"column,omitempty" yaml:"column,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// CheckReport is what check prints in json and yaml formats
type CheckReport struct {
	Files       int              `json:"files" yaml:"files"`
	Functions   []expand.Summary `json:"functions" yaml:"functions"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	switch outputFormat {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", outputFormat)
	}

	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	paths, err := generator.Discover(args, cfg.Generator.BuildTag, cfg.Generator.OutputSuffix)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	log := logger.GetLogger()
	processor := expand.NewProcessor(cfg.Generator, log)
	results, err := generator.Run(ctx, paths, cfg.Generator.Workers, processor, nil, log, nil)
	if err != nil {
		return err
	}

	report := buildReport(results)
	out := cmd.OutOrStdout()

	switch outputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	default:
		printTextReport(out, report, results)
	}

	if len(report.Diagnostics) > 0 {
		return &exitError{code: 1}
	}
	return nil
}

func buildReport(results []generator.Result) CheckReport {
	report := CheckReport{Files: len(results), Functions: []expand.Summary{}}
	for _, r := range results {
		if r.Error != nil {
			report.Diagnostics = append(report.Diagnostics, toDiagnostics(r.Job.Path, r.Error)...)
			continue
		}
		report.Functions = append(report.Functions, r.File.Summaries()...)
	}
	return report
}

func toDiagnostics(path string, err error) []Diagnostic {
	diags := errs.Diagnostics(err)
	if len(diags) == 0 {
		return []Diagnostic{{File: path, Message: err.Error()}}
	}

	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		file := d.Pos.Filename
		if file == "" {
			file = path
		}
		out = append(out, Diagnostic{
			File:    file,
			Line:    d.Pos.Line,
			Column:  d.Pos.Column,
			Type:    string(d.Type),
			Code:    string(d.Code),
			Message: d.Message,
		})
	}
	return out
}

func printTextReport(out io.Writer, report CheckReport, results []generator.Result) {
	for _, s := range report.Functions {
		line := fmt.Sprintf("%s:%d: %s  %s/%s  backoff=%s", s.File, s.Line, s.Function, s.Variant, s.Capture, s.Backoff)
		if len(s.Hooks) > 0 {
			line += " " + strings.Join(s.Hooks, " ")
		}
		fmt.Fprintln(out, line)
	}

	for _, r := range results {
		if r.Error != nil {
			ui.PrintDiagnostics(r.Error)
		}
	}

	if len(report.Diagnostics) > 0 {
		ui.PrintError(fmt.Sprintf("%d problems in %d files", len(report.Diagnostics), report.Files))
		return
	}
	ui.PrintSuccess(fmt.Sprintf("%d functions in %d files OK", len(report.Functions), report.Files))
}
