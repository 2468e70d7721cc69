package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const pingTemplate = `//go:build backon

package ping

import "context"

// Ping dials addr.
//
//backon:retry
func Ping(ctx context.Context, addr string) error {
	return nil
}
`

const badTemplate = `//go:build backon

package ping

import "context"

//backon:retry jitter=true
func Ping(ctx context.Context, addr string) error {
	return nil
}
`

// isolate keeps config files and .env lookups inside a temporary directory
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("NO_COLOR", "1")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func exitCode(err error) int {
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return -1
}

func TestGenWritesGeneratedFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "ping", "ping.go"), pingTemplate)

	out, err := execute(t, "gen", "./...")
	require.NoError(t, err)
	assert.Contains(t, out, "ping_backon.go (1 function)")
	assert.Contains(t, out, "1 generated, 0 up to date")

	generated, err := os.ReadFile(filepath.Join(dir, "ping", "ping_backon.go"))
	require.NoError(t, err)
	assert.Contains(t, string(generated), "// Code generated by backon. DO NOT EDIT.")
	assert.Contains(t, string(generated), "//go:build !backon")
	assert.NotContains(t, string(generated), "//backon:retry")

	out, err = execute(t, "gen", "./...")
	require.NoError(t, err)
	assert.Contains(t, out, "0 generated, 1 up to date")
}

func TestGenDryRun(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "ping.go"), pingTemplate)

	out, err := execute(t, "gen", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "~ ping_backon.go")
	assert.Contains(t, out, "1 would generate")
	assert.NoFileExists(t, filepath.Join(dir, "ping_backon.go"))
}

func TestGenReportsDiagnostics(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "ping.go"), badTemplate)

	out, err := execute(t, "gen", ".")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "ping.go:7:")
	assert.Contains(t, out, "[unknown-option]")
	assert.Contains(t, out, "1 failed")
	assert.NoFileExists(t, filepath.Join(dir, "ping_backon.go"))
}

func TestGenNoTemplates(t *testing.T) {
	isolate(t)
	out, err := execute(t, "gen")
	require.NoError(t, err)
	assert.Contains(t, out, "No template files found")
}

func TestGenCustomTagAndSuffix(t *testing.T) {
	dir := isolate(t)
	src := bytes.Replace([]byte(pingTemplate), []byte("//go:build backon"), []byte("//go:build retrygen"), 1)
	writeFile(t, filepath.Join(dir, "ping.go"), string(src))

	_, err := execute(t, "gen", "--tag", "retrygen", "--suffix", "_gen.go")
	require.NoError(t, err)

	generated, err := os.ReadFile(filepath.Join(dir, "ping_gen.go"))
	require.NoError(t, err)
	assert.Contains(t, string(generated), "//go:build !retrygen")
}

func TestCheckJSON(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "ping.go"), pingTemplate)

	out, err := execute(t, "check", "--format", "json")
	require.NoError(t, err)

	var report CheckReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Files)
	require.Len(t, report.Functions, 1)
	fn := report.Functions[0]
	assert.Equal(t, "Ping", fn.Function)
	assert.Equal(t, "Suspending", fn.Variant)
	assert.Equal(t, "ByReference", fn.Capture)
	assert.Equal(t, "retry.NewExponentialBuilder", fn.Backoff)
	assert.Empty(t, report.Diagnostics)
	assert.NoFileExists(t, filepath.Join(dir, "ping_backon.go"))
}

func TestCheckYAMLWithDiagnostics(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "ping.go"), badTemplate)

	out, err := execute(t, "check", "--format", "yaml")
	assert.Equal(t, 1, exitCode(err))

	var report CheckReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	require.Len(t, report.Diagnostics, 1)
	d := report.Diagnostics[0]
	assert.Equal(t, "unknown-option", d.Code)
	assert.Equal(t, "shape", d.Type)
	assert.Equal(t, 7, d.Line)
	assert.Equal(t, "ping.go", d.File)
}

func TestCheckText(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "ping.go"), pingTemplate)

	out, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ping.go:10: Ping  Suspending/ByReference  backoff=retry.NewExponentialBuilder")
	assert.Contains(t, out, "1 functions in 1 files OK")
}

func TestCheckUnknownFormat(t *testing.T) {
	isolate(t)
	_, err := execute(t, "check", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}

func TestInvalidFlagConfiguration(t *testing.T) {
	isolate(t)
	_, err := execute(t, "check", "--suffix", ".go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output suffix")
}

func TestConfigInitValidateShow(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "conf", "backon.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file created")
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err = execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "github.com/bxb100/backon/pkg/retry")

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "build_tag: backon")
	assert.Contains(t, out, "Configuration file: "+path)
}

func TestConfigValidateRejectsBadRuntime(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, ".backon.yaml")
	writeFile(t, path, "generator:\n  runtime_package: \"not a path\"\n")

	out, err := execute(t, "config", "validate")
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "runtime package")
}

func TestConfigValidateWithoutFile(t *testing.T) {
	isolate(t)
	_, err := execute(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configuration file found")
}

func TestFlagOverrides(t *testing.T) {
	resetFlags(rootCmd)
	defer resetFlags(rootCmd)

	require.NoError(t, genCmd.ParseFlags([]string{"--workers", "8", "--strict-sleep", "--tag", "gen", "--dry-run"}))
	flags := flagOverrides(genCmd)

	assert.Equal(t, map[string]interface{}{
		"workers":      8,
		"strict-sleep": true,
		"tag":          "gen",
	}, flags)
}
