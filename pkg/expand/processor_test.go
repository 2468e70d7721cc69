package expand

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bxb100/backon/pkg/config"
	errs "github.com/bxb100/backon/pkg/errors"
	"github.com/bxb100/backon/pkg/logger"
	"github.com/bxb100/backon/pkg/plan"
	"github.com/bxb100/backon/pkg/signature"
)

func newTestProcessor(mutate ...func(*config.GeneratorConfig)) *Processor {
	cfg := config.DefaultConfig().Generator
	for _, m := range mutate {
		m(&cfg)
	}
	return NewProcessor(cfg, logger.NewNopLogger())
}

const storeTemplate = `//go:build backon

package store

import "errors"

var errBusy = errors.New("busy")

// Save writes one record.
//
//backon:retry when=isBusy
func Save(key string) error {
	if key == "" {
		return errBusy // retried
	}
	return nil
}

func isBusy(err error) bool { return errors.Is(err, errBusy) }
`

func process(t *testing.T, p *Processor, src string) *FileResult {
	t.Helper()
	result, err := p.ProcessFile("store.go", []byte(src))
	require.NoError(t, err)
	require.NotNil(t, result.Code)

	_, err = parser.ParseFile(token.NewFileSet(), result.Output, result.Code, parser.ParseComments)
	require.NoError(t, err, string(result.Code))
	return result
}

func TestProcessFile(t *testing.T) {
	result := process(t, newTestProcessor(), storeTemplate)
	code := string(result.Code)

	assert.Equal(t, "store.go", result.Source)
	assert.Equal(t, "store_backon.go", result.Output)
	assert.Equal(t, "retry", result.Qualifier)
	require.Len(t, result.Expansions, 1)

	assert.True(t, strings.HasPrefix(code, Header+"\n\n//go:build !backon\n"), code)
	assert.Contains(t, code, `"github.com/bxb100/backon/pkg/retry"`)
	assert.Contains(t, code, "retry.Blocking(func() (struct{}, error) {")
	assert.Contains(t, code, "When(isBusy).")
	assert.Contains(t, code, "return errBusy // retried")
	assert.Contains(t, code, "// Save writes one record.\nfunc Save(key string) error {")
	assert.Contains(t, code, "func isBusy(err error) bool { return errors.Is(err, errBusy) }")
	assert.NotContains(t, code, DirectivePrefix)
	assert.NotContains(t, code, "//go:build backon")
}

func TestProcessFileSummaries(t *testing.T) {
	result := process(t, newTestProcessor(), storeTemplate)

	summaries := result.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "Save", summaries[0].Function)
	assert.Equal(t, "store.go", summaries[0].File)
	assert.Equal(t, "Blocking", summaries[0].Variant)
	assert.Equal(t, "retry.NewExponentialBuilder", summaries[0].Backoff)
	assert.Equal(t, []string{"when=isBusy"}, summaries[0].Hooks)
}

func TestProcessFileQualifier(t *testing.T) {
	tests := []struct {
		name       string
		imports    string
		extra      string
		want       string
		wantImport string
	}{
		{
			name:       "free name",
			want:       "retry",
			wantImport: `"github.com/bxb100/backon/pkg/retry"`,
		},
		{
			name:       "runtime already imported",
			imports:    `import r "github.com/bxb100/backon/pkg/retry"`,
			extra:      "var _ = r.Retryable",
			want:       "r",
			wantImport: `r "github.com/bxb100/backon/pkg/retry"`,
		},
		{
			name:       "identifier in use",
			extra:      "var retry = 3",
			want:       "backonretry",
			wantImport: `backonretry "github.com/bxb100/backon/pkg/retry"`,
		},
		{
			name:       "fallback also in use",
			extra:      "var retry = 3\n\nfunc backonretry() {}",
			want:       "backonretry2",
			wantImport: `backonretry2 "github.com/bxb100/backon/pkg/retry"`,
		},
		{
			name:       "other package with the same name",
			imports:    `import "example.com/other/retry"`,
			extra:      "var _ = retry.Other",
			want:       "backonretry",
			wantImport: `backonretry "github.com/bxb100/backon/pkg/retry"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "//go:build backon\n\npackage p\n\n" + tt.imports + "\n\n" + tt.extra + "\n\n" +
				"//backon:retry\nfunc Do(n int) error { return nil }\n"

			result := process(t, newTestProcessor(), src)

			assert.Equal(t, tt.want, result.Qualifier)
			assert.Contains(t, string(result.Code), tt.wantImport)
			assert.Contains(t, string(result.Code), tt.want+".Blocking(")
			assert.Equal(t, 1, strings.Count(string(result.Code), "github.com/bxb100/backon/pkg/retry"))
		})
	}
}

func TestProcessFileBuildConstraint(t *testing.T) {
	body := "\n\npackage p\n\n//backon:retry\nfunc Do(n int) error { return nil }\n"

	tests := []struct {
		name       string
		constraint string
		want       string
	}{
		{"single tag", "//go:build backon", "//go:build !backon"},
		{"combined", "//go:build backon && linux", "//go:build !backon && linux"},
		{"negated other", "//go:build !windows && backon", "//go:build !windows && !backon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := process(t, newTestProcessor(), tt.constraint+body)
			assert.Contains(t, string(result.Code), tt.want+"\n")
		})
	}

	t.Run("custom tag", func(t *testing.T) {
		p := newTestProcessor(func(c *config.GeneratorConfig) {
			c.BuildTag = "retrygen"
			c.OutputSuffix = "_gen.go"
		})
		result := process(t, p, "//go:build retrygen"+body)
		assert.Contains(t, string(result.Code), "//go:build !retrygen\n")
		assert.Equal(t, "store_gen.go", result.Output)
	})

	t.Run("legacy plus build line dropped", func(t *testing.T) {
		result := process(t, newTestProcessor(), "//go:build backon\n// +build backon"+body)
		assert.NotContains(t, string(result.Code), "+build")
	})
}

func TestProcessFileRejectsNonTemplates(t *testing.T) {
	tests := map[string]string{
		"no constraint":    "package p\n\n//backon:retry\nfunc Do() error { return nil }\n",
		"optional tag":     "//go:build backon || linux\n\npackage p\n\n//backon:retry\nfunc Do() error { return nil }\n",
		"other tag":        "//go:build tools\n\npackage p\n\n//backon:retry\nfunc Do() error { return nil }\n",
		"after the clause": "package p\n\n//go:build backon\n\n//backon:retry\nfunc Do() error { return nil }\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			result, err := newTestProcessor().ProcessFile("p.go", []byte(src))
			assert.Nil(t, result)
			assert.True(t, errs.HasCode(err, errs.CodeMissingBuildTag), err)
		})
	}
}

func TestProcessFileWithoutDirectives(t *testing.T) {
	for _, src := range []string{
		"package p\n\nfunc Do() error { return nil }\n",
		"//go:build backon\n\npackage p\n\n// retry:not a directive\nfunc Do() error { return nil }\n",
		"//go:build backon\n\npackage p\n\n//backon:retrying\nfunc Do() error { return nil }\n",
	} {
		result, err := newTestProcessor().ProcessFile("p.go", []byte(src))
		require.NoError(t, err)
		assert.Nil(t, result.Code)
		assert.Empty(t, result.Expansions)
	}
}

func TestProcessFileCollectsAllDiagnostics(t *testing.T) {
	src := `//go:build backon

package p

import "context"

type T struct{ n int }

//backon:retry context=maybe
func A() error { return nil }

//backon:retry
func B(int) error { return nil }

//backon:retry adjust=clamp
func C(n int) error { return nil }

//backon:retry context=true
func (t *T) D(ctx context.Context) error { return nil }

//backon:retry
func E() {}

//backon:retry
func Fine() error { return nil }
`
	result, err := newTestProcessor().ProcessFile("p.go", []byte(src))
	require.Error(t, err)
	assert.Nil(t, result)

	var codes []errs.Code
	for _, d := range errs.Diagnostics(err) {
		codes = append(codes, d.Code)
	}
	assert.Equal(t, []errs.Code{
		errs.CodeOptionKind,
		errs.CodeNonIdentParam,
		errs.CodeAdjustBlocking,
		errs.CodeContextBorrow,
		errs.CodeResultShape,
	}, codes)
	assert.Contains(t, err.Error(), "p.go:9:")
}

func TestProcessFileDirectivePlacement(t *testing.T) {
	src := `//go:build backon

package p

//backon:retry
//backon:retry when=x
func Twice() error { return nil }

//backon:retry
type T struct{}

func Inside() error {
	//backon:retry
	return nil
}
`
	_, err := newTestProcessor().ProcessFile("p.go", []byte(src))

	diags := errs.Diagnostics(err)
	require.Len(t, diags, 3)
	assert.Equal(t, errs.CodeDuplicateDirective, diags[0].Code)
	assert.Equal(t, 6, diags[0].Pos.Line)
	assert.Equal(t, errs.CodeMisplacedDirective, diags[1].Code)
	assert.Equal(t, errs.CodeMisplacedDirective, diags[2].Code)
}

func TestProcessFileBlockCommentDirective(t *testing.T) {
	src := `//go:build backon

package p

/*backon:retry when=isBusy*/
func Block() error { return nil }

/* backon:retry */
func Spaced() error { return nil }

/* backon:retrying is not a directive */
func Prose() error { return nil }
`
	_, err := newTestProcessor().ProcessFile("p.go", []byte(src))

	diags := errs.Diagnostics(err)
	require.Len(t, diags, 2)
	for i, line := range []int{5, 8} {
		assert.Equal(t, errs.CodeMisplacedDirective, diags[i].Code)
		assert.Equal(t, line, diags[i].Pos.Line)
		assert.Contains(t, diags[i].Message, "line comment")
	}
}

func TestProcessFileDefaultBackoff(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		qualifier string
	}{
		{
			name:      "package name",
			qualifier: "retry",
		},
		{
			name:      "renamed import",
			header:    "import backonretry \"github.com/bxb100/backon/pkg/retry\"\n\nvar retry = 3\n",
			qualifier: "backonretry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			template := func(args string) string {
				return "//go:build backon\n\npackage p\n\nimport \"context\"\n\n" + tt.header + `
type Client struct{ n int }

//backon:retry ` + args + `
func (c *Client) Get(ctx context.Context, key string) (int, error) {
	return c.n + len(key), nil
}
`
			}

			implicit := process(t, newTestProcessor(), template("when=ok"))
			explicit := process(t, newTestProcessor(), template("backoff="+tt.qualifier+".NewExponentialBuilder, when=ok"))

			assert.Equal(t, tt.qualifier, implicit.Qualifier)
			assert.Equal(t, string(implicit.Code), string(explicit.Code))
			require.Len(t, implicit.Expansions, 1)
			require.Len(t, explicit.Expansions, 1)
			assert.Equal(t, implicit.Expansions[0].Plan, explicit.Expansions[0].Plan)
			assert.Equal(t, implicit.Summaries(), explicit.Summaries())
		})
	}
}

func TestProcessFileShadowedReceiver(t *testing.T) {
	src := `//go:build backon

package p

type Client struct{ prefix string }

//backon:retry
func (c *Client) Count(items []string) (int, error) {
	n := 0
	for _, it := range items {
		c := it
		c = c + "!"
		n += len(c)
	}
	return n + len(c.prefix), nil
}
`
	result := process(t, newTestProcessor(), src)

	require.Len(t, result.Expansions, 1)
	exp := result.Expansions[0]
	assert.Equal(t, signature.ReceiverImmutableBorrow, exp.Signature.Receiver.Kind)
	assert.Equal(t, plan.Plan{Variant: plan.VariantBlocking, Capture: plan.CaptureByReference}, exp.Plan)

	_, err := newTestProcessor().ProcessFile("p.go", []byte(strings.Replace(src, "//backon:retry", "//backon:retry context=true", 1)))
	assert.True(t, errs.HasCode(err, errs.CodeContextBorrow), err)
}

func TestProcessFileSyntaxError(t *testing.T) {
	_, err := newTestProcessor().ProcessFile("broken.go", []byte("package p\n\nfunc ("))
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeSyntax))
	assert.Contains(t, err.Error(), "broken.go:3:")
}

func TestProcessFileStrictSleep(t *testing.T) {
	p := newTestProcessor(func(c *config.GeneratorConfig) { c.StrictSleep = true })

	_, err := p.ProcessFile("store.go", []byte(storeTemplate))
	assert.True(t, errs.HasCode(err, errs.CodeMissingSleep), err)

	withSleep := strings.Replace(storeTemplate, "when=isBusy", "when=isBusy, sleep=time.Sleep", 1)
	process(t, p, withSleep)
}

func TestProcessFileFixImports(t *testing.T) {
	src := "//go:build backon\n\npackage p\n\n//backon:retry\nfunc Up(s string) (string, error) { return strings.ToUpper(s), nil }\n"

	_, err := newTestProcessor().ProcessFile("p.go", []byte(src))
	require.NoError(t, err)

	p := newTestProcessor(func(c *config.GeneratorConfig) { c.FixImports = true })
	result := process(t, p, src)
	assert.Contains(t, string(result.Code), `"strings"`)
}

func TestProcessFileGeneric(t *testing.T) {
	src := `//go:build backon

package p

type Box[T any] struct{ v T }

//backon:retry
func (b *Box[T]) Get() (T, error) { return b.v, nil }

//backon:retry context=true
func First[T any](xs []T) (T, error) {
	var zero T
	if len(xs) == 0 {
		return zero, nil
	}
	return xs[0], nil
}
`
	result := process(t, newTestProcessor(), src)
	code := string(result.Code)
	assert.Contains(t, code, "func (b *Box[T]) Get() (T, error) {")
	assert.Contains(t, code, "func First[T any](xs []T) (T, error) {")
	assert.Contains(t, code, "xs []T")
}

func TestIsTemplate(t *testing.T) {
	assert.True(t, IsTemplate([]byte("//go:build backon\n\npackage p\n"), "backon"))
	assert.True(t, IsTemplate([]byte("// Copyright\n\n//go:build backon && !js\n\npackage p\n"), "backon"))
	assert.False(t, IsTemplate([]byte("//go:build backon\n\npackage p\n"), "other"))
	assert.False(t, IsTemplate([]byte("//go:build !backon\n\npackage p\n"), "backon"))
	assert.False(t, IsTemplate([]byte("package p\n"), "backon"))
	assert.False(t, IsTemplate([]byte("not go"), "backon"))
}

func TestProcessExampleTemplate(t *testing.T) {
	dir := filepath.Join("..", "..", "examples", "client")
	src, err := os.ReadFile(filepath.Join(dir, "client.go"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(dir, "client_backon.go"))
	require.NoError(t, err)

	result, err := newTestProcessor().ProcessFile(filepath.Join(dir, "client.go"), src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "client_backon.go"), result.Output)
	assert.Len(t, result.Expansions, 5)
	assert.Equal(t, tokens(t, want), tokens(t, result.Code))
	assert.True(t, strings.HasPrefix(string(result.Code), Header))
}
