package expand

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/bxb100/backon/pkg/errors"
	"github.com/bxb100/backon/pkg/plan"
	"github.com/bxb100/backon/pkg/signature"
)

// buildSig parses src and builds the signature of its first function
func buildSig(t *testing.T, src string) *signature.Signature {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "t.go", src, parser.ParseComments)
	require.NoError(t, err)
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			sig, err := signature.Build(signature.Source{Fset: fset, File: file, Src: []byte(src)}, fn)
			require.NoError(t, err)
			return sig
		}
	}
	t.Fatal("no function in source")
	return nil
}

const fetchSrc = `package p

import "context"

type Client struct{ n int }

func (c *Client) Fetch(ctx context.Context, url string) (string, error) { return url, nil }
`

func TestExpandResolvesPlan(t *testing.T) {
	tests := []struct {
		name string
		src  string
		args string
		want plan.Plan
	}{
		{
			name: "suspending method",
			src:  fetchSrc,
			args: "when=isTemporary",
			want: plan.Plan{Variant: plan.VariantSuspending, Capture: plan.CaptureByReference},
		},
		{
			name: "blocking function",
			src:  "package p\n\nfunc Store(key string) error { return nil }\n",
			args: "",
			want: plan.Plan{Variant: plan.VariantBlocking, Capture: plan.CaptureByReference},
		},
		{
			name: "blocking with context",
			src:  "package p\n\ntype C struct{}\n\nfunc (c C) Sum(a int) (int, error) { return a, nil }\n",
			args: "context=true",
			want: plan.Plan{Variant: plan.VariantBlockingWithContext, Capture: plan.CaptureByMove},
		},
		{
			name: "suspending with context",
			src:  "package p\n\nimport \"context\"\n\nfunc Echo(ctx context.Context, s string) (string, error) { return s, nil }\n",
			args: "context=true, adjust=clamp",
			want: plan.Plan{Variant: plan.VariantSuspendingWithContext, Capture: plan.CaptureByMove},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := Expand(buildSig(t, tt.src), Directive{Args: tt.args}, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.want, exp.Plan)
			assert.Equal(t, tt.want, exp.Function.Plan)
			assert.NotEmpty(t, exp.Function.Body)
		})
	}
}

func TestExpandStageOrder(t *testing.T) {
	src := "package p\n\ntype C struct{ n int }\n\nfunc (c *C) Bump(_ int) error { c.n++; return nil }\n"

	// option errors come first
	_, err := Expand(buildSig(t, src), Directive{Args: "retries=3"}, DefaultOptions())
	assert.True(t, errs.HasCode(err, errs.CodeUnknownOption), err)

	// then compatibility, in rule order: the receiver beats the blank parameter
	_, err = Expand(buildSig(t, src), Directive{Args: ""}, DefaultOptions())
	assert.True(t, errs.HasCode(err, errs.CodeReceiverContext), err)
}

func TestExpandSleepPolicy(t *testing.T) {
	sig := buildSig(t, "package p\n\nfunc Store(key string) error { return nil }\n")

	_, err := Expand(sig, Directive{}, DefaultOptions())
	require.NoError(t, err)

	strict := Options{Qualifier: "retry", SleepPolicy: plan.StrictSleepPolicy()}
	_, err = Expand(sig, Directive{}, strict)
	assert.True(t, errs.HasCode(err, errs.CodeMissingSleep), err)

	_, err = Expand(sig, Directive{Args: "sleep=fakeSleep"}, strict)
	assert.NoError(t, err)
}

func TestExpandDiagnosticPosition(t *testing.T) {
	pos := token.Position{Filename: "t.go", Line: 6, Column: 16, Offset: 40}

	_, err := Expand(buildSig(t, fetchSrc), Directive{Args: "when=a, when=b", Pos: pos}, DefaultOptions())

	diags := errs.Diagnostics(err)
	require.Len(t, diags, 1)
	assert.Equal(t, errs.CodeDuplicateOption, diags[0].Code)
	assert.Equal(t, 6, diags[0].Pos.Line)
	assert.Equal(t, 16+8, diags[0].Pos.Column)
}

func TestExpandDefaultQualifier(t *testing.T) {
	exp, err := Expand(buildSig(t, fetchSrc), Directive{}, Options{SleepPolicy: plan.DefaultSleepPolicy()})
	require.NoError(t, err)
	assert.Contains(t, exp.Function.Body, "retry.NewExponentialBuilder()")
}

func TestSummary(t *testing.T) {
	exp, err := Expand(buildSig(t, fetchSrc), Directive{Args: "when=isTemporary notify=log.Retry"}, DefaultOptions())
	require.NoError(t, err)

	s := exp.Summary("backonretry")
	assert.Equal(t, Summary{
		File:       "t.go",
		Line:       7,
		Function:   "(*Client).Fetch",
		Receiver:   "immutable-borrow",
		Suspending: true,
		Variant:    "Suspending",
		Capture:    "ByReference",
		Backoff:    "backonretry.NewExponentialBuilder",
		Hooks:      []string{"when=isTemporary", "notify=log.Retry"},
	}, s)
}

func TestQualifiedName(t *testing.T) {
	tests := []struct {
		recv signature.Receiver
		want string
	}{
		{signature.Receiver{}, "F"},
		{signature.Receiver{Kind: signature.ReceiverByValue, Type: "T"}, "(T).F"},
		{signature.Receiver{Kind: signature.ReceiverImmutableBorrow, Type: "Box[K]"}, "(*Box[K]).F"},
		{signature.Receiver{Kind: signature.ReceiverMutableBorrow, Type: "T"}, "(*T).F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QualifiedName(&signature.Signature{Name: "F", Receiver: tt.recv}))
	}
}
