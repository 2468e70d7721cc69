package signature

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/bxb100/backon/pkg/errors"
)

func parseFunc(t *testing.T, src, name string) (Source, *ast.FuncDecl) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "fixture.go", src, parser.ParseComments)
	require.NoError(t, err)
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == name {
			return Source{Fset: fset, File: file, Src: []byte(src)}, fn
		}
	}
	t.Fatalf("function %s not found", name)
	return Source{}, nil
}

func build(t *testing.T, src, name string) *Signature {
	t.Helper()
	s, fn := parseFunc(t, src, name)
	sig, err := Build(s, fn)
	require.NoError(t, err)
	return sig
}

func TestBuildFreeFunction(t *testing.T) {
	src := `package p

func Fetch(url string, n int) (string, error) {
	return url, nil
}
`
	sig := build(t, src, "Fetch")

	assert.Equal(t, "Fetch", sig.Name)
	assert.False(t, sig.IsSuspending)
	assert.Equal(t, ReceiverNone, sig.Receiver.Kind)
	require.Len(t, sig.Parameters, 2)
	assert.Equal(t, "url", sig.Parameters[0].Name)
	assert.Equal(t, "string", sig.Parameters[0].Type)
	assert.True(t, sig.Parameters[0].IsSimpleIdentifier)
	assert.Equal(t, "n", sig.Parameters[1].Name)
	assert.Equal(t, "int", sig.Parameters[1].Type)
	assert.Equal(t, "string", sig.Results.Value)
	assert.False(t, sig.Results.ErrorOnly())
	assert.Equal(t, "{\n\treturn url, nil\n}", sig.Body)
	assert.Equal(t, 3, sig.Pos.Line)
}

func TestBuildGroupedParameters(t *testing.T) {
	src := `package p

func Sum(a, b int, rest ...int) error { return nil }
`
	sig := build(t, src, "Sum")

	require.Len(t, sig.Parameters, 3)
	assert.Equal(t, "a", sig.Parameters[0].Name)
	assert.Equal(t, "b", sig.Parameters[1].Name)
	assert.Equal(t, "int", sig.Parameters[1].Type)
	assert.True(t, sig.Parameters[2].Variadic)
	assert.Equal(t, "...int", sig.Parameters[2].Type)
	assert.Equal(t, "[]int", sig.Parameters[2].CaptureType())
	assert.True(t, sig.Results.ErrorOnly())
}

func TestBuildSuspending(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		suspending bool
	}{
		{
			name: "plain import",
			src: `package p
import "context"
func F(ctx context.Context, id string) error { return nil }
`,
			suspending: true,
		},
		{
			name: "renamed import",
			src: `package p
import stdctx "context"
func F(c stdctx.Context) error { return nil }
`,
			suspending: true,
		},
		{
			name: "dot import",
			src: `package p
import . "context"
func F(c Context) error { return nil }
`,
			suspending: true,
		},
		{
			name: "context not first",
			src: `package p
import "context"
func F(id string, ctx context.Context) error { return nil }
`,
			suspending: false,
		},
		{
			name: "unrelated package named context",
			src: `package p
import context "example.com/context"
func F(ctx context.Context) error { return nil }
`,
			suspending: false,
		},
		{
			name: "no import",
			src: `package p
func F(ctx Context) error { return nil }
`,
			suspending: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := build(t, tt.src, "F")
			assert.Equal(t, tt.suspending, sig.IsSuspending)
		})
	}
}

func TestContextParamAndCaptured(t *testing.T) {
	src := `package p
import "context"
func F(ctx context.Context, id string, n int) error { return nil }
func G(id string) error { return nil }
`
	sig := build(t, src, "F")
	ctx, ok := sig.ContextParam()
	require.True(t, ok)
	assert.Equal(t, "ctx", ctx.Name)
	captured := sig.Captured()
	require.Len(t, captured, 2)
	assert.Equal(t, "id", captured[0].Name)

	plain := build(t, src, "G")
	_, ok = plain.ContextParam()
	assert.False(t, ok)
	assert.Len(t, plain.Captured(), 1)
}

func TestBuildReceivers(t *testing.T) {
	src := `package p

import "sync/atomic"

type C struct {
	n     int
	hits  atomic.Int64
	items []int
	m     map[string]int
}

func (c C) Value() error { return nil }

func (c *C) Read() (int, error) {
	c.hits.Add(1)
	return c.n, nil
}

func (c *C) Assign() error {
	c.n = 1
	return nil
}

func (c *C) Incr() error {
	c.n++
	return nil
}

func (c *C) Index() error {
	c.items[0] = 2
	return nil
}

func (c *C) Address() error {
	p := &c.n
	_ = p
	return nil
}

func (c *C) Replace() error {
	*c = C{}
	return nil
}

func (c *C) Shadow() error {
	for c := 0; c < 3; c++ {
		_ = c
	}
	return nil
}

func (c *C) Rebind(items []string) error {
	for _, it := range items {
		c := it
		c = c + "!"
		_ = c
	}
	return nil
}

func (c *C) ShadowedThenWritten() error {
	{
		c := 0
		c++
	}
	c.n = 2
	return nil
}

func (c *C) ClosureWrite() error {
	func() { c.n = 3 }()
	return nil
}

func (c *C) MapWrite() error {
	c.m["k"] = 1
	return nil
}

func (*C) Unnamed() error { return nil }
`
	tests := []struct {
		fn   string
		kind ReceiverKind
	}{
		{"Value", ReceiverByValue},
		{"Read", ReceiverImmutableBorrow},
		{"Assign", ReceiverMutableBorrow},
		{"Incr", ReceiverMutableBorrow},
		{"Index", ReceiverMutableBorrow},
		{"Address", ReceiverMutableBorrow},
		{"Replace", ReceiverMutableBorrow},
		{"Shadow", ReceiverImmutableBorrow},
		{"Rebind", ReceiverImmutableBorrow},
		{"ShadowedThenWritten", ReceiverMutableBorrow},
		{"ClosureWrite", ReceiverMutableBorrow},
		{"MapWrite", ReceiverMutableBorrow},
		{"Unnamed", ReceiverImmutableBorrow},
	}

	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			sig := build(t, src, tt.fn)
			assert.Equal(t, tt.kind, sig.Receiver.Kind)
			assert.Equal(t, "C", sig.Receiver.Type)
		})
	}
}

func TestBuildGenericReceiver(t *testing.T) {
	src := `package p
type Box[T any] struct{ v T }
func (b *Box[T]) Get() (T, error) { return b.v, nil }
`
	sig := build(t, src, "Get")
	assert.Equal(t, "Box[T]", sig.Receiver.Type)
	assert.Equal(t, "b", sig.Receiver.Name)
	assert.Equal(t, "T", sig.Results.Value)
}

func TestBuildNonIdentifierParameters(t *testing.T) {
	src := `package p
func F(_ string, n int) error { return nil }
func G(string, int) error { return nil }
`
	sig := build(t, src, "F")
	require.Len(t, sig.Parameters, 2)
	assert.False(t, sig.Parameters[0].IsSimpleIdentifier)
	assert.Equal(t, "_", sig.Parameters[0].Name)
	assert.True(t, sig.Parameters[1].IsSimpleIdentifier)

	unnamed := build(t, src, "G")
	require.Len(t, unnamed.Parameters, 2)
	assert.False(t, unnamed.Parameters[0].IsSimpleIdentifier)
	assert.Empty(t, unnamed.Parameters[0].Name)
	assert.Equal(t, "string", unnamed.Parameters[0].Type)
}

func TestBuildResults(t *testing.T) {
	src := `package p
func Named() (n int, err error) { return 0, nil }
func Pair() ([]byte, error) { return nil, nil }
`
	named := build(t, src, "Named")
	assert.True(t, named.Results.Named)
	assert.Equal(t, "int", named.Results.Value)
	assert.Equal(t, "(n int, err error)", named.Results.Text)

	pair := build(t, src, "Pair")
	assert.False(t, pair.Results.Named)
	assert.Equal(t, "[]byte", pair.Results.Value)
}

func TestBuildShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code errs.Code
	}{
		{"no results", "package p\nfunc F() {}\n", errs.CodeResultShape},
		{"no error", "package p\nfunc F() int { return 0 }\n", errs.CodeResultShape},
		{"error first", "package p\nfunc F() (error, int) { return nil, 0 }\n", errs.CodeResultShape},
		{"three results", "package p\nfunc F() (int, int, error) { return 0, 0, nil }\n", errs.CodeResultShape},
		{"named triple", "package p\nfunc F() (a, b int, err error) { return }\n", errs.CodeResultShape},
		{"no body", "package p\nfunc F() error\n", errs.CodeMissingBody},
		{"reserved parameter", "package p\nfunc F(backonCtx int) error { return nil }\n", errs.CodeReservedName},
		{"reserved receiver", "package p\ntype T struct{}\nfunc (backon T) F() error { return nil }\n", errs.CodeReservedName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fn := parseFunc(t, tt.src, "F")
			_, err := Build(s, fn)
			require.Error(t, err)
			assert.True(t, errs.HasCode(err, tt.code), "got %v", err)
			diags := errs.Diagnostics(err)
			require.Len(t, diags, 1)
			assert.Equal(t, errs.ErrorTypeShape, diags[0].Type)
		})
	}
}

func TestReceiverKindString(t *testing.T) {
	assert.Equal(t, "none", ReceiverNone.String())
	assert.Equal(t, "by-value", ReceiverByValue.String())
	assert.Equal(t, "immutable-borrow", ReceiverImmutableBorrow.String())
	assert.Equal(t, "mutable-borrow", ReceiverMutableBorrow.String())
	assert.Equal(t, "ReceiverKind(9)", ReceiverKind(9).String())
}
