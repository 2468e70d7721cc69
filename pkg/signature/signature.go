package signature

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	errs "github.com/bxb100/backon/pkg/errors"
)

// ReservedPrefix is the identifier prefix used by synthesized code. Annotated
// functions may not bind parameters or receivers with it.
const ReservedPrefix = "backon"

// ReceiverKind classifies how a method holds its receiver
type ReceiverKind int

const (
	// ReceiverNone marks a free function
	ReceiverNone ReceiverKind = iota
	// ReceiverByValue marks a value receiver; the method owns a copy
	ReceiverByValue
	// ReceiverImmutableBorrow marks a pointer receiver the body never writes through
	ReceiverImmutableBorrow
	// ReceiverMutableBorrow marks a pointer receiver the body writes through
	ReceiverMutableBorrow
)

func (k ReceiverKind) String() string {
	switch k {
	case ReceiverNone:
		return "none"
	case ReceiverByValue:
		return "by-value"
	case ReceiverImmutableBorrow:
		return "immutable-borrow"
	case ReceiverMutableBorrow:
		return "mutable-borrow"
	default:
		return "ReceiverKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Receiver describes the receiver of a method
type Receiver struct {
	Kind ReceiverKind
	// Name is empty when the receiver is unnamed or blank
	Name string
	// Type is the receiver type as written, without the leading '*'
	Type string
}

// Parameter is one binding of the parameter list
type Parameter struct {
	// Name is the bound identifier; empty for unnamed parameters, "_" for blank ones
	Name string
	// Type is the declared type as written, including a leading "..." when variadic
	Type     string
	Variadic bool
	// IsSimpleIdentifier is false when the parameter cannot be referenced by name
	IsSimpleIdentifier bool
	Pos                token.Position
}

// CaptureType is the type of the value the parameter holds inside the body
func (p Parameter) CaptureType() string {
	if p.Variadic {
		return "[]" + strings.TrimPrefix(p.Type, "...")
	}
	return p.Type
}

// Results describes the declared result list
type Results struct {
	// Text is the result list as written, parenthesised when it was
	Text string
	// Value is the type of the non-error result; empty for error-only functions
	Value string
	// Named reports whether results carry names
	Named bool
}

// ErrorOnly reports whether the function returns nothing but an error
func (r Results) ErrorOnly() bool {
	return r.Value == ""
}

// Signature is the normalized description of an annotated function
type Signature struct {
	Name         string
	IsSuspending bool
	Receiver     Receiver
	Parameters   []Parameter
	Results      Results
	// Body is the original body, braces included, exactly as it appears in the source
	Body string
	Pos  token.Position
}

// ContextParam returns the leading context.Context parameter of a suspending function
func (s *Signature) ContextParam() (Parameter, bool) {
	if !s.IsSuspending || len(s.Parameters) == 0 {
		return Parameter{}, false
	}
	return s.Parameters[0], true
}

// Captured returns the parameters an operation has to carry. The context
// parameter of a suspending function is supplied by the executor instead.
func (s *Signature) Captured() []Parameter {
	if s.IsSuspending && len(s.Parameters) > 0 {
		return s.Parameters[1:]
	}
	return s.Parameters
}

// Source gives the builder access to the text and positions of the parsed file
type Source struct {
	Fset *token.FileSet
	File *ast.File
	Src  []byte
}

func (s Source) text(n ast.Node) string {
	tf := s.Fset.File(n.Pos())
	if tf == nil {
		return ""
	}
	return string(s.Src[tf.Offset(n.Pos()):tf.Offset(n.End())])
}

func (s Source) position(p token.Pos) token.Position {
	return s.Fset.Position(p)
}

// Build derives the Signature of fn. Parameters that cannot be named are recorded,
// not rejected; the compatibility checker decides on them.
func Build(src Source, fn *ast.FuncDecl) (*Signature, error) {
	pos := src.position(fn.Name.Pos())
	if fn.Body == nil {
		return nil, errs.Shape(errs.CodeMissingBody, pos, "function %s has no body to retry", fn.Name.Name)
	}

	sig := &Signature{
		Name: fn.Name.Name,
		Body: src.text(fn.Body),
		Pos:  pos,
	}

	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		recv, err := buildReceiver(src, fn)
		if err != nil {
			return nil, err
		}
		sig.Receiver = recv
	}

	params, err := buildParameters(src, fn.Type.Params)
	if err != nil {
		return nil, err
	}
	sig.Parameters = params
	if len(params) > 0 && isContextType(src.File, fn.Type.Params.List[0].Type) {
		sig.IsSuspending = true
	}

	results, err := buildResults(src, fn)
	if err != nil {
		return nil, err
	}
	sig.Results = results

	return sig, nil
}

func buildReceiver(src Source, fn *ast.FuncDecl) (Receiver, error) {
	field := fn.Recv.List[0]
	recv := Receiver{}
	if len(field.Names) > 0 && field.Names[0].Name != "_" {
		recv.Name = field.Names[0].Name
		if strings.HasPrefix(recv.Name, ReservedPrefix) {
			return Receiver{}, errs.Shape(errs.CodeReservedName, src.position(field.Names[0].Pos()),
				"receiver %s uses the reserved prefix %q", recv.Name, ReservedPrefix)
		}
	}

	typ := field.Type
	if paren, ok := typ.(*ast.ParenExpr); ok {
		typ = paren.X
	}
	if star, ok := typ.(*ast.StarExpr); ok {
		recv.Type = src.text(star.X)
		recv.Kind = ReceiverImmutableBorrow
		if recv.Name != "" && MutatesReceiver(fn.Body, field.Names[0]) {
			recv.Kind = ReceiverMutableBorrow
		}
		return recv, nil
	}
	recv.Type = src.text(typ)
	recv.Kind = ReceiverByValue
	return recv, nil
}

func buildParameters(src Source, list *ast.FieldList) ([]Parameter, error) {
	if list == nil {
		return nil, nil
	}
	var params []Parameter
	for _, field := range list.List {
		typ := src.text(field.Type)
		_, variadic := field.Type.(*ast.Ellipsis)
		if len(field.Names) == 0 {
			params = append(params, Parameter{
				Type:     typ,
				Variadic: variadic,
				Pos:      src.position(field.Type.Pos()),
			})
			continue
		}
		for _, name := range field.Names {
			if strings.HasPrefix(name.Name, ReservedPrefix) {
				return nil, errs.Shape(errs.CodeReservedName, src.position(name.Pos()),
					"parameter %s uses the reserved prefix %q", name.Name, ReservedPrefix)
			}
			params = append(params, Parameter{
				Name:               name.Name,
				Type:               typ,
				Variadic:           variadic,
				IsSimpleIdentifier: name.Name != "_",
				Pos:                src.position(name.Pos()),
			})
		}
	}
	return params, nil
}

func buildResults(src Source, fn *ast.FuncDecl) (Results, error) {
	pos := src.position(fn.Name.Pos())
	list := fn.Type.Results
	if list == nil || len(list.List) == 0 {
		return Results{}, errs.Shape(errs.CodeResultShape, pos,
			"function %s must return error or (T, error)", fn.Name.Name)
	}

	var types []ast.Expr
	named := false
	for _, field := range list.List {
		n := len(field.Names)
		if n == 0 {
			n = 1
		} else {
			named = true
		}
		for i := 0; i < n; i++ {
			types = append(types, field.Type)
		}
	}
	if len(types) > 2 {
		return Results{}, errs.Shape(errs.CodeResultShape, pos,
			"function %s returns %d values; only error or (T, error) can be retried", fn.Name.Name, len(types))
	}
	if !isErrorType(types[len(types)-1]) {
		return Results{}, errs.Shape(errs.CodeResultShape, pos,
			"function %s must return error as its last result", fn.Name.Name)
	}

	res := Results{Text: src.text(list), Named: named}
	if len(types) == 2 {
		res.Value = src.text(types[0])
	}
	return res, nil
}

func isErrorType(expr ast.Expr) bool {
	ident, ok := expr.(*ast.Ident)
	return ok && ident.Name == "error"
}

// isContextType reports whether expr names context.Context under the file's
// import of the "context" package.
func isContextType(file *ast.File, expr ast.Expr) bool {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != "context" {
			continue
		}
		name := "context"
		if imp.Name != nil {
			name = imp.Name.Name
		}
		switch name {
		case "_":
			continue
		case ".":
			if ident, ok := expr.(*ast.Ident); ok && ident.Name == "Context" {
				return true
			}
		default:
			if sel, ok := expr.(*ast.SelectorExpr); ok {
				if x, ok := sel.X.(*ast.Ident); ok && x.Name == name && sel.Sel.Name == "Context" {
					return true
				}
			}
		}
	}
	return false
}

// String renders a compact description, used in debug logs
func (s *Signature) String() string {
	names := make([]string, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		names = append(names, p.Name)
	}
	return fmt.Sprintf("%s(%s) receiver=%s suspending=%t", s.Name, strings.Join(names, ", "), s.Receiver.Kind, s.IsSuspending)
}
