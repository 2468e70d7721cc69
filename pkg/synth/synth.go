// Package synth emits the replacement body of an annotated function.
//
// Output is Go source text; the caller splices it over the original body and
// formats the file. The original body is moved into the operation closure
// byte for byte.
package synth

import (
	"fmt"
	"strings"

	"github.com/bxb100/backon/pkg/options"
	"github.com/bxb100/backon/pkg/plan"
	"github.com/bxb100/backon/pkg/signature"
)

// Identifiers introduced by generated code. They all carry the reserved prefix.
const (
	builderVar = signature.ReservedPrefix + "Builder"
	tupleVar   = signature.ReservedPrefix + "Ctx"
	valueVar   = signature.ReservedPrefix + "Value"
	errVar     = signature.ReservedPrefix + "Err"
)

// GeneratedFunction is the replacement for one annotated function. The external
// signature is unchanged, so only the body is carried.
type GeneratedFunction struct {
	Name string
	Plan plan.Plan
	// Body is the new body, braces included
	Body string
}

// Synthesize builds the body delegating sig to the executor selected by p.
// qualifier is the name the runtime package is imported under.
func Synthesize(sig *signature.Signature, cfg *options.Config, p plan.Plan, qualifier string) (*GeneratedFunction, error) {
	if p.Capture == plan.CaptureNone {
		return nil, fmt.Errorf("no capture strategy resolved for %s", sig.Name)
	}
	if (p.Capture == plan.CaptureByMove) != p.Variant.CarriesContext() {
		return nil, fmt.Errorf("capture %s does not match executor %s for %s", p.Capture, p.Variant, sig.Name)
	}
	if p.Variant.IsSuspending() && !sig.IsSuspending {
		return nil, fmt.Errorf("executor %s needs a context parameter on %s", p.Variant, sig.Name)
	}

	e := &emitter{sig: sig, cfg: cfg, plan: p, q: qualifier}
	if p.Variant.IsSuspending() {
		ctx, _ := sig.ContextParam()
		e.ctxName, e.ctxType = ctx.Name, ctx.Type
	}
	if p.Capture == plan.CaptureByMove {
		e.fields = tupleFields(sig)
	}
	e.emit()

	return &GeneratedFunction{Name: sig.Name, Plan: p, Body: e.b.String()}, nil
}

type field struct {
	name, typ string
}

// tupleFields lists what a ByMove operation owns: a named value receiver, then
// every parameter except the context
func tupleFields(sig *signature.Signature) []field {
	var fields []field
	if sig.Receiver.Kind == signature.ReceiverByValue && sig.Receiver.Name != "" {
		fields = append(fields, field{sig.Receiver.Name, sig.Receiver.Type})
	}
	for _, p := range sig.Captured() {
		fields = append(fields, field{p.Name, p.CaptureType()})
	}
	return fields
}

type emitter struct {
	sig     *signature.Signature
	cfg     *options.Config
	plan    plan.Plan
	q       string
	ctxName string
	ctxType string
	fields  []field
	b       strings.Builder
}

func (e *emitter) printf(format string, args ...any) {
	fmt.Fprintf(&e.b, format, args...)
}

func (e *emitter) emit() {
	errorOnly := e.sig.Results.ErrorOnly()

	e.printf("{\n\t%s := %s()\n\t", builderVar, e.cfg.Backoff.Expr(e.q))

	switch {
	case e.plan.Capture == plan.CaptureByMove && errorOnly:
		e.printf("_, _, %s := ", errVar)
	case e.plan.Capture == plan.CaptureByMove:
		e.printf("_, %s, %s := ", valueVar, errVar)
	case errorOnly:
		e.printf("_, %s := ", errVar)
	default:
		e.printf("return ")
	}

	e.printf("%s.%s(", e.q, e.plan.Variant.EntryPoint())
	if e.plan.Capture == plan.CaptureByMove {
		e.tupleOperation(errorOnly)
	} else {
		e.operation(errorOnly)
	}
	e.printf(", %s)", builderVar)
	e.chain()

	switch {
	case e.plan.Capture == plan.CaptureByMove && !errorOnly:
		e.printf("\n\treturn %s, %s", valueVar, errVar)
	case errorOnly:
		e.printf("\n\treturn %s", errVar)
	}
	e.printf("\n}")
}

// operation writes the closure of a ByReference plan
func (e *emitter) operation(errorOnly bool) {
	params := ""
	if e.plan.Variant.IsSuspending() {
		params = e.ctxName + " " + e.ctxType
	}
	if !errorOnly {
		e.printf("func(%s) %s %s", params, e.sig.Results.Text, e.sig.Body)
		return
	}
	e.printf("func(%s) (struct{}, error) {\n\t\treturn struct{}{}, func() %s %s()\n\t}", params, e.sig.Results.Text, e.sig.Body)
}

// tupleOperation writes the closure of a ByMove plan. The closure rebinds the
// original names from the tuple and hands the tuple back after every attempt.
func (e *emitter) tupleOperation(errorOnly bool) {
	tuple := e.tupleType()
	value := e.sig.Results.Value
	if errorOnly {
		value = "struct{}"
	}

	e.printf("func(")
	if e.plan.Variant.IsSuspending() {
		e.printf("%s %s, ", e.ctxName, e.ctxType)
	}
	e.printf("%s %s) (%s, %s, error) {\n", tupleVar, tuple, tuple, value)

	if len(e.fields) > 0 {
		names := make([]string, len(e.fields))
		loads := make([]string, len(e.fields))
		for i, f := range e.fields {
			names[i] = f.name
			loads[i] = tupleVar + "." + f.name
		}
		e.printf("\t\t%s := %s\n", strings.Join(names, ", "), strings.Join(loads, ", "))
	}

	if errorOnly {
		e.printf("\t\t%s := func() %s %s()\n", errVar, e.sig.Results.Text, e.sig.Body)
		e.printf("\t\treturn %s, struct{}{}, %s\n\t}", e.tupleValue(), errVar)
		return
	}
	e.printf("\t\t%s, %s := func() %s %s()\n", valueVar, errVar, e.sig.Results.Text, e.sig.Body)
	e.printf("\t\treturn %s, %s, %s\n\t}", e.tupleValue(), valueVar, errVar)
}

// chain attaches hooks in executor order and ends with the terminal call
func (e *emitter) chain() {
	link := func(method, arg string) {
		e.printf(".\n\t\t%s(%s)", method, arg)
	}
	if r := e.cfg.When; r != nil {
		link("When", r.Expr(e.q))
	}
	if r := e.cfg.Notify; r != nil {
		link("Notify", r.Expr(e.q))
	}
	if r := e.cfg.Adjust; r != nil && e.plan.Variant.IsSuspending() {
		link("Adjust", r.Expr(e.q))
	}
	if r := e.cfg.Sleep; r != nil {
		link("Sleep", r.Expr(e.q))
	}
	if e.plan.Variant.CarriesContext() {
		link("Context", e.tupleValue())
	}
	if e.plan.Variant.IsSuspending() {
		link("Do", e.ctxName)
	} else {
		link("Call", "")
	}
}

func (e *emitter) tupleType() string {
	if len(e.fields) == 0 {
		return "struct{}"
	}
	decls := make([]string, len(e.fields))
	for i, f := range e.fields {
		decls[i] = f.name + " " + f.typ
	}
	return "struct{ " + strings.Join(decls, "; ") + " }"
}

func (e *emitter) tupleValue() string {
	elems := make([]string, len(e.fields))
	for i, f := range e.fields {
		elems[i] = f.name + ": " + f.name
	}
	return e.tupleType() + "{" + strings.Join(elems, ", ") + "}"
}
