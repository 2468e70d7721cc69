package expand

import (
	"fmt"
	"go/token"

	"github.com/bxb100/backon/pkg/compat"
	"github.com/bxb100/backon/pkg/options"
	"github.com/bxb100/backon/pkg/plan"
	"github.com/bxb100/backon/pkg/signature"
	"github.com/bxb100/backon/pkg/synth"
)

// DefaultQualifier is the name generated code uses for the runtime package when
// nothing in the file claims it
const DefaultQualifier = "retry"

// Directive is the raw option text of one //backon:retry comment
type Directive struct {
	Args string
	// Pos locates the first byte of Args
	Pos token.Position
}

// Options carries the per-run settings an expansion depends on
type Options struct {
	// Qualifier is the name the runtime package is imported under
	Qualifier string
	// SleepPolicy decides which variants need an explicit sleep option
	SleepPolicy plan.SleepPolicy
}

// DefaultOptions returns the options of a run without configuration
func DefaultOptions() Options {
	return Options{Qualifier: DefaultQualifier, SleepPolicy: plan.DefaultSleepPolicy()}
}

// Expansion is the outcome of expanding one annotated function
type Expansion struct {
	Signature *signature.Signature
	Config    *options.Config
	Plan      plan.Plan
	Function  *synth.GeneratedFunction
}

// Expand runs the engine over one function: parse the options, check them
// against the signature, resolve the plan and synthesize the body. The first
// failing stage decides the diagnostic.
func Expand(sig *signature.Signature, d Directive, opts Options) (*Expansion, error) {
	cfg, err := options.Parse(d.Args, d.Pos)
	if err != nil {
		return nil, err
	}

	if err := compat.Check(sig, cfg, opts.SleepPolicy); err != nil {
		return nil, err
	}

	p := plan.Resolve(sig, cfg)

	qualifier := opts.Qualifier
	if qualifier == "" {
		qualifier = DefaultQualifier
	}
	fn, err := synth.Synthesize(sig, cfg, p, qualifier)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize %s: %w", sig.Name, err)
	}

	return &Expansion{Signature: sig, Config: cfg, Plan: p, Function: fn}, nil
}

// Summary is the serialisable description of an expansion printed by check
type Summary struct {
	File       string   `json:"file" yaml:"file"`
	Line       int      `json:"line" yaml:"line"`
	Function   string   `json:"function" yaml:"function"`
	Receiver   string   `json:"receiver,omitempty" yaml:"receiver,omitempty"`
	Suspending bool     `json:"suspending" yaml:"suspending"`
	Variant    string   `json:"variant" yaml:"variant"`
	Capture    string   `json:"capture" yaml:"capture"`
	Backoff    string   `json:"backoff" yaml:"backoff"`
	Hooks      []string `json:"hooks,omitempty" yaml:"hooks,omitempty"`
}

// Summary describes the expansion; runtime references are rendered with qualifier
func (e *Expansion) Summary(qualifier string) Summary {
	sig := e.Signature
	s := Summary{
		File:       sig.Pos.Filename,
		Line:       sig.Pos.Line,
		Function:   QualifiedName(sig),
		Suspending: sig.IsSuspending,
		Variant:    e.Plan.Variant.String(),
		Capture:    e.Plan.Capture.String(),
		Backoff:    e.Config.Backoff.Expr(qualifier),
	}
	if sig.Receiver.Kind != signature.ReceiverNone {
		s.Receiver = sig.Receiver.Kind.String()
	}

	hook := func(name string, r *options.Ref) {
		if r != nil {
			s.Hooks = append(s.Hooks, name+"="+r.Expr(qualifier))
		}
	}
	hook(options.OptionWhen, e.Config.When)
	hook(options.OptionNotify, e.Config.Notify)
	hook(options.OptionAdjust, e.Config.Adjust)
	hook(options.OptionSleep, e.Config.Sleep)
	if e.Config.Context {
		s.Hooks = append(s.Hooks, options.OptionContext+"=true")
	}
	return s
}

// QualifiedName renders sig the way method values are written: Name, (T).Name or
// (*T).Name
func QualifiedName(sig *signature.Signature) string {
	switch sig.Receiver.Kind {
	case signature.ReceiverNone:
		return sig.Name
	case signature.ReceiverByValue:
		return "(" + sig.Receiver.Type + ")." + sig.Name
	default:
		return "(*" + sig.Receiver.Type + ")." + sig.Name
	}
}
