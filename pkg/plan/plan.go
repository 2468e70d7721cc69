package plan

import (
	"strconv"

	"github.com/bxb100/backon/pkg/options"
	"github.com/bxb100/backon/pkg/signature"
)

// Variant selects the executor entry point generated code delegates to
type Variant int

const (
	VariantSuspending Variant = iota
	VariantBlocking
	VariantSuspendingWithContext
	VariantBlockingWithContext
)

var variantNames = map[Variant]string{
	VariantSuspending:            "Suspending",
	VariantBlocking:              "Blocking",
	VariantSuspendingWithContext: "SuspendingWithContext",
	VariantBlockingWithContext:   "BlockingWithContext",
}

// EntryPoint is the name of the runtime function implementing the variant
func (v Variant) EntryPoint() string {
	return variantNames[v]
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return "Variant(" + strconv.Itoa(int(v)) + ")"
}

// IsSuspending reports whether the variant receives the caller's context
func (v Variant) IsSuspending() bool {
	return v == VariantSuspending || v == VariantSuspendingWithContext
}

// CarriesContext reports whether the operation receives a captured argument tuple
func (v Variant) CarriesContext() bool {
	return v == VariantSuspendingWithContext || v == VariantBlockingWithContext
}

// Capture describes how parameters reach the operation
type Capture int

const (
	// CaptureNone is the zero value; Resolve never produces it
	CaptureNone Capture = iota
	// CaptureByReference closes over the enclosing scope
	CaptureByReference
	// CaptureByMove copies parameters into a tuple the operation owns
	CaptureByMove
)

func (c Capture) String() string {
	switch c {
	case CaptureNone:
		return "None"
	case CaptureByReference:
		return "ByReference"
	case CaptureByMove:
		return "ByMove"
	default:
		return "Capture(" + strconv.Itoa(int(c)) + ")"
	}
}

// Plan is the synthesis decision for one annotated function
type Plan struct {
	Variant Variant
	Capture Capture
}

func (p Plan) String() string {
	return p.Variant.String() + "/" + p.Capture.String()
}

// VariantFor maps the two deciding inputs onto an executor variant
func VariantFor(suspending, withContext bool) Variant {
	switch {
	case suspending && withContext:
		return VariantSuspendingWithContext
	case suspending:
		return VariantSuspending
	case withContext:
		return VariantBlockingWithContext
	default:
		return VariantBlocking
	}
}

// Resolve derives the plan for a function that passed the compatibility check
func Resolve(sig *signature.Signature, cfg *options.Config) Plan {
	p := Plan{Variant: VariantFor(sig.IsSuspending, cfg.Context), Capture: CaptureByReference}
	if cfg.Context {
		p.Capture = CaptureByMove
	}
	return p
}
