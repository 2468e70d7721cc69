// Package compat cross-checks a function's signature against its directive
// options before any code is generated.
package compat

import (
	errs "github.com/bxb100/backon/pkg/errors"
	"github.com/bxb100/backon/pkg/options"
	"github.com/bxb100/backon/pkg/plan"
	"github.com/bxb100/backon/pkg/signature"
)

// Check applies the compatibility rules in order and returns the first violation.
// A nil result means the function can be planned and synthesized.
func Check(sig *signature.Signature, cfg *options.Config, sleep plan.SleepPolicy) error {
	kind := sig.Receiver.Kind

	if cfg.Context && (kind == signature.ReceiverImmutableBorrow || kind == signature.ReceiverMutableBorrow) {
		pos := sig.Pos
		if cfg.ContextPos.IsValid() {
			pos = cfg.ContextPos
		}
		return errs.Compatibility(errs.CodeContextBorrow, pos,
			"context=true cannot be used with pointer receiver %s of %s: the receiver would be shared across retried attempts; use a value receiver or a free function",
			receiverName(sig), sig.Name)
	}

	if !cfg.Context && (kind == signature.ReceiverMutableBorrow || kind == signature.ReceiverByValue) {
		reason := "value receivers"
		if kind == signature.ReceiverMutableBorrow {
			reason = "receivers written by the method"
		}
		return errs.Compatibility(errs.CodeReceiverContext, sig.Pos,
			"%s of %s require context=true; write a manual retry loop otherwise", reason, sig.Name)
	}

	if cfg.Adjust != nil && !sig.IsSuspending {
		return errs.Compatibility(errs.CodeAdjustBlocking, cfg.Adjust.Pos,
			"adjust is only supported for functions taking a context.Context first; %s is blocking", sig.Name)
	}

	for _, p := range sig.Parameters {
		if !p.IsSimpleIdentifier {
			return errs.Shape(errs.CodeNonIdentParam, p.Pos,
				"parameters of %s must bind to identifiers; name the %s parameter", sig.Name, p.Type)
		}
	}

	if cfg.Sleep == nil {
		variant := plan.VariantFor(sig.IsSuspending, cfg.Context)
		if sleep.RequiresSleep(variant) {
			return errs.Compatibility(errs.CodeMissingSleep, sig.Pos,
				"%s requires a sleep option for the %s executor", sig.Name, variant)
		}
	}

	return nil
}

func receiverName(sig *signature.Signature) string {
	if sig.Receiver.Name != "" {
		return sig.Receiver.Name
	}
	return "*" + sig.Receiver.Type
}
