package plan

import "strings"

// SleepPolicy decides which variants need an explicit sleep option
type SleepPolicy struct {
	required map[Variant]bool
}

// DefaultSleepPolicy requires sleep for no variant. The runtime falls back to
// time.Sleep for blocking variants and retry.Wait for suspending ones.
func DefaultSleepPolicy() SleepPolicy {
	return SleepPolicy{}
}

// StrictSleepPolicy requires sleep for every variant
func StrictSleepPolicy() SleepPolicy {
	return SleepPolicy{required: map[Variant]bool{
		VariantSuspending:            true,
		VariantBlocking:              true,
		VariantSuspendingWithContext: true,
		VariantBlockingWithContext:   true,
	}}
}

// SleepPolicyFor returns the strict policy when strict is set
func SleepPolicyFor(strict bool) SleepPolicy {
	if strict {
		return StrictSleepPolicy()
	}
	return DefaultSleepPolicy()
}

// RequiresSleep reports whether v needs a delay primitive from the directive
func (p SleepPolicy) RequiresSleep(v Variant) bool {
	return p.required[v]
}

// String lists the variants that require sleep, e.g. "Blocking,Suspending"
func (p SleepPolicy) String() string {
	var names []string
	for _, v := range []Variant{VariantSuspending, VariantBlocking, VariantSuspendingWithContext, VariantBlockingWithContext} {
		if p.required[v] {
			names = append(names, v.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
