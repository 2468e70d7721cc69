package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff is a lazy sequence of delays, consumed one per failed attempt.
// Next reports false once the sequence is exhausted.
type Backoff interface {
	Next() (time.Duration, bool)
}

// BackoffBuilder creates a fresh Backoff for every retried call
type BackoffBuilder interface {
	Build() Backoff
}

// BackoffFunc adapts a plain function to the Backoff interface
type BackoffFunc func() (time.Duration, bool)

// Next calls f
func (f BackoffFunc) Next() (time.Duration, bool) {
	return f()
}

// BuilderFunc adapts a plain function to the BackoffBuilder interface
type BuilderFunc func() Backoff

// Build calls f
func (f BuilderFunc) Build() Backoff {
	return f()
}

// ExponentialBuilder builds exponential backoffs with jitter
type ExponentialBuilder struct {
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps every delay, jitter included
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness to avoid thundering herd (0.0 to 1.0)
	JitterFactor float64
	// MaxTimes is the number of retries; 0 means unlimited
	MaxTimes int
}

// NewExponentialBuilder returns a builder with sensible defaults: 1s doubling up
// to 60s with 10% jitter, at most 3 retries
func NewExponentialBuilder() *ExponentialBuilder {
	return &ExponentialBuilder{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
		MaxTimes:     3,
	}
}

// WithBaseDelay returns a copy with the given base delay
func (b *ExponentialBuilder) WithBaseDelay(d time.Duration) *ExponentialBuilder {
	c := *b
	c.BaseDelay = d
	return &c
}

// WithMaxDelay returns a copy with the given delay cap
func (b *ExponentialBuilder) WithMaxDelay(d time.Duration) *ExponentialBuilder {
	c := *b
	c.MaxDelay = d
	return &c
}

// WithMultiplier returns a copy with the given growth factor
func (b *ExponentialBuilder) WithMultiplier(m float64) *ExponentialBuilder {
	c := *b
	c.Multiplier = m
	return &c
}

// WithJitter returns a copy with the given jitter factor
func (b *ExponentialBuilder) WithJitter(f float64) *ExponentialBuilder {
	c := *b
	c.JitterFactor = f
	return &c
}

// WithMaxTimes returns a copy allowing n retries
func (b *ExponentialBuilder) WithMaxTimes(n int) *ExponentialBuilder {
	c := *b
	c.MaxTimes = n
	return &c
}

// Build implements BackoffBuilder
func (b *ExponentialBuilder) Build() Backoff {
	cfg := *b
	return &counted{max: cfg.MaxTimes, delay: cfg.delay}
}

// delay calculates the delay before retry number attempt
func (b *ExponentialBuilder) delay(attempt int) time.Duration {
	delay := float64(b.BaseDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	return jitter(math.Min(delay, float64(b.MaxDelay)), b.JitterFactor, b.MaxDelay)
}

// LinearBuilder builds backoffs growing by a fixed increment
type LinearBuilder struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Increment    time.Duration
	JitterFactor float64
	MaxTimes     int
}

// NewLinearBuilder returns a linear builder: 1s growing by 1s up to 30s with 10%
// jitter, at most 3 retries
func NewLinearBuilder() *LinearBuilder {
	return &LinearBuilder{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Increment:    1 * time.Second,
		JitterFactor: 0.1,
		MaxTimes:     3,
	}
}

// WithIncrement returns a copy growing by d per retry
func (b *LinearBuilder) WithIncrement(d time.Duration) *LinearBuilder {
	c := *b
	c.Increment = d
	return &c
}

// WithMaxTimes returns a copy allowing n retries
func (b *LinearBuilder) WithMaxTimes(n int) *LinearBuilder {
	c := *b
	c.MaxTimes = n
	return &c
}

// Build implements BackoffBuilder
func (b *LinearBuilder) Build() Backoff {
	cfg := *b
	return &counted{max: cfg.MaxTimes, delay: func(attempt int) time.Duration {
		delay := float64(cfg.BaseDelay + cfg.Increment*time.Duration(attempt-1))
		return jitter(math.Min(delay, float64(cfg.MaxDelay)), cfg.JitterFactor, cfg.MaxDelay)
	}}
}

// ConstantBuilder builds backoffs with a fixed delay
type ConstantBuilder struct {
	Delay    time.Duration
	MaxTimes int
}

// NewConstantBuilder returns a builder waiting 1s between at most 3 retries
func NewConstantBuilder() *ConstantBuilder {
	return &ConstantBuilder{Delay: 1 * time.Second, MaxTimes: 3}
}

// WithDelay returns a copy waiting d between retries
func (b *ConstantBuilder) WithDelay(d time.Duration) *ConstantBuilder {
	c := *b
	c.Delay = d
	return &c
}

// WithMaxTimes returns a copy allowing n retries
func (b *ConstantBuilder) WithMaxTimes(n int) *ConstantBuilder {
	c := *b
	c.MaxTimes = n
	return &c
}

// Build implements BackoffBuilder
func (b *ConstantBuilder) Build() Backoff {
	d := b.Delay
	return &counted{max: b.MaxTimes, delay: func(int) time.Duration { return d }}
}

// FromBackOff adapts a github.com/cenkalti/backoff/v5 strategy. factory is called
// once per retried call and the result is reset before use. backoff.Stop ends the
// sequence, as does reaching maxTimes when it is positive.
func FromBackOff(factory func() backoff.BackOff, maxTimes int) BackoffBuilder {
	return BuilderFunc(func() Backoff {
		b := factory()
		b.Reset()
		return &counted{max: maxTimes, next: func() (time.Duration, bool) {
			d := b.NextBackOff()
			if d == backoff.Stop {
				return 0, false
			}
			return d, true
		}}
	})
}

// counted drives a delay function and enforces the retry limit
type counted struct {
	max     int
	attempt int
	delay   func(attempt int) time.Duration
	next    func() (time.Duration, bool)
}

func (c *counted) Next() (time.Duration, bool) {
	if c.max > 0 && c.attempt >= c.max {
		return 0, false
	}
	c.attempt++
	if c.next != nil {
		return c.next()
	}
	return c.delay(c.attempt), true
}

// jitter spreads delay by up to factor in both directions and keeps the result
// within [0, limit]
func jitter(delay, factor float64, limit time.Duration) time.Duration {
	if factor > 0 {
		j := delay * factor
		delay += (rand.Float64() * 2 * j) - j
	}
	delay = math.Max(0, math.Min(delay, float64(limit)))
	return time.Duration(delay)
}

// Wait waits for the specified duration or until context is cancelled. It is the
// default sleeper of suspending executors.
func Wait(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
