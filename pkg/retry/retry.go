package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// AdjustFunc rewrites the delay chosen by the backoff before it is used. ok is
// false when the backoff is exhausted; returning false stops retrying.
type AdjustFunc func(err error, delay time.Duration, ok bool) (time.Duration, bool)

// ErrCancelled marks a suspending retry that was cancelled while waiting
var ErrCancelled = errors.New("retry cancelled")

// policy decides, after each failed attempt, whether and how long to wait
type policy struct {
	backoff Backoff
	when    func(error) bool
	notify  func(error, time.Duration)
	adjust  AdjustFunc
}

// hooks are the options shared by every executor
type hooks struct {
	builder BackoffBuilder
	when    func(error) bool
	notify  func(error, time.Duration)
	adjust  AdjustFunc
}

func (h *hooks) policy() *policy {
	builder := h.builder
	if builder == nil {
		builder = NewExponentialBuilder()
	}
	return &policy{backoff: builder.Build(), when: h.when, notify: h.notify, adjust: h.adjust}
}

// next consults, in order, the retry predicate, the backoff, the adjust hook and
// the notify hook. The returned error is what the caller reports when retrying stops.
func (p *policy) next(err error) (time.Duration, bool, error) {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return 0, false, permanent.Unwrap()
	}
	if p.when != nil && !p.when(err) {
		return 0, false, err
	}
	delay, ok := p.backoff.Next()
	if p.adjust != nil {
		delay, ok = p.adjust(err, delay, ok)
	}
	if !ok {
		return 0, false, err
	}
	if p.notify != nil {
		p.notify(err, delay)
	}
	return delay, true, err
}

// cancelled reports a retry aborted by its context while waiting to retry
func cancelled(cause, last error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %w (last error: %w)", ErrCancelled, cause, last)
}

// BlockingRetry runs an operation on the calling goroutine until it succeeds or
// the policy stops. Delays block the goroutine.
type BlockingRetry[T any] struct {
	hooks
	op    func() (T, error)
	sleep func(time.Duration)
}

// Blocking prepares a retried call of op
func Blocking[T any](op func() (T, error), builder BackoffBuilder) *BlockingRetry[T] {
	return &BlockingRetry[T]{hooks: hooks{builder: builder}, op: op}
}

// When sets the predicate deciding whether an error is retried
func (r *BlockingRetry[T]) When(fn func(error) bool) *BlockingRetry[T] {
	r.when = fn
	return r
}

// Notify sets the callback invoked before each delay
func (r *BlockingRetry[T]) Notify(fn func(error, time.Duration)) *BlockingRetry[T] {
	r.notify = fn
	return r
}

// Sleep replaces time.Sleep as the delay primitive
func (r *BlockingRetry[T]) Sleep(fn func(time.Duration)) *BlockingRetry[T] {
	r.sleep = fn
	return r
}

// Call runs the operation and returns its last result
func (r *BlockingRetry[T]) Call() (T, error) {
	p := r.policy()
	sleep := r.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	for {
		value, err := r.op()
		if err == nil {
			return value, nil
		}
		delay, ok, err := p.next(err)
		if !ok {
			return value, err
		}
		sleep(delay)
	}
}

// SuspendingRetry runs an operation that honours a context. The context is checked
// before every attempt and interrupts pending delays.
type SuspendingRetry[T any] struct {
	hooks
	op    func(context.Context) (T, error)
	sleep func(context.Context, time.Duration) error
}

// Suspending prepares a retried call of op
func Suspending[T any](op func(context.Context) (T, error), builder BackoffBuilder) *SuspendingRetry[T] {
	return &SuspendingRetry[T]{hooks: hooks{builder: builder}, op: op}
}

// When sets the predicate deciding whether an error is retried
func (r *SuspendingRetry[T]) When(fn func(error) bool) *SuspendingRetry[T] {
	r.when = fn
	return r
}

// Notify sets the callback invoked before each delay
func (r *SuspendingRetry[T]) Notify(fn func(error, time.Duration)) *SuspendingRetry[T] {
	r.notify = fn
	return r
}

// Adjust sets the hook that may rewrite each delay
func (r *SuspendingRetry[T]) Adjust(fn AdjustFunc) *SuspendingRetry[T] {
	r.adjust = fn
	return r
}

// Sleep replaces Wait as the delay primitive
func (r *SuspendingRetry[T]) Sleep(fn func(context.Context, time.Duration) error) *SuspendingRetry[T] {
	r.sleep = fn
	return r
}

// Do runs the operation with ctx and returns its last result
func (r *SuspendingRetry[T]) Do(ctx context.Context) (T, error) {
	_, value, err := suspend(ctx, r.hooks, r.sleep, struct{}{},
		func(ctx context.Context, c struct{}) (struct{}, T, error) {
			value, err := r.op(ctx)
			return c, value, err
		})
	return value, err
}

// BlockingWithContextRetry is a BlockingRetry whose operation owns its inputs.
// The operation receives the context value and hands back the one to use for the
// next attempt.
type BlockingWithContextRetry[C, T any] struct {
	hooks
	op    func(C) (C, T, error)
	ctx   C
	sleep func(time.Duration)
}

// BlockingWithContext prepares a retried call of op
func BlockingWithContext[C, T any](op func(C) (C, T, error), builder BackoffBuilder) *BlockingWithContextRetry[C, T] {
	return &BlockingWithContextRetry[C, T]{hooks: hooks{builder: builder}, op: op}
}

// When sets the predicate deciding whether an error is retried
func (r *BlockingWithContextRetry[C, T]) When(fn func(error) bool) *BlockingWithContextRetry[C, T] {
	r.when = fn
	return r
}

// Notify sets the callback invoked before each delay
func (r *BlockingWithContextRetry[C, T]) Notify(fn func(error, time.Duration)) *BlockingWithContextRetry[C, T] {
	r.notify = fn
	return r
}

// Sleep replaces time.Sleep as the delay primitive
func (r *BlockingWithContextRetry[C, T]) Sleep(fn func(time.Duration)) *BlockingWithContextRetry[C, T] {
	r.sleep = fn
	return r
}

// Context sets the value handed to the first attempt
func (r *BlockingWithContextRetry[C, T]) Context(c C) *BlockingWithContextRetry[C, T] {
	r.ctx = c
	return r
}

// Call runs the operation and returns the final context value and result
func (r *BlockingWithContextRetry[C, T]) Call() (C, T, error) {
	p := r.policy()
	sleep := r.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	c := r.ctx
	for {
		next, value, err := r.op(c)
		c = next
		if err == nil {
			return c, value, nil
		}
		delay, ok, err := p.next(err)
		if !ok {
			return c, value, err
		}
		sleep(delay)
	}
}

// SuspendingWithContextRetry is a SuspendingRetry whose operation owns its inputs
type SuspendingWithContextRetry[C, T any] struct {
	hooks
	op    func(context.Context, C) (C, T, error)
	ctx   C
	sleep func(context.Context, time.Duration) error
}

// SuspendingWithContext prepares a retried call of op
func SuspendingWithContext[C, T any](op func(context.Context, C) (C, T, error), builder BackoffBuilder) *SuspendingWithContextRetry[C, T] {
	return &SuspendingWithContextRetry[C, T]{hooks: hooks{builder: builder}, op: op}
}

// When sets the predicate deciding whether an error is retried
func (r *SuspendingWithContextRetry[C, T]) When(fn func(error) bool) *SuspendingWithContextRetry[C, T] {
	r.when = fn
	return r
}

// Notify sets the callback invoked before each delay
func (r *SuspendingWithContextRetry[C, T]) Notify(fn func(error, time.Duration)) *SuspendingWithContextRetry[C, T] {
	r.notify = fn
	return r
}

// Adjust sets the hook that may rewrite each delay
func (r *SuspendingWithContextRetry[C, T]) Adjust(fn AdjustFunc) *SuspendingWithContextRetry[C, T] {
	r.adjust = fn
	return r
}

// Sleep replaces Wait as the delay primitive
func (r *SuspendingWithContextRetry[C, T]) Sleep(fn func(context.Context, time.Duration) error) *SuspendingWithContextRetry[C, T] {
	r.sleep = fn
	return r
}

// Context sets the value handed to the first attempt
func (r *SuspendingWithContextRetry[C, T]) Context(c C) *SuspendingWithContextRetry[C, T] {
	r.ctx = c
	return r
}

// Do runs the operation with ctx and returns the final context value and result
func (r *SuspendingWithContextRetry[C, T]) Do(ctx context.Context) (C, T, error) {
	return suspend(ctx, r.hooks, r.sleep, r.ctx, r.op)
}

func suspend[C, T any](
	ctx context.Context,
	h hooks,
	sleep func(context.Context, time.Duration) error,
	c C,
	op func(context.Context, C) (C, T, error),
) (C, T, error) {
	p := h.policy()
	if sleep == nil {
		sleep = Wait
	}

	var zero T
	var last error
	for {
		if ctx.Err() != nil {
			if last == nil {
				return c, zero, context.Cause(ctx)
			}
			return c, zero, cancelled(context.Cause(ctx), last)
		}

		next, value, err := op(ctx, c)
		c = next
		if err == nil {
			return c, value, nil
		}
		delay, ok, err := p.next(err)
		if !ok {
			return c, value, err
		}
		last = err
		if serr := sleep(ctx, delay); serr != nil {
			return c, value, cancelled(serr, last)
		}
	}
}
