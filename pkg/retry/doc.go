// Package retry is the executor runtime that code generated by backon delegates to.
//
// There are four executors, one per way a function can be retried:
//   - Blocking runs func() (T, error) on the calling goroutine
//   - Suspending runs func(context.Context) (T, error) and honours cancellation
//   - BlockingWithContext and SuspendingWithContext additionally thread an owned
//     value C through every attempt, so the operation never reaches back into the
//     caller's scope
//
// Each executor is configured through a chain:
//
//	value, err := retry.Blocking(fetch, retry.NewExponentialBuilder()).
//		When(retry.Retryable).
//		Notify(retry.LogNotify(logger.GetLogger())).
//		Call()
//
// After a failed attempt the policy consults, in order, the when predicate, the
// backoff, the adjust hook (suspending executors only) and the notify hook, then
// sleeps. A backoff that runs out stops retrying and the last result is returned
// unchanged. Errors wrapped with backoff.Permanent from github.com/cenkalti/backoff/v5
// stop retrying immediately.
//
// Backoff strategies:
//   - ExponentialBuilder (the default): 1s doubling up to 60s, 10% jitter, 3 retries
//   - LinearBuilder and ConstantBuilder
//   - FromBackOff wraps any cenkalti/backoff/v5 strategy
//
// Cancellation: suspending executors check the context before every attempt and
// the default sleeper, Wait, returns as soon as the context is done. A retry
// cancelled while waiting fails with an error matching ErrCancelled, the context
// cause and the last operation error.
package retry
