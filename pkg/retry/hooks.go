package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/bxb100/backon/pkg/logger"
)

// Retryable is a ready-made when hook. Cancellation and deadline errors are
// never retried; everything else is.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Permanent marks err as not worth retrying. Executors stop at once and report
// the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsRetryableStatus checks if an HTTP status code is worth retrying
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

// LogNotify builds a notify hook that logs every retry at warn level
func LogNotify(log logger.Logger) func(error, time.Duration) {
	return func(err error, delay time.Duration) {
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"error":    err.Error(),
			"delay_ms": delay.Milliseconds(),
		})
	}
}

// CapDelay builds an adjust hook that never waits longer than max
func CapDelay(max time.Duration) AdjustFunc {
	return func(_ error, delay time.Duration, ok bool) (time.Duration, bool) {
		if ok && delay > max {
			delay = max
		}
		return delay, ok
	}
}
