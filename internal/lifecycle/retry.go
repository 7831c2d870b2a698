package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
)

const (
	retryBase = 25 * time.Millisecond
	retryCap  = 500 * time.Millisecond
)

// RetryOnConflict runs fn up to attempts times, backing off exponentially
// between tries. Only assets.ErrConflict is retried; any other error, and
// InvalidState in particular, is returned at once.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts <= 1 {
		return fn(ctx)
	}

	b := retry.NewExponential(retryBase)
	b = retry.WithCappedDuration(retryCap, b)
	b = retry.WithMaxRetries(uint64(attempts-1), b)

	var last error
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if assets.IsRetryable(err) {
			last = err
			return retry.RetryableError(err)
		}
		return err
	})
	// Cancellation while backing off reports the conflict that caused the wait.
	if last != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return last
	}
	return err
}
