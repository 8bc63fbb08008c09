package lock

import (
	"context"
	"errors"
	"time"

	"auction-engine/internal/biddingerrors"

	"github.com/cenkalti/backoff/v4"
)

// RetryConflicts runs op again with exponential backoff while it fails with
// biddingerrors.ErrConflict, at most retries more times. Any other error stops at once.
func RetryConflicts(ctx context.Context, retries int, op func() error) error {
	return retryOn(ctx, retries, biddingerrors.ErrConflict, op)
}

// RetryStorage is RetryConflicts for idempotent reads failing with biddingerrors.ErrStorage
func RetryStorage(ctx context.Context, retries int, op func() error) error {
	return retryOn(ctx, retries, biddingerrors.ErrStorage, op)
}

func retryOn(ctx context.Context, retries int, transient error, op func() error) error {
	if retries < 0 {
		retries = 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := op()
		if err == nil || errors.Is(err, transient) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))
}
