// Package lock provides the per-auction exclusion scope. Every read-decide-write
// sequence touching an auction's state or winning bid runs while holding the
// auction's lock; locks for different auctions never contend.
package lock

import (
	"context"
	"fmt"
	"time"

	"auction-engine/internal/biddingerrors"
)

// Release gives the lock back. It is safe to call more than once.
type Release func()

// Locker acquires the exclusion scope for a key.
// Acquire waits at most until ctx is done and then fails with biddingerrors.ErrConflict.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// AcquireWithin bounds the wait for key's lock by timeout
func AcquireWithin(ctx context.Context, l Locker, key string, timeout time.Duration) (Release, error) {
	if timeout <= 0 {
		return l.Acquire(ctx, key)
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return l.Acquire(waitCtx, key)
}

func conflict(key string, cause error) error {
	return fmt.Errorf("lock %s: %w (%v)", key, biddingerrors.ErrConflict, cause)
}

// Chain acquires every locker in order and releases them in reverse
type Chain []Locker

func (c Chain) Acquire(ctx context.Context, key string) (Release, error) {
	releases := make([]Release, 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, l := range c {
		r, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, r)
	}
	return once(releaseAll), nil
}
