// Package sweeper closes auctions whose end date has passed.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/events"
	"auction-engine/internal/lifecycle"
	"auction-engine/internal/lock"
	model "auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"

	"golang.org/x/sync/errgroup"
)

// Sweeper is the closing pass. Each auction is closed under the same lock
// the arbiter takes, so a bid either commits before the close or is rejected.
type Sweeper struct {
	repo      repository.AuctionDB
	locker    lock.Locker
	publisher events.Publisher

	parallelism int
	lockWait    time.Duration
	retries     int
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithParallelism caps how many auctions are closed at once
func WithParallelism(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

func WithLockWait(d time.Duration) Option {
	return func(s *Sweeper) { s.lockWait = d }
}

func WithConflictRetries(n int) Option {
	return func(s *Sweeper) { s.retries = n }
}

func New(repo repository.AuctionDB, locker lock.Locker, publisher events.Publisher, opts ...Option) *Sweeper {
	s := &Sweeper{
		repo:        repo,
		locker:      locker,
		publisher:   publisher,
		parallelism: 4,
		lockWait:    2 * time.Second,
		retries:     3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// closed is one auction the sweep moved to a terminal state
type closed struct {
	auction model.Auction
	winner  *model.Bid
}

// Sweep opens Scheduled auctions whose start has arrived and closes every Open
// auction whose end date is at or before now. It returns the ids it closed,
// sorted. A failure on one auction never stops the others; all failures are
// joined into the returned error.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	var (
		mu     sync.Mutex
		ids    []string
		failed []error
	)
	fail := func(auctionID, stage string, err error) {
		utils.Error("sweeper: failed to "+stage+" auction", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		mu.Lock()
		failed = append(failed, fmt.Errorf("sweeper: %s auction %s: %w", stage, auctionID, err))
		mu.Unlock()
	}

	startable, err := s.repo.FindStartable(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("sweeper: failed to find startable auctions: %w", err)
	}
	for _, a := range startable {
		if err := s.open(ctx, a.AuctionID, now); err != nil {
			fail(a.AuctionID, "open", err)
		}
	}

	due, err := s.repo.FindDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("sweeper: failed to find due auctions: %w", err)
	}
	if len(due) == 0 && len(failed) == 0 {
		utils.Debug("sweeper: nothing to close", map[string]any{"now": now})
		return nil, nil
	}

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for _, a := range due {
		auctionID := a.AuctionID
		g.Go(func() error {
			res, ok, err := s.close(ctx, auctionID, now)
			if err != nil {
				fail(auctionID, "close", err)
				return nil
			}
			if !ok {
				return nil
			}

			utils.Info("sweeper: auction closed", map[string]any{
				"auction_id": auctionID,
				"state":      res.auction.State,
				"winner_id":  res.auction.WinnerID,
			})
			events.PublishAll(ctx, s.publisher, events.NewClosedEvent(res.auction, res.winner, now))

			mu.Lock()
			ids = append(ids, auctionID)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(ids)
	return ids, errors.Join(failed...)
}

// open moves one Scheduled auction to Open under its lock
func (s *Sweeper) open(ctx context.Context, auctionID string, now time.Time) error {
	return s.withAuction(ctx, auctionID, func(tx repository.Tx) error {
		a, err := tx.GetAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		if !lifecycle.Activate(&a, now) {
			return nil
		}
		return tx.SaveAuction(ctx, a)
	})
}

// close settles one auction. ok is false when another sweep or a delete got there first.
func (s *Sweeper) close(ctx context.Context, auctionID string, now time.Time) (res closed, ok bool, err error) {
	err = s.withAuction(ctx, auctionID, func(tx repository.Tx) error {
		ok = false
		a, err := tx.GetAuction(ctx, auctionID)
		if errors.Is(err, biddingerrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if a.State != model.StateOpen || a.EndDate.After(now) {
			return nil
		}

		bids, err := tx.FindBidsByAuction(ctx, auctionID)
		if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
			return err
		}

		settlement, err := lifecycle.Settle(a, bids, now)
		if err != nil {
			return err
		}
		if err := tx.SaveAuction(ctx, settlement.Auction); err != nil {
			return err
		}
		if len(settlement.Relabeled) > 0 {
			if err := tx.SaveBids(ctx, settlement.Relabeled...); err != nil {
				return err
			}
		}

		res = closed{auction: settlement.Auction, winner: settlement.Winner}
		ok = true
		return nil
	})
	if err != nil {
		return closed{}, false, err
	}
	return res, ok, nil
}

// withAuction runs fn in a transaction while holding the auction's lock
func (s *Sweeper) withAuction(ctx context.Context, auctionID string, fn func(tx repository.Tx) error) error {
	return lock.RetryConflicts(ctx, s.retries, func() error {
		release, err := lock.AcquireWithin(ctx, s.locker, auctionID, s.lockWait)
		if err != nil {
			return err
		}
		defer release()
		return s.repo.RunInTx(ctx, auctionID, fn)
	})
}
