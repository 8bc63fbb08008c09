package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/events"
	"auction-engine/internal/lifecycle"
	"auction-engine/internal/lock"
	model "auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"

	"github.com/shopspring/decimal"
)

const (
	defaultLockWait        = 2 * time.Second
	defaultConflictRetries = 3
)

// BiddingService is the bid arbiter. Every decision about an auction's
// winning bid happens inside that auction's lock and one storage transaction.
type BiddingService struct {
	repo      repository.AuctionDB
	locker    lock.Locker
	publisher events.Publisher

	now      func() time.Time
	lockWait time.Duration
	retries  int
}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *BiddingService) { s.now = now }
}

// WithLockWait bounds how long one attempt waits for the auction lock
func WithLockWait(d time.Duration) Option {
	return func(s *BiddingService) { s.lockWait = d }
}

// WithConflictRetries sets how many times a lock conflict is retried before it is surfaced
func WithConflictRetries(n int) Option {
	return func(s *BiddingService) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// NewBiddingService creates a new BiddingService instance.
// A nil publisher disables events.
func NewBiddingService(repo repository.AuctionDB, locker lock.Locker, publisher events.Publisher, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		lockWait:  defaultLockWait,
		retries:   defaultConflictRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// arbitration is what one committed PlaceBid changed
type arbitration struct {
	bid       model.Bid
	displaced *model.Bid
}

// PlaceBid validates the bid and stores it as Winning or Outbid.
// A Winning bid downgrades the previous winner to Outbid in the same write.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (model.Bid, error) {
	if err := validateBid(auctionID, bidderID, amount); err != nil {
		return model.Bid{}, err
	}

	exists, err := s.repo.UserExists(ctx, bidderID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to look up bidder %s: %w", bidderID, err)
	}
	if !exists {
		return model.Bid{}, fmt.Errorf("service: bidder %s: %w", bidderID, biddingerrors.ErrUserNotFound)
	}

	bidID := utils.GenerateID()
	var result arbitration
	err = lock.RetryConflicts(ctx, s.retries, func() error {
		r, err := s.arbitrate(ctx, bidID, auctionID, bidderID, amount)
		if errors.Is(err, biddingerrors.ErrConflict) {
			utils.Debug("service: auction busy, retrying bid", map[string]any{
				"auction_id": auctionID,
				"bid_id":     bidID,
			})
		}
		result = r
		return err
	})
	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to place bid on auction %s by user %s: %w", auctionID, bidderID, err)
	}

	s.publishArbitration(ctx, result)
	return result.bid, nil
}

// arbitrate runs one read-decide-write pass under the auction lock
func (s *BiddingService) arbitrate(ctx context.Context, bidID, auctionID, bidderID string, amount decimal.Decimal) (arbitration, error) {
	release, err := lock.AcquireWithin(ctx, s.locker, auctionID, s.lockWait)
	if err != nil {
		return arbitration{}, err
	}
	defer release()

	now := s.now()
	var result arbitration

	err = s.repo.RunInTx(ctx, auctionID, func(tx repository.Tx) error {
		auction, err := tx.GetAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		if lifecycle.Activate(&auction, now) {
			if err := tx.SaveAuction(ctx, auction); err != nil {
				return err
			}
		}
		if err := lifecycle.AcceptsBids(auction, now); err != nil {
			return err
		}
		if auction.OwnerID == bidderID {
			return fmt.Errorf("%w - user %s owns auction %s", biddingerrors.ErrSelfBid, bidderID, auctionID)
		}
		if !amount.GreaterThan(auction.StartPrice) {
			return fmt.Errorf("%w - start price is %s", biddingerrors.ErrInvalidAmount, auction.StartPrice)
		}

		bid := model.NewBid(bidID, auctionID, bidderID, amount, now)
		current, err := tx.FindWinningBid(ctx, auctionID)
		switch {
		case errors.Is(err, biddingerrors.ErrNoBids):
			bid = bid.WithStatus(model.BidWinning, now)
		case err != nil:
			return err
		case amount.GreaterThan(current.Amount):
			bid = bid.WithStatus(model.BidWinning, now)
			displaced := current.WithStatus(model.BidOutbid, now)
			result.displaced = &displaced
		default:
			bid = bid.WithStatus(model.BidOutbid, now)
		}
		result.bid = bid

		// the displaced winner goes first so at most one bid is ever Winning
		if result.displaced != nil {
			return tx.SaveBids(ctx, *result.displaced, bid)
		}
		return tx.SaveBids(ctx, bid)
	})
	if err != nil {
		return arbitration{}, err
	}
	return result, nil
}

func (s *BiddingService) publishArbitration(ctx context.Context, r arbitration) {
	now := s.now()
	evts := []events.Event{events.NewBidEvent(events.BidPlaced, r.bid, now)}
	if r.displaced != nil {
		evts = append(evts, events.NewBidEvent(events.BidOutbid, *r.displaced, now))
	}
	events.PublishAll(context.WithoutCancel(ctx), s.publisher, evts...)
}

// validateBid checks input validity before any storage access
func validateBid(auctionID, bidderID string, amount decimal.Decimal) error {
	if auctionID == "" || bidderID == "" {
		return fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidAmount)
	}
	return nil
}

// HighestBidder returns the bidder currently holding the Winning bid, or the
// recorded winner once the auction closed sold. ok is false when nobody leads.
func (s *BiddingService) HighestBidder(ctx context.Context, auctionID string) (string, bool, error) {
	if auctionID == "" {
		return "", false, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return "", false, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	if auction.State == model.StateClosedSold {
		return auction.WinnerID, auction.WinnerID != "", nil
	}

	winning, err := s.repo.FindWinningBid(ctx, auctionID)
	if errors.Is(err, biddingerrors.ErrNoBids) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}
	return winning.BidderID, true, nil
}

// GetBidsForAuction returns all bids for a specific auction in arrival order
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	if _, err := s.repo.GetAuction(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}

	bids, err := s.repo.FindBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}

	return bids, nil
}

// GetWinningBid returns the auction's current Winning bid
func (s *BiddingService) GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error) {
	if auctionID == "" {
		return model.Bid{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	if _, err := s.repo.GetAuction(ctx, auctionID); err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}

	winningBid, err := s.repo.FindWinningBid(ctx, auctionID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}

	return winningBid, nil
}

// GetBidsByBidder returns every bid a user has placed
func (s *BiddingService) GetBidsByBidder(ctx context.Context, bidderID string) ([]model.Bid, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.FindBidsByBidder(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for user %s: %w", bidderID, err)
	}

	return bids, nil
}
