package auctions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/lifecycle"
	"auction-engine/internal/lock"
	model "auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"

	"github.com/shopspring/decimal"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// AuctionService manages auction listings and serves read-only projections
type AuctionService struct {
	repo   repository.AuctionDB
	locker lock.Locker

	now         func() time.Time
	lockWait    time.Duration
	retries     int
	readRetries int
}

// Option configures an AuctionService
type Option func(*AuctionService)

func WithClock(now func() time.Time) Option {
	return func(s *AuctionService) { s.now = now }
}

func WithLockWait(d time.Duration) Option {
	return func(s *AuctionService) { s.lockWait = d }
}

// WithRetries sets the retry budget for lock conflicts and for failed reads
func WithRetries(n int) Option {
	return func(s *AuctionService) {
		s.retries = n
		s.readRetries = n
	}
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(repo repository.AuctionDB, locker lock.Locker, opts ...Option) *AuctionService {
	s := &AuctionService{
		repo:        repo,
		locker:      locker,
		now:         func() time.Time { return time.Now().UTC() },
		lockWait:    2 * time.Second,
		retries:     3,
		readRetries: 2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAuctionInput carries the fields an owner supplies for a new listing.
// A zero StartsAt opens the auction immediately.
type CreateAuctionInput struct {
	OwnerID     string
	Title       string
	Description string
	ImageRef    string
	StartPrice  decimal.Decimal
	StartsAt    time.Time
	EndDate     time.Time
}

// UpdateAuctionInput holds descriptive fields to change; nil leaves a field as is
type UpdateAuctionInput struct {
	Title       *string
	Description *string
	ImageRef    *string
}

// CreateAuction validates and stores a new auction
func (s *AuctionService) CreateAuction(ctx context.Context, in CreateAuctionInput) (model.Auction, error) {
	now := s.now()
	if err := validateCreate(in, now); err != nil {
		return model.Auction{}, err
	}

	exists, err := s.repo.UserExists(ctx, in.OwnerID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to look up owner %s: %w", in.OwnerID, err)
	}
	if !exists {
		return model.Auction{}, fmt.Errorf("service: owner %s: %w", in.OwnerID, biddingerrors.ErrUserNotFound)
	}

	startsAt := in.StartsAt
	if startsAt.IsZero() {
		startsAt = now
	}

	auction := model.Auction{
		AuctionID:   utils.GenerateID(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		ImageRef:    in.ImageRef,
		StartPrice:  in.StartPrice,
		StartsAt:    startsAt,
		EndDate:     in.EndDate,
		OwnerID:     in.OwnerID,
		State:       lifecycle.InitialState(startsAt, now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.SaveAuction(ctx, auction); err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to save auction for owner %s: %w", in.OwnerID, err)
	}

	utils.Info("service: auction created", map[string]any{
		"auction_id":  auction.AuctionID,
		"owner_id":    auction.OwnerID,
		"state":       auction.State,
		"start_price": auction.StartPrice.String(),
		"end_date":    auction.EndDate,
	})
	return auction, nil
}

func validateCreate(in CreateAuctionInput, now time.Time) error {
	if in.OwnerID == "" {
		return fmt.Errorf("service: %w - missing owner", biddingerrors.ErrInvalidAuction)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("service: %w - missing title", biddingerrors.ErrInvalidAuction)
	}
	if in.StartPrice.IsNegative() {
		return fmt.Errorf("service: %w - negative start price", biddingerrors.ErrInvalidAuction)
	}
	if !in.EndDate.After(now) {
		return fmt.Errorf("service: %w - end date must be in the future", biddingerrors.ErrInvalidAuction)
	}
	if !in.StartsAt.IsZero() && !in.StartsAt.Before(in.EndDate) {
		return fmt.Errorf("service: %w - start must precede end date", biddingerrors.ErrInvalidAuction)
	}
	return nil
}

// UpdateAuction changes descriptive fields. Only the owner may edit, and
// never once the auction has closed. Price and dates are immutable.
func (s *AuctionService) UpdateAuction(ctx context.Context, auctionID, userID string, in UpdateAuctionInput) (model.Auction, error) {
	if auctionID == "" || userID == "" {
		return model.Auction{}, fmt.Errorf("service: %w - missing auctionID or userID", biddingerrors.ErrInvalidAuction)
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return model.Auction{}, fmt.Errorf("service: %w - title cannot be empty", biddingerrors.ErrInvalidAuction)
	}

	var updated model.Auction
	err := s.withAuction(ctx, auctionID, func(tx repository.Tx) error {
		a, err := tx.GetAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		if a.OwnerID != userID {
			return fmt.Errorf("%w - user %s does not own auction %s", biddingerrors.ErrForbidden, userID, auctionID)
		}
		lifecycle.Activate(&a, s.now())
		if err := lifecycle.Editable(a); err != nil {
			return err
		}

		if in.Title != nil {
			a.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			a.Description = *in.Description
		}
		if in.ImageRef != nil {
			a.ImageRef = *in.ImageRef
		}
		a.UpdatedAt = s.now()

		updated = a
		return tx.SaveAuction(ctx, a)
	})
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
	}
	return updated, nil
}

// DeleteAuction removes the auction and all of its bids. Only the owner may delete.
func (s *AuctionService) DeleteAuction(ctx context.Context, auctionID, userID string) error {
	if auctionID == "" || userID == "" {
		return fmt.Errorf("service: %w - missing auctionID or userID", biddingerrors.ErrInvalidAuction)
	}

	err := s.withAuction(ctx, auctionID, func(tx repository.Tx) error {
		a, err := tx.GetAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		if a.OwnerID != userID {
			return fmt.Errorf("%w - user %s does not own auction %s", biddingerrors.ErrForbidden, userID, auctionID)
		}
		return tx.DeleteAuction(ctx, auctionID)
	})
	if err != nil {
		return fmt.Errorf("service: failed to delete auction %s: %w", auctionID, err)
	}

	utils.Info("service: auction deleted", map[string]any{"auction_id": auctionID, "user_id": userID})
	return nil
}

// GetAuction returns one auction
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	if auctionID == "" {
		return model.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}

	var a model.Auction
	err := s.read(ctx, func() (err error) {
		a, err = s.repo.GetAuction(ctx, auctionID)
		return err
	})
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// ListEndingSoon returns Open auctions closest to their end date
func (s *AuctionService) ListEndingSoon(ctx context.Context, limit int) ([]model.Auction, error) {
	var out []model.Auction
	err := s.read(ctx, func() (err error) {
		out, err = s.repo.ListEndingSoon(ctx, clampLimit(limit))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions ending soon: %w", err)
	}
	return out, nil
}

// ListNewest returns the most recently created auctions
func (s *AuctionService) ListNewest(ctx context.Context, limit int) ([]model.Auction, error) {
	var out []model.Auction
	err := s.read(ctx, func() (err error) {
		out, err = s.repo.ListNewest(ctx, clampLimit(limit))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to list newest auctions: %w", err)
	}
	return out, nil
}

// ListByOwner returns the auctions a user listed
func (s *AuctionService) ListByOwner(ctx context.Context, ownerID string) ([]model.Auction, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidAuction)
	}

	var out []model.Auction
	err := s.read(ctx, func() (err error) {
		out, err = s.repo.ListByOwner(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions for owner %s: %w", ownerID, err)
	}
	return out, nil
}

// ListBidded returns every auction the user has bid on, in order of first bid
func (s *AuctionService) ListBidded(ctx context.Context, userID string) ([]model.Auction, error) {
	return s.auctionsForBids(ctx, userID, func(model.Bid) bool { return true })
}

// ListWinning returns auctions where the user currently holds the Winning bid
func (s *AuctionService) ListWinning(ctx context.Context, userID string) ([]model.Auction, error) {
	return s.auctionsForBids(ctx, userID, func(b model.Bid) bool { return b.Status == model.BidWinning })
}

// ListWon returns closed auctions the user won
func (s *AuctionService) ListWon(ctx context.Context, userID string) ([]model.Auction, error) {
	return s.auctionsForBids(ctx, userID, func(b model.Bid) bool { return b.Status == model.BidWon })
}

func (s *AuctionService) auctionsForBids(ctx context.Context, userID string, keep func(model.Bid) bool) ([]model.Auction, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidAuction)
	}

	var bids []model.Bid
	err := s.read(ctx, func() (err error) {
		bids, err = s.repo.FindBidsByBidder(ctx, userID)
		return err
	})
	if errors.Is(err, biddingerrors.ErrUserNoBids) {
		return []model.Auction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for user %s: %w", userID, err)
	}

	seen := make(map[string]bool)
	out := make([]model.Auction, 0)
	for _, b := range bids {
		if seen[b.AuctionID] || !keep(b) {
			continue
		}
		seen[b.AuctionID] = true

		var a model.Auction
		err := s.read(ctx, func() (err error) {
			a, err = s.repo.GetAuction(ctx, b.AuctionID)
			return err
		})
		if errors.Is(err, biddingerrors.ErrNotFound) {
			// deleted between the two reads
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("service: failed to get auction %s: %w", b.AuctionID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *AuctionService) withAuction(ctx context.Context, auctionID string, fn func(tx repository.Tx) error) error {
	return lock.RetryConflicts(ctx, s.retries, func() error {
		release, err := lock.AcquireWithin(ctx, s.locker, auctionID, s.lockWait)
		if err != nil {
			return err
		}
		defer release()
		return s.repo.RunInTx(ctx, auctionID, fn)
	})
}

func (s *AuctionService) read(ctx context.Context, op func() error) error {
	return lock.RetryStorage(ctx, s.readRetries, op)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
