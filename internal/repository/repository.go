package repository

//go:generate mockgen -destination=mock_repository.go -package=repository auction-engine/internal/repository AuctionDB

import (
	"context"
	"fmt"
	"time"

	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
)

// AuctionRepository stores auction records
type AuctionRepository interface {
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	SaveAuction(ctx context.Context, auction model.Auction) error
	// DeleteAuction removes the auction and cascades to its bids
	DeleteAuction(ctx context.Context, auctionID string) error
	// FindDue returns Open auctions whose end date is at or before now
	FindDue(ctx context.Context, now time.Time) ([]model.Auction, error)
	// FindStartable returns Scheduled auctions whose start is at or before now
	FindStartable(ctx context.Context, now time.Time) ([]model.Auction, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Auction, error)
	// ListEndingSoon returns Open auctions ordered by end date, soonest first
	ListEndingSoon(ctx context.Context, limit int) ([]model.Auction, error)
	// ListNewest returns auctions ordered by creation time, newest first
	ListNewest(ctx context.Context, limit int) ([]model.Auction, error)
}

// BidRepository stores bid records keyed by auction
type BidRepository interface {
	// SaveBids inserts or updates all bids as one atomic unit
	SaveBids(ctx context.Context, bids ...model.Bid) error
	FindBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	// FindWinningBid returns the auction's Winning bid or biddingerrors.ErrNoBids
	FindWinningBid(ctx context.Context, auctionID string) (model.Bid, error)
	FindBidsByBidder(ctx context.Context, bidderID string) ([]model.Bid, error)
}

// UserLookup answers existence checks against the external user store
type UserLookup interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// Tx is the view of storage available inside RunInTx
type Tx interface {
	AuctionRepository
	BidRepository
}

// AuctionDB defines the storage interface for the auction system
type AuctionDB interface {
	Tx
	UserLookup
	// RunInTx runs fn against a transactional view scoped to auctionID.
	// Writes made through the view commit together when fn returns nil and are discarded otherwise.
	RunInTx(ctx context.Context, auctionID string, fn func(tx Tx) error) error
}

// storable rejects bids whose status was never resolved by the arbiter
func storable(b model.Bid) error {
	if b.BidID == "" {
		return fmt.Errorf("save bid: %w - empty bid id", biddingerrors.ErrInvalidBid)
	}
	if !b.Status.Valid() || b.Status == model.BidPending {
		return fmt.Errorf("save bid %s: %w - unresolved status %q", b.BidID, biddingerrors.ErrInvalidBid, b.Status)
	}
	return nil
}
