package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionState is the lifecycle state of an auction
type AuctionState string

const (
	StateScheduled    AuctionState = "scheduled"
	StateOpen         AuctionState = "open"
	StateClosedSold   AuctionState = "closed_sold"
	StateClosedUnsold AuctionState = "closed_unsold"
)

// Valid reports whether s is one of the known lifecycle states
func (s AuctionState) Valid() bool {
	switch s {
	case StateScheduled, StateOpen, StateClosedSold, StateClosedUnsold:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s
func (s AuctionState) Terminal() bool {
	return s == StateClosedSold || s == StateClosedUnsold
}

// BidStatus is the arbitration status of a bid
type BidStatus string

const (
	BidPending BidStatus = "pending"
	BidWinning BidStatus = "winning"
	BidOutbid  BidStatus = "outbid"
	BidWon     BidStatus = "won"
	BidLost    BidStatus = "lost"
)

// Valid reports whether s is one of the known bid statuses
func (s BidStatus) Valid() bool {
	switch s {
	case BidPending, BidWinning, BidOutbid, BidWon, BidLost:
		return true
	}
	return false
}

// User represents a participant in the auction
type User struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Auction represents a listing accepting bids until EndDate
type Auction struct {
	AuctionID    string          `json:"auction_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	ImageRef     string          `json:"image_ref,omitempty"`
	StartPrice   decimal.Decimal `json:"start_price"`
	StartsAt     time.Time       `json:"starts_at"`
	EndDate      time.Time       `json:"end_date"`
	OwnerID      string          `json:"owner_id"`
	State        AuctionState    `json:"state"`
	WinnerID     string          `json:"winner_id,omitempty"`
	WinningBidID string          `json:"winning_bid_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Bid represents a user's bid on an auction
type Bid struct {
	BidID     string          `json:"bid_id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    BidStatus       `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewBid returns a pending bid. The arbiter resolves the status before it is stored.
func NewBid(id, auctionID, bidderID string, amount decimal.Decimal, now time.Time) Bid {
	return Bid{
		BidID:     id,
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		Status:    BidPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithStatus returns a copy of b carrying status s
func (b Bid) WithStatus(s BidStatus, now time.Time) Bid {
	b.Status = s
	b.UpdatedAt = now
	return b
}
