package helpers

import (
	"time"

	model "auction-engine/internal/models"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	AuctionID string  `json:"auction_id" binding:"required"`
	BidderID  string  `json:"bidder_id" binding:"required"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
}

type BidResponse struct {
	BidID     string  `json:"bid_id"`
	AuctionID string  `json:"auction_id"`
	BidderID  string  `json:"bidder_id"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

type HighestBidderResponse struct {
	AuctionID string `json:"auction_id"`
	BidderID  string `json:"bidder_id,omitempty"`
	HasBidder bool   `json:"has_bidder"`
}

// StartPrice is a pointer so that an explicit 0 passes "required"
type CreateAuctionRequest struct {
	OwnerID     string     `json:"owner_id" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	ImageRef    string     `json:"image_ref"`
	StartPrice  *float64   `json:"start_price" binding:"required,gte=0"`
	StartsAt    *time.Time `json:"starts_at"`
	EndDate     time.Time  `json:"end_date" binding:"required"`
}

type UpdateAuctionRequest struct {
	UserID      string  `json:"user_id" binding:"required"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageRef    *string `json:"image_ref"`
}

type AuctionResponse struct {
	AuctionID    string  `json:"auction_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ImageRef     string  `json:"image_ref,omitempty"`
	StartPrice   float64 `json:"start_price"`
	StartsAt     string  `json:"starts_at"`
	EndDate      string  `json:"end_date"`
	OwnerID      string  `json:"owner_id"`
	State        string  `json:"state"`
	WinnerID     string  `json:"winner_id,omitempty"`
	WinningBidID string  `json:"winning_bid_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

type SweepResponse struct {
	Closed  []string `json:"closed"`
	Count   int      `json:"count"`
	SweptAt string   `json:"swept_at"`
}

func NewBidResponse(b model.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount.InexactFloat64(),
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func NewBidResponses(bids []model.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, NewBidResponse(b))
	}
	return out
}

func NewAuctionResponse(a model.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:    a.AuctionID,
		Title:        a.Title,
		Description:  a.Description,
		ImageRef:     a.ImageRef,
		StartPrice:   a.StartPrice.InexactFloat64(),
		StartsAt:     a.StartsAt.UTC().Format(time.RFC3339),
		EndDate:      a.EndDate.UTC().Format(time.RFC3339),
		OwnerID:      a.OwnerID,
		State:        string(a.State),
		WinnerID:     a.WinnerID,
		WinningBidID: a.WinningBidID,
		CreatedAt:    a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func NewAuctionResponses(auctions []model.Auction) []AuctionResponse {
	out := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, NewAuctionResponse(a))
	}
	return out
}
