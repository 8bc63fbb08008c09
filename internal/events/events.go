package events

import (
	"context"
	"time"

	model "auction-engine/internal/models"
	"auction-engine/utils"

	"github.com/shopspring/decimal"
)

// Type names the kind of domain event
type Type string

const (
	BidPlaced     Type = "bid.placed"
	BidOutbid     Type = "bid.outbid"
	AuctionClosed Type = "auction.closed"
)

// Event is published after the change it describes has committed
type Event struct {
	EventID   string             `json:"event_id"`
	Type      Type               `json:"type"`
	AuctionID string             `json:"auction_id"`
	BidID     string             `json:"bid_id,omitempty"`
	BidderID  string             `json:"bidder_id,omitempty"`
	Amount    decimal.Decimal    `json:"amount"`
	BidStatus model.BidStatus    `json:"bid_status,omitempty"`
	State     model.AuctionState `json:"state,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Publisher delivers events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NewBidEvent describes a bid after arbitration
func NewBidEvent(t Type, bid model.Bid, now time.Time) Event {
	return Event{
		EventID:   utils.GenerateID(),
		Type:      t,
		AuctionID: bid.AuctionID,
		BidID:     bid.BidID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		BidStatus: bid.Status,
		Timestamp: now,
	}
}

// NewClosedEvent describes an auction reaching a terminal state
func NewClosedEvent(a model.Auction, winner *model.Bid, now time.Time) Event {
	e := Event{
		EventID:   utils.GenerateID(),
		Type:      AuctionClosed,
		AuctionID: a.AuctionID,
		State:     a.State,
		Timestamp: now,
	}
	if winner != nil {
		e.BidID = winner.BidID
		e.BidderID = winner.BidderID
		e.Amount = winner.Amount
		e.BidStatus = winner.Status
	}
	return e
}

// LogPublisher writes events to the structured log
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	utils.Info("event: "+string(e.Type), map[string]any{
		"event_id":   e.EventID,
		"auction_id": e.AuctionID,
		"bid_id":     e.BidID,
		"bidder_id":  e.BidderID,
		"amount":     e.Amount.String(),
		"state":      e.State,
	})
	return nil
}

// PublishAll sends events in order. Failures are logged and never returned:
// the state change they describe has already committed.
func PublishAll(ctx context.Context, p Publisher, events ...Event) {
	if p == nil {
		return
	}
	for _, e := range events {
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Publish(pubCtx, e)
		cancel()
		if err != nil {
			utils.Warn("events: failed to publish", map[string]any{
				"event_id":   e.EventID,
				"type":       e.Type,
				"auction_id": e.AuctionID,
				"error":      err.Error(),
			})
		}
	}
}
