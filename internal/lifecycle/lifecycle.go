// Package lifecycle is the auction state machine:
//
//	Scheduled -> Open -> ClosedSold | ClosedUnsold
//
// States only move forward. Closing is driven by the sweeper, never by a bid.
package lifecycle

import (
	"fmt"
	"time"

	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
)

var transitions = map[model.AuctionState][]model.AuctionState{
	model.StateScheduled: {model.StateOpen},
	model.StateOpen:      {model.StateClosedSold, model.StateClosedUnsold},
}

// CanTransition reports whether from -> to is a legal move
func CanTransition(from, to model.AuctionState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves a to state to, stamping UpdatedAt
func Transition(a *model.Auction, to model.AuctionState, now time.Time) error {
	if !CanTransition(a.State, to) {
		return fmt.Errorf("lifecycle: auction %s %s -> %s: %w", a.AuctionID, a.State, to, biddingerrors.ErrInvalidState)
	}
	a.State = to
	a.UpdatedAt = now
	return nil
}

// InitialState is Scheduled when startsAt lies in the future and Open otherwise
func InitialState(startsAt, now time.Time) model.AuctionState {
	if startsAt.After(now) {
		return model.StateScheduled
	}
	return model.StateOpen
}

// Activate opens a Scheduled auction whose start has arrived. It reports whether a changed.
func Activate(a *model.Auction, now time.Time) bool {
	if a.State != model.StateScheduled || a.StartsAt.After(now) {
		return false
	}
	a.State = model.StateOpen
	a.UpdatedAt = now
	return true
}

// AcceptsBids returns nil when a bid arriving at now may be arbitrated.
// An Open auction past its end date is treated as closed even before the sweeper runs.
func AcceptsBids(a model.Auction, now time.Time) error {
	if a.State != model.StateOpen {
		return fmt.Errorf("lifecycle: auction %s is %s: %w", a.AuctionID, a.State, biddingerrors.ErrInvalidState)
	}
	if !now.Before(a.EndDate) {
		return fmt.Errorf("lifecycle: auction %s ended at %s: %w", a.AuctionID, a.EndDate.Format(time.RFC3339), biddingerrors.ErrInvalidState)
	}
	return nil
}

// Editable returns nil when descriptive fields of a may still change, which is only while it is Open
func Editable(a model.Auction) error {
	if a.State != model.StateOpen {
		return fmt.Errorf("lifecycle: auction %s is %s: %w", a.AuctionID, a.State, biddingerrors.ErrInvalidState)
	}
	return nil
}

// Settlement is the outcome of closing one auction
type Settlement struct {
	Auction model.Auction
	// Relabeled holds every bid whose status changed
	Relabeled []model.Bid
	Winner    *model.Bid
}

// Settle closes an Open auction. With a Winning bid the auction becomes
// ClosedSold, that bid Won and every Outbid bid Lost; otherwise it becomes
// ClosedUnsold and no bid changes.
func Settle(a model.Auction, bids []model.Bid, now time.Time) (Settlement, error) {
	var winner *model.Bid
	for i := range bids {
		if bids[i].Status == model.BidWinning {
			if winner != nil {
				return Settlement{}, fmt.Errorf("lifecycle: auction %s has bids %s and %s both winning: %w",
					a.AuctionID, winner.BidID, bids[i].BidID, biddingerrors.ErrInvalidState)
			}
			winner = &bids[i]
		}
	}

	if winner == nil {
		if err := Transition(&a, model.StateClosedUnsold, now); err != nil {
			return Settlement{}, err
		}
		return Settlement{Auction: a}, nil
	}

	if err := Transition(&a, model.StateClosedSold, now); err != nil {
		return Settlement{}, err
	}
	a.WinnerID = winner.BidderID
	a.WinningBidID = winner.BidID

	relabeled := make([]model.Bid, 0, len(bids))
	var won model.Bid
	for _, b := range bids {
		switch b.Status {
		case model.BidWinning:
			won = b.WithStatus(model.BidWon, now)
			relabeled = append(relabeled, won)
		case model.BidOutbid:
			relabeled = append(relabeled, b.WithStatus(model.BidLost, now))
		}
	}

	return Settlement{Auction: a, Relabeled: relabeled, Winner: &won}, nil
}
