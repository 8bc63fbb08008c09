package lifecycle

import (
	"errors"
	"testing"
	"time"

	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func openAuction() model.Auction {
	return model.Auction{
		AuctionID:  "a1",
		StartPrice: decimal.NewFromInt(100),
		StartsAt:   now.Add(-time.Hour),
		EndDate:    now.Add(time.Hour),
		OwnerID:    "owner",
		State:      model.StateOpen,
	}
}

func bid(id string, amount int64, status model.BidStatus) model.Bid {
	return model.NewBid(id, "a1", "bidder-"+id, decimal.NewFromInt(amount), now).WithStatus(status, now)
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	all := []model.AuctionState{model.StateScheduled, model.StateOpen, model.StateClosedSold, model.StateClosedUnsold}
	legal := map[[2]model.AuctionState]bool{
		{model.StateScheduled, model.StateOpen}:    true,
		{model.StateOpen, model.StateClosedSold}:   true,
		{model.StateOpen, model.StateClosedUnsold}: true,
	}

	for _, from := range all {
		for _, to := range all {
			require.Equal(t, legal[[2]model.AuctionState{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransition_NeverRegresses(t *testing.T) {
	t.Parallel()

	a := openAuction()
	a.State = model.StateClosedSold

	err := Transition(&a, model.StateOpen, now)
	require.True(t, errors.Is(err, biddingerrors.ErrInvalidState))
	require.Equal(t, model.StateClosedSold, a.State)
}

func TestInitialStateAndActivate(t *testing.T) {
	t.Parallel()

	require.Equal(t, model.StateOpen, InitialState(now, now))
	require.Equal(t, model.StateOpen, InitialState(now.Add(-time.Minute), now))
	require.Equal(t, model.StateScheduled, InitialState(now.Add(time.Minute), now))

	a := openAuction()
	a.State = model.StateScheduled
	a.StartsAt = now.Add(time.Minute)

	require.False(t, Activate(&a, now))
	require.Equal(t, model.StateScheduled, a.State)

	require.True(t, Activate(&a, now.Add(time.Minute)))
	require.Equal(t, model.StateOpen, a.State)

	require.False(t, Activate(&a, now.Add(time.Hour)), "open auctions are left alone")
}

func TestAcceptsBids(t *testing.T) {
	t.Parallel()

	a := openAuction()
	require.NoError(t, AcceptsBids(a, now))
	require.NoError(t, AcceptsBids(a, a.EndDate.Add(-time.Nanosecond)))
	require.True(t, errors.Is(AcceptsBids(a, a.EndDate), biddingerrors.ErrInvalidState))

	for _, s := range []model.AuctionState{model.StateScheduled, model.StateClosedSold, model.StateClosedUnsold} {
		a.State = s
		require.True(t, errors.Is(AcceptsBids(a, now), biddingerrors.ErrInvalidState), "state %s", s)
	}
}

func TestEditable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    model.AuctionState
		editable bool
	}{
		{model.StateScheduled, false},
		{model.StateOpen, true},
		{model.StateClosedSold, false},
		{model.StateClosedUnsold, false},
	}

	for _, tc := range tests {
		a := openAuction()
		a.State = tc.state
		err := Editable(a)
		if tc.editable {
			require.NoError(t, err, tc.state)
			continue
		}
		require.True(t, errors.Is(err, biddingerrors.ErrInvalidState), "%s: got %v", tc.state, err)
	}
}

func TestSettle_Sold(t *testing.T) {
	t.Parallel()

	bids := []model.Bid{
		bid("A", 150, model.BidOutbid),
		bid("B", 120, model.BidOutbid),
		bid("C", 200, model.BidWinning),
	}

	s, err := Settle(openAuction(), bids, now)
	require.NoError(t, err)

	require.Equal(t, model.StateClosedSold, s.Auction.State)
	require.Equal(t, "bidder-C", s.Auction.WinnerID)
	require.Equal(t, "C", s.Auction.WinningBidID)
	require.NotNil(t, s.Winner)
	require.Equal(t, model.BidWon, s.Winner.Status)

	statuses := map[string]model.BidStatus{}
	for _, b := range s.Relabeled {
		statuses[b.BidID] = b.Status
	}
	require.Equal(t, map[string]model.BidStatus{"A": model.BidLost, "B": model.BidLost, "C": model.BidWon}, statuses)
}

func TestSettle_Unsold(t *testing.T) {
	t.Parallel()

	s, err := Settle(openAuction(), nil, now)
	require.NoError(t, err)
	require.Equal(t, model.StateClosedUnsold, s.Auction.State)
	require.Empty(t, s.Relabeled)
	require.Nil(t, s.Winner)
	require.Empty(t, s.Auction.WinnerID)
}

func TestSettle_RejectsClosedAuction(t *testing.T) {
	t.Parallel()

	a := openAuction()
	a.State = model.StateClosedUnsold

	_, err := Settle(a, nil, now)
	require.True(t, errors.Is(err, biddingerrors.ErrInvalidState))
}

func TestSettle_RejectsTwoWinners(t *testing.T) {
	t.Parallel()

	_, err := Settle(openAuction(), []model.Bid{bid("A", 150, model.BidWinning), bid("B", 160, model.BidWinning)}, now)
	require.True(t, errors.Is(err, biddingerrors.ErrInvalidState))
}
