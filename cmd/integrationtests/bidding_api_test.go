package integrationtests

import (
	"net/http"
	"testing"
	"time"

	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"

	"github.com/stretchr/testify/require"
)

// RecordBidHandler Tests
func TestRecordBidHandler(t *testing.T) {
	tests := []struct {
		name       string
		auctions   []model.Auction
		seedBids   []helpers.PlaceBidRequest
		request    any
		wantStatus int
		wantState  string
	}{
		{
			name:       "Valid_Bid",
			auctions:   []model.Auction{openAuction("a1", 50, time.Hour)},
			request:    helpers.PlaceBidRequest{AuctionID: "a1", BidderID: "user1", Amount: 100},
			wantStatus: http.StatusCreated,
			wantState:  string(model.BidWinning),
		},
		{
			name:       "Lower_Bid_Is_Outbid",
			auctions:   []model.Auction{openAuction("a1", 50, time.Hour)},
			seedBids:   []helpers.PlaceBidRequest{{AuctionID: "a1", BidderID: "user2", Amount: 150}},
			request:    helpers.PlaceBidRequest{AuctionID: "a1", BidderID: "user1", Amount: 100},
			wantStatus: http.StatusCreated,
			wantState:  string(model.BidOutbid),
		},
		{
			name:       "Invalid_JSON",
			request:    []byte("{auction_id: 'missing quotes', amount: 100}"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "At_Start_Price",
			auctions:   []model.Auction{openAuction("a1", 50, time.Hour)},
			request:    helpers.PlaceBidRequest{AuctionID: "a1", BidderID: "user1", Amount: 50},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Owner_Bids",
			auctions:   []model.Auction{openAuction("a1", 50, time.Hour)},
			request:    helpers.PlaceBidRequest{AuctionID: "a1", BidderID: "seller1", Amount: 100},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "Unknown_Bidder",
			auctions:   []model.Auction{openAuction("a1", 50, time.Hour)},
			request:    helpers.PlaceBidRequest{AuctionID: "a1", BidderID: "ghost", Amount: 100},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "Auction_Not_Found",
			request:    helpers.PlaceBidRequest{AuctionID: "nonexistent", BidderID: "user1", Amount: 100},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "Auction_Ended",
			auctions:   []model.Auction{openAuction("a1", 50, -time.Minute)},
			request:    helpers.PlaceBidRequest{AuctionID: "a1", BidderID: "user1", Amount: 100},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := SetupTestRouterWithAuctions(t, tt.auctions...)
			for _, bid := range tt.seedBids {
				_, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/bids", bid)
				require.Equal(t, http.StatusCreated, w.Code)
			}

			resp, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/bids", tt.request)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantStatus == http.StatusCreated {
				require.Equal(t, "a1", resp["auction_id"])
				require.Equal(t, "user1", resp["bidder_id"])
				require.Equal(t, 100.0, resp["amount"])
				require.Equal(t, tt.wantState, resp["status"])
				require.NotEmpty(t, resp["bid_id"])

				_, err := time.Parse(time.RFC3339, resp["created_at"].(string))
				require.NoError(t, err)
			}
		})
	}
}

// GetBidsByAuctionHandler Tests
func TestGetBidsByAuctionHandler(t *testing.T) {
	tests := []struct {
		name       string
		auctions   []model.Auction
		seedBids   []helpers.PlaceBidRequest
		auctionID  string
		wantCount  int
		wantStatus int
	}{
		{
			name:     "With_Bids",
			auctions: []model.Auction{openAuction("a1", 50, time.Hour)},
			seedBids: []helpers.PlaceBidRequest{
				{AuctionID: "a1", BidderID: "user1", Amount: 100},
				{AuctionID: "a1", BidderID: "user2", Amount: 90},
			},
			auctionID:  "a1",
			wantCount:  2,
			wantStatus: http.StatusOK,
		},
		{
			name:       "No_Bids",
			auctions:   []model.Auction{openAuction("a2", 30, time.Hour)},
			auctionID:  "a2",
			wantCount:  0,
			wantStatus: http.StatusOK,
		},
		{
			name:       "Auction_Not_Found",
			auctionID:  "nonexistent",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := SetupTestRouterWithAuctions(t, tt.auctions...)
			for _, bid := range tt.seedBids {
				_, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/bids", bid)
				require.Equal(t, http.StatusCreated, w.Code)
			}

			resp, w := ExecuteRequestAndParse(t, router, http.MethodGet, "/auctions/"+tt.auctionID+"/bids", nil)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				require.Len(t, dataList(t, resp), tt.wantCount)
			} else {
				require.Equal(t, "auction not found", resp["message"])
			}
		})
	}
}

// GetWinningBidHandler Tests
func TestGetWinningBidHandler(t *testing.T) {
	tests := []struct {
		name       string
		auctions   []model.Auction
		seedBids   []helpers.PlaceBidRequest
		auctionID  string
		wantBidder string
		wantAmount float64
		wantStatus int
	}{
		{
			name:     "With_Bids",
			auctions: []model.Auction{openAuction("a1", 50, time.Hour)},
			seedBids: []helpers.PlaceBidRequest{
				{AuctionID: "a1", BidderID: "user1", Amount: 100},
				{AuctionID: "a1", BidderID: "user3", Amount: 120},
				{AuctionID: "a1", BidderID: "user2", Amount: 150},
			},
			auctionID:  "a1",
			wantBidder: "user2",
			wantAmount: 150,
			wantStatus: http.StatusOK,
		},
		{
			name:     "Equal_Bid_Does_Not_Take_Lead",
			auctions: []model.Auction{openAuction("a1", 50, time.Hour)},
			seedBids: []helpers.PlaceBidRequest{
				{AuctionID: "a1", BidderID: "user1", Amount: 100},
				{AuctionID: "a1", BidderID: "user2", Amount: 100},
			},
			auctionID:  "a1",
			wantBidder: "user1",
			wantAmount: 100,
			wantStatus: http.StatusOK,
		},
		{
			name:       "No_Bids",
			auctions:   []model.Auction{openAuction("a2", 30, time.Hour)},
			auctionID:  "a2",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "Auction_Not_Found",
			auctionID:  "nonexistent",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := SetupTestRouterWithAuctions(t, tt.auctions...)
			for _, bid := range tt.seedBids {
				_, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/bids", bid)
				require.Equal(t, http.StatusCreated, w.Code)
			}

			resp, w := ExecuteRequestAndParse(t, router, http.MethodGet, "/auctions/"+tt.auctionID+"/winning", nil)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				data := resp["data"].(map[string]any)
				require.Equal(t, tt.auctionID, data["auction_id"])
				require.Equal(t, tt.wantBidder, data["bidder_id"])
				require.Equal(t, tt.wantAmount, data["amount"])
				require.Equal(t, string(model.BidWinning), data["status"])
				_, err := time.Parse(time.RFC3339, data["created_at"].(string))
				require.NoError(t, err)
			}
		})
	}
}

// GetHighestBidderHandler Tests
func TestGetHighestBidderHandler(t *testing.T) {
	router := SetupTestRouterWithAuctions(t,
		openAuction("a1", 50, time.Hour),
		openAuction("a2", 50, time.Hour),
	)

	_, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/bids",
		helpers.PlaceBidRequest{AuctionID: "a1", BidderID: "user3", Amount: 75})
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name       string
		auctionID  string
		wantStatus int
		wantHas    bool
		wantBidder any
	}{
		{name: "Leader", auctionID: "a1", wantStatus: http.StatusOK, wantHas: true, wantBidder: "user3"},
		{name: "Nobody", auctionID: "a2", wantStatus: http.StatusOK, wantHas: false, wantBidder: nil},
		{name: "Auction_Not_Found", auctionID: "nonexistent", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, w := ExecuteRequestAndParse(t, router, http.MethodGet, "/auctions/"+tt.auctionID+"/highest-bidder", nil)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				data := resp["data"].(map[string]any)
				require.Equal(t, tt.wantHas, data["has_bidder"])
				require.Equal(t, tt.wantBidder, data["bidder_id"])
			}
		})
	}
}

// GetBidsByUserHandler Tests
func TestGetBidsByUserHandler(t *testing.T) {
	router := SetupTestRouterWithAuctions(t,
		openAuction("a1", 50, time.Hour),
		openAuction("a2", 30, time.Hour),
	)

	bids := []helpers.PlaceBidRequest{
		{AuctionID: "a1", BidderID: "user1", Amount: 100},
		{AuctionID: "a2", BidderID: "user1", Amount: 200},
		{AuctionID: "a1", BidderID: "user1", Amount: 110},
	}
	for _, bid := range bids {
		_, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/bids", bid)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	tests := []struct {
		name      string
		userID    string
		wantCount int
	}{
		{name: "User_With_Bids", userID: "user1", wantCount: 3},
		{name: "User_Without_Bids", userID: "user2", wantCount: 0},
		{name: "Nonexistent_User", userID: "nonexistent", wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, w := ExecuteRequestAndParse(t, router, http.MethodGet, "/users/"+tt.userID+"/bids", nil)
			require.Equal(t, http.StatusOK, w.Code)

			got := dataList(t, resp)
			require.Len(t, got, tt.wantCount)
			for _, b := range got {
				require.Equal(t, tt.userID, b["bidder_id"])
			}
		})
	}
}
