package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	auctions "auction-engine/internal/auctionService"
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/lock"
	model "auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/internal/sweeper"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var seedUsers = []model.User{
	{UserID: "seller1", Username: "seller"},
	{UserID: "user1", Username: "alice"},
	{UserID: "user2", Username: "bob"},
	{UserID: "user3", Username: "carol"},
}

// SetupTestRouter initializes the router with in-memory repository for integration testing.
func SetupTestRouter() (*gin.Engine, *repository.MemoryRepo) {
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()
	for _, u := range seedUsers {
		repo.AddUser(u)
	}

	locker := lock.NewLocalLocker()
	biddingService := bidding.NewBiddingService(repo, locker, nil)
	auctionService := auctions.NewAuctionService(repo, locker)
	sweep := sweeper.New(repo, locker, nil)

	router := server.SetupRouter(biddingService, auctionService, sweep)
	return router, repo
}

// SetupTestRouterWithAuctions initializes the router and seeds the repo with auctions.
func SetupTestRouterWithAuctions(t *testing.T, auctions ...model.Auction) *gin.Engine {
	router, repo := SetupTestRouter()
	for _, a := range auctions {
		require.NoError(t, repo.SaveAuction(context.Background(), a))
	}
	return router
}

// openAuction builds an Open auction owned by seller1 that ends after d.
func openAuction(id string, startPrice float64, d time.Duration) model.Auction {
	now := time.Now().UTC()
	return model.Auction{
		AuctionID:  id,
		Title:      "title " + id,
		StartPrice: decimal.NewFromFloat(startPrice),
		StartsAt:   now.Add(-time.Minute),
		EndDate:    now.Add(d),
		OwnerID:    "seller1",
		State:      model.StateOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ExecuteRequest executes an HTTP request and returns the response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := ExecuteRequest(t, router, method, url, reqBody)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}

		if w.Code == 201 {
			resp = resp["data"].(map[string]any)
		}
	}

	return resp, w
}

// dataList returns the envelope's data array
func dataList(t *testing.T, resp map[string]any) []map[string]any {
	t.Helper()
	raw, ok := resp["data"].([]any)
	require.True(t, ok, "data is not a list: %v", resp["data"])
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.(map[string]any))
	}
	return out
}
