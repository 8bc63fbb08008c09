package perftests

import (
	"context"
	"fmt"
	"time"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/lock"
	model "auction-engine/internal/models"
	repository "auction-engine/internal/repository"

	"github.com/shopspring/decimal"
)

const benchOwner = "bench_owner"

func userID(i int) string    { return fmt.Sprintf("user_%d", i) }
func auctionID(i int) string { return fmt.Sprintf("auction_%d", i) }

// setupRepo creates the repository and bidding service with numUsers bidders
// and numAuctions Open auctions ending in an hour
func setupRepo(numUsers, numAuctions int, startPrice float64) (*repository.MemoryRepo, *bidding.BiddingService) {
	repo := repository.NewMemoryRepo()
	svc := bidding.NewBiddingService(repo, lock.NewLocalLocker(), nil)

	repo.AddUser(model.User{UserID: benchOwner, Username: "owner"})
	for i := 0; i < numUsers; i++ {
		repo.AddUser(model.User{UserID: userID(i), Username: userID(i)})
	}

	now := time.Now().UTC()
	for i := 0; i < numAuctions; i++ {
		_ = repo.SaveAuction(context.Background(), model.Auction{
			AuctionID:   auctionID(i),
			Title:       fmt.Sprintf("title_%d", i),
			Description: "Load test auction",
			StartPrice:  decimal.NewFromFloat(startPrice),
			StartsAt:    now,
			EndDate:     now.Add(time.Hour),
			OwnerID:     benchOwner,
			State:       model.StateOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return repo, svc
}
