package server

import (
	handler "auction-engine/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(biddingService handler.BiddingServiceInterface, auctionService handler.AuctionServiceInterface, sweeper handler.SweeperInterface) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(biddingService)
	auctionHandler := handler.NewAuctionHandler(auctionService)
	sweepHandler := handler.NewSweepHandler(sweeper)

	router.GET("/healthz", HealthHandler)

	bids := router.Group("/bids")
	{
		bids.POST("", biddingHandler.RecordBidHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("", auctionHandler.ListAuctionsHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.PATCH("/:auction_id", auctionHandler.UpdateAuctionHandler)
		auctions.DELETE("/:auction_id", auctionHandler.DeleteAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/winning", biddingHandler.GetWinningBidHandler)
		auctions.GET("/:auction_id/highest-bidder", biddingHandler.GetHighestBidderHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/bids", biddingHandler.GetBidsByUserHandler)
		users.GET("/:user_id/auctions", auctionHandler.OwnedAuctionsHandler())
		users.GET("/:user_id/bidded", auctionHandler.BiddedAuctionsHandler())
		users.GET("/:user_id/winning", auctionHandler.WinningAuctionsHandler())
		users.GET("/:user_id/won", auctionHandler.WonAuctionsHandler())
	}

	admin := router.Group("/admin")
	{
		admin.POST("/sweep", sweepHandler.TriggerSweepHandler)
	}

	return router
}
