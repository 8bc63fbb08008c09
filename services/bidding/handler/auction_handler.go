package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	auctions "auction-engine/internal/auctionService"
	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, in auctions.CreateAuctionInput) (model.Auction, error)
	UpdateAuction(ctx context.Context, auctionID, userID string, in auctions.UpdateAuctionInput) (model.Auction, error)
	DeleteAuction(ctx context.Context, auctionID, userID string) error
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	ListEndingSoon(ctx context.Context, limit int) ([]model.Auction, error)
	ListNewest(ctx context.Context, limit int) ([]model.Auction, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Auction, error)
	ListBidded(ctx context.Context, userID string) ([]model.Auction, error)
	ListWinning(ctx context.Context, userID string) ([]model.Auction, error)
	ListWon(ctx context.Context, userID string) ([]model.Auction, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	in := auctions.CreateAuctionInput{
		OwnerID:     req.OwnerID,
		Title:       req.Title,
		Description: req.Description,
		ImageRef:    req.ImageRef,
		StartPrice:  decimal.NewFromFloat(*req.StartPrice),
		EndDate:     req.EndDate.UTC(),
	}
	if req.StartsAt != nil {
		in.StartsAt = req.StartsAt.UTC()
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), in)
	if err != nil {
		helpers.HandleServiceError(c, "CreateAuctionHandler", err, map[string]any{"owner_id": req.OwnerID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(auction), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"owner_id":   auction.OwnerID,
	})
}

// ListAuctionsHandler handles GET /auctions?view=ending-soon|newest&limit=N
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.JSONError(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw), "invalid query parameters")
			return
		}
		limit = n
	}

	view := c.DefaultQuery("view", "ending-soon")
	var (
		list []model.Auction
		err  error
	)
	switch view {
	case "ending-soon":
		list, err = h.service.ListEndingSoon(c.Request.Context(), limit)
	case "newest":
		list, err = h.service.ListNewest(c.Request.Context(), limit)
	default:
		utils.JSONError(c, http.StatusBadRequest, fmt.Errorf("unknown view %q", view), "invalid query parameters")
		return
	}
	if err != nil {
		helpers.HandleServiceError(c, "ListAuctionsHandler", err, map[string]any{"view": view})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponses(list), "auctions retrieved successfully")
	helpers.LogSuccess("ListAuctionsHandler", "auctions retrieved successfully", map[string]any{
		"view":  view,
		"count": len(list),
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.HandleServiceError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction retrieved successfully")
}

// UpdateAuctionHandler handles PATCH /auctions/:auction_id
func (h *AuctionHandler) UpdateAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}

	auction, err := h.service.UpdateAuction(c.Request.Context(), auctionID, req.UserID, auctions.UpdateAuctionInput{
		Title:       req.Title,
		Description: req.Description,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		helpers.HandleServiceError(c, "UpdateAuctionHandler", err, map[string]any{
			"auction_id": auctionID,
			"user_id":    req.UserID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated successfully", map[string]any{
		"auction_id": auctionID,
		"user_id":    req.UserID,
	})
}

// DeleteAuctionHandler handles DELETE /auctions/:auction_id?user_id=
func (h *AuctionHandler) DeleteAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	userID := c.Query("user_id")

	if err := h.service.DeleteAuction(c.Request.Context(), auctionID, userID); err != nil {
		helpers.HandleServiceError(c, "DeleteAuctionHandler", err, map[string]any{
			"auction_id": auctionID,
			"user_id":    userID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, gin.H{"auction_id": auctionID}, "auction deleted successfully")
}

// UserAuctionsHandler builds handlers for GET /users/:user_id/<view>
func (h *AuctionHandler) UserAuctionsHandler(view string, list func(ctx context.Context, userID string) ([]model.Auction, error)) gin.HandlerFunc {
	name := "UserAuctionsHandler[" + view + "]"
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		out, err := list(c.Request.Context(), userID)
		if err != nil {
			helpers.HandleServiceError(c, name, err, map[string]any{"user_id": userID})
			return
		}

		utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponses(out), "auctions retrieved successfully")
		helpers.LogSuccess(name, "auctions retrieved successfully", map[string]any{
			"user_id": userID,
			"count":   len(out),
		})
	}
}

func (h *AuctionHandler) OwnedAuctionsHandler() gin.HandlerFunc {
	return h.UserAuctionsHandler("auctions", h.service.ListByOwner)
}

func (h *AuctionHandler) BiddedAuctionsHandler() gin.HandlerFunc {
	return h.UserAuctionsHandler("bidded", h.service.ListBidded)
}

func (h *AuctionHandler) WinningAuctionsHandler() gin.HandlerFunc {
	return h.UserAuctionsHandler("winning", h.service.ListWinning)
}

func (h *AuctionHandler) WonAuctionsHandler() gin.HandlerFunc {
	return h.UserAuctionsHandler("won", h.service.ListWon)
}
