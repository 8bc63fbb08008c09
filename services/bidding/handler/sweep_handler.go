package handler

import (
	"context"
	"net/http"
	"time"

	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type SweeperInterface interface {
	Sweep(ctx context.Context, now time.Time) ([]string, error)
}

type SweepHandler struct {
	sweeper SweeperInterface
	now     func() time.Time
}

func NewSweepHandler(sweeper SweeperInterface) *SweepHandler {
	return &SweepHandler{sweeper: sweeper, now: func() time.Time { return time.Now().UTC() }}
}

// TriggerSweepHandler handles POST /admin/sweep. Per-auction failures are
// reported as 500 after the rest of the sweep has completed.
func (h *SweepHandler) TriggerSweepHandler(c *gin.Context) {
	now := h.now()
	closed, err := h.sweeper.Sweep(c.Request.Context(), now)
	if err != nil {
		helpers.HandleServiceError(c, "TriggerSweepHandler", err, map[string]any{"closed_count": len(closed)})
		return
	}
	if closed == nil {
		closed = []string{}
	}

	resp := helpers.SweepResponse{Closed: closed, Count: len(closed), SweptAt: now.Format(time.RFC3339)}
	utils.JSONResponse(c, http.StatusOK, resp, "sweep completed")
	helpers.LogSuccess("TriggerSweepHandler", "sweep completed", map[string]any{"closed_count": len(closed)})
}
