package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contest-engine-backend/internal/common/middleware"
	poolservice "contest-engine-backend/internal/features/pool/service"
)

type PoolHandler struct {
	pool *poolservice.PoolService
}

func NewPoolHandler(pool *poolservice.PoolService) *PoolHandler {
	return &PoolHandler{pool: pool}
}

// RegisterRoutes mounts the inventory management surface, admin only.
func (h *PoolHandler) RegisterRoutes(router *gin.RouterGroup) {
	pool := router.Group("/admin/pool")
	{
		pool.GET("/:gift_id", h.getEntry)
		pool.PUT("/:gift_id/total", h.setTotal)
	}
}

// @Summary Gift pool ledger entry
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param gift_id path string true "Gift ID"
// @Success 200 {object} models.PoolEntry
// @Failure 404 {object} middleware.ErrorResponse "Unknown gift"
// @Router /admin/pool/{gift_id} [get]
func (h *PoolHandler) getEntry(c *gin.Context) {
	entry, err := h.pool.Entry(c.Request.Context(), c.Param("gift_id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

type setTotalRequest struct {
	Total int64 `json:"total"`
}

// @Summary Resize the gift pool
// @Description Sets the total inventory; shrinking below reserved plus consumed is rejected
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param gift_id path string true "Gift ID"
// @Param input body setTotalRequest true "New total"
// @Success 200 {object} models.PoolEntry
// @Failure 409 {object} middleware.ErrorResponse "Ledger invariant violation"
// @Router /admin/pool/{gift_id}/total [put]
func (h *PoolHandler) setTotal(c *gin.Context) {
	var input setTotalRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	giftID := c.Param("gift_id")
	if err := h.pool.SetTotal(c.Request.Context(), giftID, input.Total); err != nil {
		middleware.RespondError(c, err)
		return
	}

	entry, err := h.pool.Entry(c.Request.Context(), giftID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
