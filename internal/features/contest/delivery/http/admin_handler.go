package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contest-engine-backend/internal/common/middleware"
	"contest-engine-backend/internal/features/contest/repository"
	contestservice "contest-engine-backend/internal/features/contest/service"
)

// AdminHandler exposes the operational surface: driving scheduler passes by
// hand and retrying failed prize deliveries.
type AdminHandler struct {
	scheduler *contestservice.SchedulerService
	dist      *contestservice.DistributionService
	repo      repository.ContestRepository
}

func NewAdminHandler(
	scheduler *contestservice.SchedulerService,
	dist *contestservice.DistributionService,
	repo repository.ContestRepository,
) *AdminHandler {
	return &AdminHandler{scheduler: scheduler, dist: dist, repo: repo}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin")
	{
		admin.POST("/scheduler/tick", h.runTick)
		admin.POST("/scheduler/recovery", h.runRecovery)
		admin.POST("/distributions/:id/retry", h.retryDistribution)
		admin.GET("/contests/:id/distributions", h.listDistributions)
	}
}

// @Summary Run one scheduler pass
// @Description Completes expired contests and runs due second-chance draws
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} map[string]bool
// @Router /admin/scheduler/tick [post]
func (h *AdminHandler) runTick(c *gin.Context) {
	if err := h.scheduler.RunTick(c.Request.Context()); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// @Summary Run one recovery sweep
// @Description Re-drives distributions interrupted before their record was created
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} map[string]bool
// @Router /admin/scheduler/recovery [post]
func (h *AdminHandler) runRecovery(c *gin.Context) {
	if err := h.scheduler.RunRecovery(c.Request.Context()); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// @Summary Retry a failed prize delivery
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Distribution record ID"
// @Success 200 {object} models.PrizeDistribution
// @Failure 409 {object} middleware.ErrorResponse "Already sent or attempts exhausted"
// @Router /admin/distributions/{id}/retry [post]
func (h *AdminHandler) retryDistribution(c *gin.Context) {
	record, err := h.dist.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// @Summary List distribution records of a contest
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Contest ID"
// @Success 200 {array} models.PrizeDistribution
// @Router /admin/contests/{id}/distributions [get]
func (h *AdminHandler) listDistributions(c *gin.Context) {
	records, err := h.repo.ListDistributions(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
