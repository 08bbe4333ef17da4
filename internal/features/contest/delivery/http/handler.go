package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"contest-engine-backend/internal/common/middleware"
	"contest-engine-backend/internal/features/contest/models"
	contestservice "contest-engine-backend/internal/features/contest/service"
)

type ContestHandler struct {
	contests  *contestservice.ContestService
	scoring   *contestservice.ScoringService
	ranking   *contestservice.RankingService
	validator contestservice.CommentValidator
}

func NewContestHandler(
	contests *contestservice.ContestService,
	scoring *contestservice.ScoringService,
	ranking *contestservice.RankingService,
	validator contestservice.CommentValidator,
) *ContestHandler {
	return &ContestHandler{
		contests:  contests,
		scoring:   scoring,
		ranking:   ranking,
		validator: validator,
	}
}

func (h *ContestHandler) RegisterRoutes(router *gin.RouterGroup) {
	contests := router.Group("/contests")
	{
		contests.POST("", h.create)
		contests.GET("/:id", h.getByID)
		contests.POST("/:id/await-payment", h.awaitPayment)
		contests.POST("/:id/activate", h.activate)
		contests.POST("/:id/cancel", h.cancel)
		contests.POST("/:id/activity", h.recordActivity)
		contests.POST("/:id/boost", h.applyBoost)
		contests.POST("/:id/second-chance", h.joinSecondChance)
		contests.GET("/:id/leaderboard", h.leaderboard)
		contests.GET("/:id/position", h.position)
	}
}

// @Summary Create a contest
// @Description Creates a contest in draft status with its prize configuration
// @Tags contests
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body models.ContestCreate true "Contest configuration"
// @Success 200 {object} models.Contest
// @Failure 400 {object} middleware.ErrorResponse "Validation error"
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Router /contests [post]
func (h *ContestHandler) create(c *gin.Context) {
	var input models.ContestCreate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contest, err := h.contests.Create(c.Request.Context(), &input)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contest)
}

// @Summary Get contest by ID
// @Tags contests
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Contest ID"
// @Success 200 {object} models.Contest
// @Failure 404 {object} middleware.ErrorResponse "Contest not found"
// @Router /contests/{id} [get]
func (h *ContestHandler) getByID(c *gin.Context) {
	contest, err := h.contests.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contest)
}

// @Summary Move a draft contest to the payment gate
// @Tags contests
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Contest ID"
// @Success 200 {object} models.Contest
// @Failure 409 {object} middleware.ErrorResponse "Invalid status transition"
// @Router /contests/{id}/await-payment [post]
func (h *ContestHandler) awaitPayment(c *gin.Context) {
	contest, err := h.contests.MarkAwaitingPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contest)
}

// @Summary Activate a paid contest
// @Description Stamps the contest window and opens it for engagement
// @Tags contests
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Contest ID"
// @Success 200 {object} models.Contest
// @Failure 409 {object} middleware.ErrorResponse "Invalid status transition"
// @Router /contests/{id}/activate [post]
func (h *ContestHandler) activate(c *gin.Context) {
	contest, err := h.contests.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contest)
}

// @Summary Cancel an active contest
// @Description Terminates the contest without winners and releases pool holds
// @Tags contests
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Contest ID"
// @Success 200 {object} models.Contest
// @Failure 409 {object} middleware.ErrorResponse "Invalid status transition"
// @Router /contests/{id}/cancel [post]
func (h *ContestHandler) cancel(c *gin.Context) {
	contest, err := h.contests.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contest)
}

type activityRequest struct {
	Kind models.ActionKind `json:"kind" binding:"required"`
	// Text carries the comment body for the anti-spam gate; unused for
	// reactions.
	Text string `json:"text"`
}

type activityResponse struct {
	Points   int64  `json:"points"`
	Counted  bool   `json:"counted"`
	Rejected string `json:"rejected,omitempty"`
}

// @Summary Record an engagement action
// @Description Awards multiplier-weighted points for one reaction, comment or reply
// @Tags scoring
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Contest ID"
// @Param input body activityRequest true "Engagement action"
// @Success 200 {object} activityResponse
// @Failure 410 {object} middleware.ErrorResponse "Contest is not accepting activity"
// @Router /contests/{id}/activity [post]
func (h *ContestHandler) recordActivity(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input activityRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Comments and replies pass the quality gate before they can score.
	if input.Kind == models.ActionComment || input.Kind == models.ActionReply {
		if valid, reason := h.validator.ValidateComment(input.Text); !valid {
			c.JSON(http.StatusOK, activityResponse{Points: 0, Counted: false, Rejected: reason})
			return
		}
	}

	points, err := h.scoring.ApplyActivity(c.Request.Context(), c.Param("id"), user.ID, input.Kind)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activityResponse{Points: points, Counted: points > 0})
}

type boostRequest struct {
	Type       models.BoostType `json:"type" binding:"required"`
	PriceUnits int64            `json:"price_units" binding:"required"`
}

// @Summary Activate a point multiplier
// @Description Purchases a boost; at most one active boost per participant and contest
// @Tags scoring
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Contest ID"
// @Param input body boostRequest true "Boost purchase"
// @Success 200 {object} models.Boost
// @Failure 409 {object} middleware.ErrorResponse "A boost is already active"
// @Router /contests/{id}/boost [post]
func (h *ContestHandler) applyBoost(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input boostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	boost, err := h.scoring.ApplyBoost(c.Request.Context(), c.Param("id"), user.ID, input.Type, input.PriceUnits)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, boost)
}

type secondChanceRequest struct {
	Proof string `json:"proof"`
}

// @Summary Opt into the second chance draw
// @Description Registers a non-winner for the delayed bonus draw of a completed contest
// @Tags contests
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Contest ID"
// @Param input body secondChanceRequest false "Optional proof payload"
// @Success 200 {object} map[string]bool
// @Failure 409 {object} middleware.ErrorResponse "Already opted in or draw closed"
// @Router /contests/{id}/second-chance [post]
func (h *ContestHandler) joinSecondChance(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input secondChanceRequest
	_ = c.ShouldBindJSON(&input)

	if err := h.contests.JoinSecondChance(c.Request.Context(), c.Param("id"), user.ID, input.Proof); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": true})
}

// @Summary Contest leaderboard
// @Description Live ranked slice of participants, recomputed on every read
// @Tags ranking
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Contest ID"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {array} models.ParticipantStats
// @Router /contests/{id}/leaderboard [get]
func (h *ContestHandler) leaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	entries, err := h.ranking.Rank(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// @Summary Own live rank
// @Tags ranking
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Contest ID"
// @Success 200 {object} contestservice.Position
// @Failure 404 {object} middleware.ErrorResponse "Not a participant"
// @Router /contests/{id}/position [get]
func (h *ContestHandler) position(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	position, err := h.ranking.PositionOf(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, position)
}
