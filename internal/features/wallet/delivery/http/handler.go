package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "contest-engine-backend/internal/common/errors"
	"contest-engine-backend/internal/common/middleware"
	contestservice "contest-engine-backend/internal/features/contest/service"
	"contest-engine-backend/internal/features/wallet/repository"
)

type WalletHandler struct {
	wallets repository.WalletRepository
	chain   contestservice.ChainTransfer
}

func NewWalletHandler(wallets repository.WalletRepository, chain contestservice.ChainTransfer) *WalletHandler {
	return &WalletHandler{wallets: wallets, chain: chain}
}

func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	wallet := router.Group("/wallet")
	{
		wallet.GET("", h.getAddress)
		wallet.PUT("", h.setAddress)
	}
}

// @Summary Linked wallet address
// @Tags wallet
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} map[string]string
// @Failure 404 {object} middleware.ErrorResponse "No address linked"
// @Router /wallet [get]
func (h *WalletHandler) getAddress(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	address, err := h.wallets.GetAddress(c.Request.Context(), user.ID)
	if err == repository.ErrAddressNotFound {
		middleware.RespondError(c, apperrors.NewNotFoundError("wallet address", user.ID))
		return
	}
	if err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("get wallet address", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address})
}

type setAddressRequest struct {
	Address string `json:"address" binding:"required"`
}

// @Summary Link a wallet address for blockchain prizes
// @Tags wallet
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body setAddressRequest true "Wallet address"
// @Success 200 {object} map[string]string
// @Failure 422 {object} middleware.ErrorResponse "Malformed address"
// @Router /wallet [put]
func (h *WalletHandler) setAddress(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input setAddressRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.chain.ValidateAddress(input.Address) {
		middleware.RespondError(c, apperrors.New(apperrors.ErrCodeWalletMalformed, apperrors.KindPrecondition, "wallet address is malformed"))
		return
	}

	if err := h.wallets.SetAddress(c.Request.Context(), user.ID, input.Address); err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("set wallet address", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": input.Address})
}
