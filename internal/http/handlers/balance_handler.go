package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safedealhq/safedeal-backend/internal/dto"
	"github.com/safedealhq/safedeal-backend/internal/http/handlers/common"
	"github.com/safedealhq/safedeal-backend/internal/pkg/apperror"
	"github.com/safedealhq/safedeal-backend/internal/service"
)

type BalanceHandler struct {
	svc *service.LedgerService
}

func NewBalanceHandler(s *service.LedgerService) *BalanceHandler {
	return &BalanceHandler{svc: s}
}

// GetBalance GET /api/balance
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	balance, err := h.svc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{Balance: balance})
}

// Deposit POST /api/balance/deposit
func (h *BalanceHandler) Deposit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "некорректное тело запроса"))
		return
	}

	balance, err := h.svc.Deposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{Balance: balance})
}

// History GET /api/balance/history
func (h *BalanceHandler) History(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	entries, err := h.svc.History(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
