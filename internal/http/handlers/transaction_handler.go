package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/safedealhq/safedeal-backend/internal/dto"
	"github.com/safedealhq/safedeal-backend/internal/http/handlers/common"
	"github.com/safedealhq/safedeal-backend/internal/models"
	"github.com/safedealhq/safedeal-backend/internal/pkg/apperror"
	"github.com/safedealhq/safedeal-backend/internal/service"
)

type TransactionHandler struct {
	svc *service.TransactionService
}

func NewTransactionHandler(s *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: s}
}

// Create POST /api/transactions
func (h *TransactionHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "некорректное тело запроса"))
		return
	}

	buyerID, err := uuid.Parse(req.BuyerID)
	if err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "неверный идентификатор покупателя"))
		return
	}
	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "неверный идентификатор продавца"))
		return
	}

	t, escrow, err := h.svc.Create(c.Request.Context(), userID, service.CreateTransactionInput{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		BuyerID:     buyerID,
		SellerID:    sellerID,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": t, "escrow": escrow})
}

// List GET /api/transactions
func (h *TransactionHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	list, err := h.svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get GET /api/transactions/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	detail, err := h.svc.Get(c.Request.Context(), userID, common.CurrentUserRole(c), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Accept POST /api/transactions/:id/accept
func (h *TransactionHandler) Accept(c *gin.Context) {
	h.transition(c, h.svc.Accept)
}

// MarkShipped POST /api/transactions/:id/ship
func (h *TransactionHandler) MarkShipped(c *gin.Context) {
	h.transition(c, h.svc.MarkShipped)
}

// MarkDelivered POST /api/transactions/:id/deliver
func (h *TransactionHandler) MarkDelivered(c *gin.Context) {
	h.transition(c, h.svc.MarkDelivered)
}

// Cancel POST /api/transactions/:id/cancel
func (h *TransactionHandler) Cancel(c *gin.Context) {
	h.transition(c, h.svc.Cancel)
}

// Release POST /api/transactions/:id/release
func (h *TransactionHandler) Release(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	t, err := h.svc.Release(c.Request.Context(), userID, common.CurrentUserRole(c), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TransactionHandler) transition(c *gin.Context, apply func(ctx context.Context, actorID, id uuid.UUID) (*models.Transaction, error)) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	t, err := apply(c.Request.Context(), userID, id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
