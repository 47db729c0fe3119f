package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safedealhq/safedeal-backend/internal/dto"
	"github.com/safedealhq/safedeal-backend/internal/http/handlers/common"
	"github.com/safedealhq/safedeal-backend/internal/pkg/apperror"
	"github.com/safedealhq/safedeal-backend/internal/service"
)

type ReviewHandler struct {
	svc *service.ReviewService
}

func NewReviewHandler(s *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{svc: s}
}

// Submit POST /api/transactions/:id/review
func (h *ReviewHandler) Submit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	transactionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "некорректное тело запроса"))
		return
	}

	review, err := h.svc.Submit(c.Request.Context(), userID, transactionID, req.Rating, req.Comment)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}
