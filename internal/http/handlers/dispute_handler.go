package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safedealhq/safedeal-backend/internal/dto"
	"github.com/safedealhq/safedeal-backend/internal/http/handlers/common"
	"github.com/safedealhq/safedeal-backend/internal/pkg/apperror"
	"github.com/safedealhq/safedeal-backend/internal/service"
)

type DisputeHandler struct {
	svc *service.DisputeService
}

func NewDisputeHandler(s *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{svc: s}
}

// Raise POST /api/transactions/:id/dispute
func (h *DisputeHandler) Raise(c *gin.Context) {
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

	var req dto.RaiseDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "некорректное тело запроса"))
		return
	}

	dispute, err := h.svc.Raise(c.Request.Context(), userID, transactionID, req.Reason)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dispute)
}

// Get GET /api/disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	dispute, err := h.svc.Get(c.Request.Context(), userID, common.CurrentUserRole(c), disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// ListOpen GET /api/disputes — только для админа.
func (h *DisputeHandler) ListOpen(c *gin.Context) {
	list, err := h.svc.ListOpen(c.Request.Context(), common.CurrentUserRole(c))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Resolve POST /api/disputes/:id/resolve — только для админа.
func (h *DisputeHandler) Resolve(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "некорректное тело запроса"))
		return
	}

	dispute, err := h.svc.Resolve(c.Request.Context(), userID, common.CurrentUserRole(c), disputeID, req.Winner, req.Resolution)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// UploadEvidence POST /api/disputes/:id/evidence — multipart-поле "file".
func (h *DisputeHandler) UploadEvidence(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "файл не передан"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		common.Fail(c, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось прочитать файл"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		common.Fail(c, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось прочитать файл"))
		return
	}

	evidence, err := h.svc.UploadEvidence(c.Request.Context(), userID, disputeID, fileHeader.Filename, data)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, evidence)
}

// ListEvidence GET /api/disputes/:id/evidence
func (h *DisputeHandler) ListEvidence(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	list, err := h.svc.ListEvidence(c.Request.Context(), userID, common.CurrentUserRole(c), disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
