package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safedealhq/safedeal-backend/internal/dto"
	"github.com/safedealhq/safedeal-backend/internal/http/handlers/common"
	"github.com/safedealhq/safedeal-backend/internal/pkg/apperror"
	"github.com/safedealhq/safedeal-backend/internal/service"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(s *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: s}
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "некорректное тело запроса"))
		return
	}

	user, pair, err := h.svc.Register(c.Request.Context(), req.Email, req.Username, req.Password, req.Role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "tokens": pair})
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "некорректное тело запроса"))
		return
	}

	user, pair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "tokens": pair})
}

// Refresh POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "некорректное тело запроса"))
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": pair})
}
