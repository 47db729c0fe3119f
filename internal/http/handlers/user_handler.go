package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safedealhq/safedeal-backend/internal/http/handlers/common"
	"github.com/safedealhq/safedeal-backend/internal/service"
)

type UserHandler struct {
	auth    *service.AuthService
	reviews *service.ReviewService
}

func NewUserHandler(auth *service.AuthService, reviews *service.ReviewService) *UserHandler {
	return &UserHandler{auth: auth, reviews: reviews}
}

// Me GET /api/profile
func (h *UserHandler) Me(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Lookup GET /api/users/:identifier — поиск по username, затем по email.
func (h *UserHandler) Lookup(c *gin.Context) {
	user, err := h.auth.LookupUser(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListReviews GET /api/users/:identifier/reviews — отзывы о пользователе.
func (h *UserHandler) ListReviews(c *gin.Context) {
	revieweeID, err := common.ParseUUIDParam(c, "identifier")
	if err != nil {
		common.Fail(c, err)
		return
	}

	reviews, rating, err := h.reviews.ListAbout(c.Request.Context(), revieweeID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "rating": rating})
}
