package common

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/safedealhq/safedeal-backend/internal/http/middleware"
	"github.com/safedealhq/safedeal-backend/internal/pkg/apperror"
)

// CurrentUserID извлекает ID авторизованного пользователя из контекста gin.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	return userID, nil
}

// CurrentUserRole извлекает роль авторизованного пользователя.
func CurrentUserRole(c *gin.Context) string {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return ""
	}
	role, _ := raw.(string)
	return role
}

// ParseUUIDParam разбирает UUID из параметра маршрута.
func ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.New(apperror.ErrCodeValidation, "неверный формат идентификатора")
	}
	return parsed, nil
}

// Fail регистрирует ошибку для централизованного обработчика.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// GetPagination извлекает limit и offset из query-параметров.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = parseIntQuery(c, "limit", 20)
	offset = parseIntQuery(c, "offset", 0)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
