package router

import (
	"github.com/gin-gonic/gin"

	"github.com/safedealhq/safedeal-backend/internal/config"
	"github.com/safedealhq/safedeal-backend/internal/http/handlers"
	"github.com/safedealhq/safedeal-backend/internal/http/middleware"
	"github.com/safedealhq/safedeal-backend/internal/service"
)

// Handlers собирает все HTTP-хэндлеры приложения.
type Handlers struct {
	Auth        *handlers.AuthHandler
	User        *handlers.UserHandler
	Balance     *handlers.BalanceHandler
	Transaction *handlers.TransactionHandler
	Dispute     *handlers.DisputeHandler
	Review      *handlers.ReviewHandler
	Health      *handlers.HealthHandler
	WS          *handlers.WSHandler
}

// SetupRouter настраивает маршруты и middleware приложения.
func SetupRouter(cfg *config.Config, h Handlers, tokens *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Check)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	api.GET("/ws", h.WS.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.GET("/profile", h.User.Me)
		protected.GET("/users/:identifier", h.User.Lookup)
		protected.GET("/users/:identifier/reviews", h.User.ListReviews)

		protected.GET("/balance", h.Balance.GetBalance)
		protected.GET("/balance/history", h.Balance.History)
		protected.POST("/balance/deposit", h.Balance.Deposit)

		protected.POST("/transactions", h.Transaction.Create)
		protected.GET("/transactions", h.Transaction.List)
		protected.GET("/transactions/:id", h.Transaction.Get)
		protected.POST("/transactions/:id/accept", h.Transaction.Accept)
		protected.POST("/transactions/:id/ship", h.Transaction.MarkShipped)
		protected.POST("/transactions/:id/deliver", h.Transaction.MarkDelivered)
		protected.POST("/transactions/:id/release", h.Transaction.Release)
		protected.POST("/transactions/:id/cancel", h.Transaction.Cancel)
		protected.POST("/transactions/:id/dispute", h.Dispute.Raise)
		protected.POST("/transactions/:id/review", h.Review.Submit)

		protected.GET("/disputes", h.Dispute.ListOpen)
		protected.GET("/disputes/:id", h.Dispute.Get)
		protected.POST("/disputes/:id/resolve", h.Dispute.Resolve)
		protected.POST("/disputes/:id/evidence", h.Dispute.UploadEvidence)
		protected.GET("/disputes/:id/evidence", h.Dispute.ListEvidence)
	}

	return r
}
