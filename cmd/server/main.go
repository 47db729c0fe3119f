package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/safedealhq/safedeal-backend/internal/config"
	"github.com/safedealhq/safedeal-backend/internal/db"
	"github.com/safedealhq/safedeal-backend/internal/goroutine"
	httpHandlers "github.com/safedealhq/safedeal-backend/internal/http/handlers"
	httpRouter "github.com/safedealhq/safedeal-backend/internal/http/router"
	"github.com/safedealhq/safedeal-backend/internal/logger"
	"github.com/safedealhq/safedeal-backend/internal/repository"
	"github.com/safedealhq/safedeal-backend/internal/service"
	"github.com/safedealhq/safedeal-backend/internal/storage"
	"github.com/safedealhq/safedeal-backend/internal/ws"
)

func main() {
	// Контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}
	goroutine.SetLogger(logger.Log)

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	evidenceStorage, err := storage.NewEvidenceStorage(cfg.EvidenceStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	transactionRepo := repository.NewTransactionRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	reviewRepo := repository.NewReviewRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	ledgerService := service.NewLedgerService(userRepo, transactionRepo)
	transactionService := service.NewTransactionService(transactionRepo, escrowRepo, userRepo, disputeRepo, reviewRepo, hub)
	disputeService := service.NewDisputeService(disputeRepo, transactionRepo, evidenceStorage, hub)
	reviewService := service.NewReviewService(reviewRepo, transactionRepo, hub)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:        httpHandlers.NewAuthHandler(authService),
		User:        httpHandlers.NewUserHandler(authService, reviewService),
		Balance:     httpHandlers.NewBalanceHandler(ledgerService),
		Transaction: httpHandlers.NewTransactionHandler(transactionService),
		Dispute:     httpHandlers.NewDisputeHandler(disputeService),
		Review:      httpHandlers.NewReviewHandler(reviewService),
		Health:      httpHandlers.NewHealthHandler(dbConn),
		WS:          httpHandlers.NewWSHandler(hub, tokenManager),
	}, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	logger.Log.Infof("HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
