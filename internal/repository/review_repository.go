package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/safedealhq/safedeal-backend/internal/models"
)

var (
	// ErrReviewNotFound возвращается, когда отзыв не найден.
	ErrReviewNotFound = errors.New("review not found")
	// ErrReviewExists возвращается при повторном отзыве по той же сделке.
	ErrReviewExists = errors.New("review already exists")
)

const reviewColumns = `id, transaction_id, reviewer_id, reviewee_id, rating, comment, created_at`

// ReviewRepository отвечает за таблицу reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository создаёт экземпляр репозитория.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create сохраняет отзыв. Уникальный индекс по сделке гарантирует не более
// одного отзыва на сделку даже при конкурентных запросах.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (transaction_id, reviewer_id, reviewee_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		review.TransactionID, review.ReviewerID, review.RevieweeID, review.Rating, review.Comment,
	).Scan(&review.ID, &review.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrReviewExists
		}
		return fmt.Errorf("review repository: create %w", err)
	}
	return nil
}

// GetByTransactionID возвращает отзыв по сделке.
func (r *ReviewRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Review, error) {
	var review models.Review
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE transaction_id = $1`
	if err := r.db.GetContext(ctx, &review, query, transactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("review repository: get by transaction %w", err)
	}
	return &review, nil
}

// ListByReviewee возвращает отзывы о пользователе, новые первыми.
func (r *ReviewRepository) ListByReviewee(ctx context.Context, revieweeID uuid.UUID) ([]models.Review, error) {
	var list []models.Review
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE reviewee_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &list, query, revieweeID); err != nil {
		return nil, fmt.Errorf("review repository: list by reviewee %w", err)
	}
	return list, nil
}

// GetAverageRating возвращает средний рейтинг пользователя и число отзывов.
func (r *ReviewRepository) GetAverageRating(ctx context.Context, revieweeID uuid.UUID) (float64, int, error) {
	var row struct {
		Average float64 `db:"average"`
		Count   int     `db:"count"`
	}
	query := `
		SELECT COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count
		FROM reviews
		WHERE reviewee_id = $1
	`
	if err := r.db.GetContext(ctx, &row, query, revieweeID); err != nil {
		return 0, 0, fmt.Errorf("review repository: average rating %w", err)
	}
	return row.Average, row.Count, nil
}
