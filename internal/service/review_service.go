package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/safedealhq/safedeal-backend/internal/goroutine"
	"github.com/safedealhq/safedeal-backend/internal/models"
	"github.com/safedealhq/safedeal-backend/internal/pkg/apperror"
	"github.com/safedealhq/safedeal-backend/internal/repository"
	"github.com/safedealhq/safedeal-backend/internal/validation"
)

// ReviewRepository — персистентные операции над отзывами.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Review, error)
	ListByReviewee(ctx context.Context, revieweeID uuid.UUID) ([]models.Review, error)
	GetAverageRating(ctx context.Context, revieweeID uuid.UUID) (float64, int, error)
}

// ReviewTransactionRepository — чтение сделки для проверки допуска к отзыву.
type ReviewTransactionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}

// RevieweeRating — агрегат рейтинга пользователя.
type RevieweeRating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// ReviewService реализует допуск к отзывам: один отзыв на сделку, только
// от стороны и только после завершения.
type ReviewService struct {
	reviews      ReviewRepository
	transactions ReviewTransactionRepository
	notifier     Notifier
}

// NewReviewService создаёт сервис отзывов.
func NewReviewService(reviews ReviewRepository, transactions ReviewTransactionRepository, notifier Notifier) *ReviewService {
	return &ReviewService{reviews: reviews, transactions: transactions, notifier: notifier}
}

// Submit оставляет отзыв по завершённой сделке. Автор — любая из сторон,
// адресат вычисляется как контрагент; уникальность по сделке обеспечивает
// индекс в БД, поэтому гонка двух запросов не даст второй отзыв.
func (s *ReviewService) Submit(ctx context.Context, actorID, transactionID uuid.UUID, rating int, comment string) (*models.Review, error) {
	if err := validation.ValidateRating(rating); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("комментарий", comment, 0, validation.MaxCommentLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	t, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить сделку")
	}
	if !t.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	if t.Status != models.StatusCompleted {
		return nil, apperror.ErrNotCompleted
	}

	review := &models.Review{
		TransactionID: transactionID,
		ReviewerID:    actorID,
		RevieweeID:    t.Counterparty(actorID),
		Rating:        rating,
		Comment:       comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrReviewExists) {
			return nil, apperror.ErrAlreadyReviewed
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить отзыв")
	}

	if s.notifier != nil {
		revieweeID := review.RevieweeID
		payload := *review
		goroutine.SafeGo(func() {
			s.notifier.Notify(revieweeID, EventReviewCreated, payload)
		})
	}
	return review, nil
}

// ListAbout возвращает отзывы о пользователе вместе с агрегатом рейтинга.
func (s *ReviewService) ListAbout(ctx context.Context, revieweeID uuid.UUID) ([]models.Review, *RevieweeRating, error) {
	list, err := s.reviews.ListByReviewee(ctx, revieweeID)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить отзывы")
	}

	average, count, err := s.reviews.GetAverageRating(ctx, revieweeID)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить рейтинг")
	}
	return list, &RevieweeRating{Average: average, Count: count}, nil
}
