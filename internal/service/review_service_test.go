package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/safedealhq/safedeal-backend/internal/models"
	"github.com/safedealhq/safedeal-backend/internal/pkg/apperror"
	"github.com/safedealhq/safedeal-backend/internal/repository"
)

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, review *models.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Review, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *mockReviewRepo) ListByReviewee(ctx context.Context, revieweeID uuid.UUID) ([]models.Review, error) {
	args := m.Called(ctx, revieweeID)
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *mockReviewRepo) GetAverageRating(ctx context.Context, revieweeID uuid.UUID) (float64, int, error) {
	args := m.Called(ctx, revieweeID)
	return args.Get(0).(float64), args.Int(1), args.Error(2)
}

func newReviewService() (*ReviewService, *mockReviewRepo, *mockTransactionRepo) {
	reviews := new(mockReviewRepo)
	transactions := new(mockTransactionRepo)
	return NewReviewService(reviews, transactions, nil), reviews, transactions
}

func TestReviewService_Submit_Success(t *testing.T) {
	svc, reviews, transactions := newReviewService()
	ctx := context.Background()
	id := uuid.New()
	buyerID, sellerID := uuid.New(), uuid.New()

	transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: buyerID, SellerID: sellerID, Status: models.StatusCompleted,
	}, nil)
	reviews.On("Create", ctx, mock.AnythingOfType("*models.Review")).Return(nil)

	review, err := svc.Submit(ctx, sellerID, id, 5, "Быстрая оплата, рекомендую")
	assert.NoError(t, err)
	assert.Equal(t, sellerID, review.ReviewerID)
	assert.Equal(t, buyerID, review.RevieweeID)
}

func TestReviewService_Submit_NotCompleted(t *testing.T) {
	svc, reviews, transactions := newReviewService()
	ctx := context.Background()
	id := uuid.New()
	buyerID := uuid.New()

	for _, status := range []models.TransactionStatus{
		models.StatusPending, models.StatusInProgress, models.StatusAwaitingDelivery,
		models.StatusReadyForRelease, models.StatusDisputed, models.StatusCancelled,
	} {
		transactions.ExpectedCalls = nil
		transactions.On("GetByID", ctx, id).Return(&models.Transaction{
			ID: id, BuyerID: buyerID, SellerID: uuid.New(), Status: status,
		}, nil)

		_, err := svc.Submit(ctx, buyerID, id, 4, "")
		assert.Equalf(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(err), "status %s", status)
	}
	reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReviewService_Submit_NotParty(t *testing.T) {
	svc, _, transactions := newReviewService()
	ctx := context.Background()
	id := uuid.New()

	transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: uuid.New(), SellerID: uuid.New(), Status: models.StatusCompleted,
	}, nil)

	_, err := svc.Submit(ctx, uuid.New(), id, 4, "")
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
}

func TestReviewService_Submit_Duplicate(t *testing.T) {
	svc, reviews, transactions := newReviewService()
	ctx := context.Background()
	id := uuid.New()
	buyerID := uuid.New()

	transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: buyerID, SellerID: uuid.New(), Status: models.StatusCompleted,
	}, nil)
	reviews.On("Create", ctx, mock.Anything).Return(repository.ErrReviewExists)

	_, err := svc.Submit(ctx, buyerID, id, 4, "")
	assert.Equal(t, apperror.ErrCodeAlreadyReviewed, apperror.CodeOf(err))
}

func TestReviewService_Submit_BadRating(t *testing.T) {
	svc, _, _ := newReviewService()

	for _, rating := range []int{0, -1, 6, 100} {
		_, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), rating, "")
		assert.Equalf(t, apperror.ErrCodeValidation, apperror.CodeOf(err), "rating %d", rating)
	}
}

func TestReviewService_ListAbout(t *testing.T) {
	svc, reviews, _ := newReviewService()
	ctx := context.Background()
	revieweeID := uuid.New()

	reviews.On("ListByReviewee", ctx, revieweeID).Return([]models.Review{{Rating: 5}, {Rating: 4}}, nil)
	reviews.On("GetAverageRating", ctx, revieweeID).Return(4.5, 2, nil)

	list, rating, err := svc.ListAbout(ctx, revieweeID)
	assert.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 4.5, rating.Average)
	assert.Equal(t, 2, rating.Count)
}
