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
	"github.com/safedealhq/safedeal-backend/internal/storage"
)

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) Create(ctx context.Context, d *models.Dispute) (*models.Transaction, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListOpen(ctx context.Context) ([]models.Dispute, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) Resolve(ctx context.Context, disputeID uuid.UUID, resolution string, resolvedByID uuid.UUID, winner string) (*models.Dispute, *models.Transaction, error) {
	args := m.Called(ctx, disputeID, resolution, resolvedByID, winner)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Dispute), args.Get(1).(*models.Transaction), args.Error(2)
}

func (m *mockDisputeRepo) AddEvidence(ctx context.Context, e *models.DisputeEvidence) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockDisputeRepo) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	args := m.Called(ctx, disputeID)
	return args.Get(0).([]models.DisputeEvidence), args.Error(1)
}

type mockEvidenceStorage struct {
	mock.Mock
}

func (m *mockEvidenceStorage) Save(disputeID uuid.UUID, fileName string, data []byte) (string, string, error) {
	args := m.Called(disputeID, fileName, data)
	return args.String(0), args.String(1), args.Error(2)
}

func newDisputeService() (*DisputeService, *mockDisputeRepo, *mockTransactionRepo, *mockEvidenceStorage) {
	disputes := new(mockDisputeRepo)
	transactions := new(mockTransactionRepo)
	files := new(mockEvidenceStorage)
	svc := NewDisputeService(disputes, transactions, files, nil)
	return svc, disputes, transactions, files
}

const disputeReason = "Товар не соответствует описанию, продавец не выходит на связь"

func TestDisputeService_Raise_Success(t *testing.T) {
	svc, disputes, transactions, _ := newDisputeService()
	ctx := context.Background()
	id := uuid.New()
	buyerID, sellerID := uuid.New(), uuid.New()

	tr := &models.Transaction{ID: id, BuyerID: buyerID, SellerID: sellerID, Status: models.StatusAwaitingDelivery}
	transactions.On("GetByID", ctx, id).Return(tr, nil)
	disputed := &models.Transaction{ID: id, BuyerID: buyerID, SellerID: sellerID, Status: models.StatusDisputed}
	disputes.On("Create", ctx, mock.AnythingOfType("*models.Dispute")).Return(disputed, nil)

	d, err := svc.Raise(ctx, buyerID, id, disputeReason)
	assert.NoError(t, err)
	assert.Equal(t, buyerID, d.RaisedByID)
	assert.Equal(t, disputeReason, d.Reason)
}

func TestDisputeService_Raise_NotParty(t *testing.T) {
	svc, disputes, transactions, _ := newDisputeService()
	ctx := context.Background()
	id := uuid.New()

	transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: uuid.New(), SellerID: uuid.New(), Status: models.StatusInProgress,
	}, nil)

	_, err := svc.Raise(ctx, uuid.New(), id, disputeReason)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
	disputes.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDisputeService_Raise_EscrowNotActive(t *testing.T) {
	svc, _, transactions, _ := newDisputeService()
	ctx := context.Background()
	id := uuid.New()
	buyerID := uuid.New()

	for _, status := range []models.TransactionStatus{
		models.StatusPending, models.StatusDisputed, models.StatusCompleted, models.StatusCancelled,
	} {
		transactions.ExpectedCalls = nil
		transactions.On("GetByID", ctx, id).Return(&models.Transaction{
			ID: id, BuyerID: buyerID, SellerID: uuid.New(), Status: status,
		}, nil)

		_, err := svc.Raise(ctx, buyerID, id, disputeReason)
		assert.Equalf(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(err), "status %s", status)
	}
}

func TestDisputeService_Raise_Duplicate(t *testing.T) {
	svc, disputes, transactions, _ := newDisputeService()
	ctx := context.Background()
	id := uuid.New()
	buyerID := uuid.New()

	transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: buyerID, SellerID: uuid.New(), Status: models.StatusInProgress,
	}, nil)
	disputes.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDisputeExists)

	_, err := svc.Raise(ctx, buyerID, id, disputeReason)
	assert.Equal(t, apperror.ErrCodeConflict, apperror.CodeOf(err))
}

func TestDisputeService_Raise_ShortReason(t *testing.T) {
	svc, _, _, _ := newDisputeService()

	_, err := svc.Raise(context.Background(), uuid.New(), uuid.New(), "short")
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
}

func TestDisputeService_Resolve_NotAdmin(t *testing.T) {
	svc, disputes, _, _ := newDisputeService()

	_, err := svc.Resolve(context.Background(), uuid.New(), models.RoleBuyer, uuid.New(), models.DisputeWinnerBuyer, disputeReason)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
	disputes.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_Resolve_BadWinner(t *testing.T) {
	svc, _, _, _ := newDisputeService()

	_, err := svc.Resolve(context.Background(), uuid.New(), models.RoleAdmin, uuid.New(), "arbiter", disputeReason)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
}

func TestDisputeService_Resolve_Success(t *testing.T) {
	svc, disputes, _, _ := newDisputeService()
	ctx := context.Background()
	adminID := uuid.New()
	disputeID := uuid.New()

	resolved := &models.Dispute{ID: disputeID, IsResolved: true}
	cancelled := &models.Transaction{ID: uuid.New(), Status: models.StatusCancelled}
	disputes.On("Resolve", ctx, disputeID, disputeReason, adminID, models.DisputeWinnerBuyer).Return(resolved, cancelled, nil)

	d, err := svc.Resolve(ctx, adminID, models.RoleAdmin, disputeID, models.DisputeWinnerBuyer, disputeReason)
	assert.NoError(t, err)
	assert.True(t, d.IsResolved)
	disputes.AssertExpectations(t)
}

func TestDisputeService_Resolve_AlreadyResolved(t *testing.T) {
	svc, disputes, _, _ := newDisputeService()
	ctx := context.Background()
	adminID := uuid.New()
	disputeID := uuid.New()

	disputes.On("Resolve", ctx, disputeID, disputeReason, adminID, models.DisputeWinnerSeller).
		Return(nil, nil, repository.ErrDisputeResolved)

	_, err := svc.Resolve(ctx, adminID, models.RoleAdmin, disputeID, models.DisputeWinnerSeller, disputeReason)
	assert.Equal(t, apperror.ErrCodeAlreadyResolved, apperror.CodeOf(err))
}

func TestDisputeService_Resolve_Reconciliation(t *testing.T) {
	svc, disputes, _, _ := newDisputeService()
	ctx := context.Background()
	adminID := uuid.New()
	disputeID := uuid.New()

	disputes.On("Resolve", ctx, disputeID, disputeReason, adminID, models.DisputeWinnerSeller).
		Return(nil, nil, repository.ErrEscrowReleased)

	_, err := svc.Resolve(ctx, adminID, models.RoleAdmin, disputeID, models.DisputeWinnerSeller, disputeReason)
	assert.Equal(t, apperror.ErrCodeReconciliation, apperror.CodeOf(err))
}

func TestDisputeService_ListOpen_NotAdmin(t *testing.T) {
	svc, _, _, _ := newDisputeService()

	_, err := svc.ListOpen(context.Background(), models.RoleSeller)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
}

func TestDisputeService_UploadEvidence_Success(t *testing.T) {
	svc, disputes, transactions, files := newDisputeService()
	ctx := context.Background()
	disputeID := uuid.New()
	transactionID := uuid.New()
	buyerID := uuid.New()
	data := []byte{0xFF, 0xD8, 0xFF}

	disputes.On("GetByID", ctx, disputeID).Return(&models.Dispute{
		ID: disputeID, TransactionID: transactionID,
	}, nil)
	transactions.On("GetByID", ctx, transactionID).Return(&models.Transaction{
		ID: transactionID, BuyerID: buyerID, SellerID: uuid.New(), Status: models.StatusDisputed,
	}, nil)
	files.On("Save", disputeID, "photo.jpg", data).Return(disputeID.String()+"/1_photo.jpg", "image/jpeg", nil)
	disputes.On("AddEvidence", ctx, mock.AnythingOfType("*models.DisputeEvidence")).Return(nil)

	e, err := svc.UploadEvidence(ctx, buyerID, disputeID, "photo.jpg", data)
	assert.NoError(t, err)
	assert.Equal(t, "image/jpeg", e.ContentType)
	assert.Equal(t, int64(len(data)), e.SizeBytes)
}

func TestDisputeService_UploadEvidence_UnsupportedType(t *testing.T) {
	svc, disputes, transactions, files := newDisputeService()
	ctx := context.Background()
	disputeID := uuid.New()
	transactionID := uuid.New()
	buyerID := uuid.New()
	data := []byte("MZ executable")

	disputes.On("GetByID", ctx, disputeID).Return(&models.Dispute{
		ID: disputeID, TransactionID: transactionID,
	}, nil)
	transactions.On("GetByID", ctx, transactionID).Return(&models.Transaction{
		ID: transactionID, BuyerID: buyerID, SellerID: uuid.New(), Status: models.StatusDisputed,
	}, nil)
	files.On("Save", disputeID, "tool.exe", data).Return("", "", storage.ErrUnsupportedType)

	_, err := svc.UploadEvidence(ctx, buyerID, disputeID, "tool.exe", data)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
}

func TestDisputeService_UploadEvidence_ResolvedDispute(t *testing.T) {
	svc, disputes, transactions, files := newDisputeService()
	ctx := context.Background()
	disputeID := uuid.New()
	transactionID := uuid.New()
	buyerID := uuid.New()

	disputes.On("GetByID", ctx, disputeID).Return(&models.Dispute{
		ID: disputeID, TransactionID: transactionID, IsResolved: true,
	}, nil)
	transactions.On("GetByID", ctx, transactionID).Return(&models.Transaction{
		ID: transactionID, BuyerID: buyerID, SellerID: uuid.New(), Status: models.StatusCompleted,
	}, nil)

	_, err := svc.UploadEvidence(ctx, buyerID, disputeID, "photo.jpg", []byte{1})
	assert.Equal(t, apperror.ErrCodeAlreadyResolved, apperror.CodeOf(err))
	files.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}
