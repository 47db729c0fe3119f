package service

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/safedealhq/safedeal-backend/internal/logger"
	"github.com/safedealhq/safedeal-backend/internal/models"
	"github.com/safedealhq/safedeal-backend/internal/pkg/apperror"
	"github.com/safedealhq/safedeal-backend/internal/repository"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

type mockTransactionRepo struct {
	mock.Mock
}

func (m *mockTransactionRepo) CreateFunded(ctx context.Context, t *models.Transaction) (*models.Escrow, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to models.TransactionStatus) (*models.Transaction, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type mockEscrowRepo struct {
	mock.Mock
}

func (m *mockEscrowRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) ReleaseToSeller(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, *models.Escrow, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Transaction), args.Get(1).(*models.Escrow), args.Error(2)
}

func (m *mockEscrowRepo) RefundToBuyer(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, *models.Escrow, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Transaction), args.Get(1).(*models.Escrow), args.Error(2)
}

type mockUserGetter struct {
	mock.Mock
}

func (m *mockUserGetter) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type mockDisputeGetter struct {
	mock.Mock
}

func (m *mockDisputeGetter) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

type mockReviewGetter struct {
	mock.Mock
}

func (m *mockReviewGetter) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Review, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

type transactionServiceMocks struct {
	transactions *mockTransactionRepo
	escrows      *mockEscrowRepo
	users        *mockUserGetter
	disputes     *mockDisputeGetter
	reviews      *mockReviewGetter
}

func newTransactionService() (*TransactionService, *transactionServiceMocks) {
	m := &transactionServiceMocks{
		transactions: new(mockTransactionRepo),
		escrows:      new(mockEscrowRepo),
		users:        new(mockUserGetter),
		disputes:     new(mockDisputeGetter),
		reviews:      new(mockReviewGetter),
	}
	svc := NewTransactionService(m.transactions, m.escrows, m.users, m.disputes, m.reviews, nil)
	return svc, m
}

func validInput(buyerID, sellerID uuid.UUID) CreateTransactionInput {
	return CreateTransactionInput{
		Title:       "Ноутбук ThinkPad",
		Description: "Продажа ноутбука, состояние отличное",
		Amount:      500,
		BuyerID:     buyerID,
		SellerID:    sellerID,
	}
}

func TestTransactionService_Create_Success(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	buyerID, sellerID := uuid.New(), uuid.New()

	m.users.On("GetByID", ctx, sellerID).Return(&models.User{ID: sellerID}, nil)
	escrow := &models.Escrow{ID: uuid.New(), Amount: 500}
	m.transactions.On("CreateFunded", ctx, mock.AnythingOfType("*models.Transaction")).
		Run(func(args mock.Arguments) {
			tr := args.Get(1).(*models.Transaction)
			tr.ID = uuid.New()
		}).
		Return(escrow, nil)

	tr, got, err := svc.Create(ctx, buyerID, validInput(buyerID, sellerID))
	assert.NoError(t, err)
	assert.Equal(t, models.StatusPending, tr.Status)
	assert.Equal(t, escrow, got)
	m.transactions.AssertExpectations(t)
}

func TestTransactionService_Create_SellerInitiates(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	buyerID, sellerID := uuid.New(), uuid.New()

	// контрагентом для продавца является покупатель
	m.users.On("GetByID", ctx, buyerID).Return(&models.User{ID: buyerID}, nil)
	m.transactions.On("CreateFunded", ctx, mock.Anything).Return(&models.Escrow{}, nil)

	_, _, err := svc.Create(ctx, sellerID, validInput(buyerID, sellerID))
	assert.NoError(t, err)
}

func TestTransactionService_Create_InsufficientFunds(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	buyerID, sellerID := uuid.New(), uuid.New()

	m.users.On("GetByID", ctx, sellerID).Return(&models.User{ID: sellerID}, nil)
	m.transactions.On("CreateFunded", ctx, mock.Anything).Return(nil, repository.ErrInsufficientFunds)

	_, _, err := svc.Create(ctx, buyerID, validInput(buyerID, sellerID))
	assert.Equal(t, apperror.ErrCodeInsufficientFunds, apperror.CodeOf(err))
}

func TestTransactionService_Create_SameParties(t *testing.T) {
	svc, _ := newTransactionService()
	userID := uuid.New()

	_, _, err := svc.Create(context.Background(), userID, validInput(userID, userID))
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
}

func TestTransactionService_Create_ActorNotParty(t *testing.T) {
	svc, _ := newTransactionService()

	_, _, err := svc.Create(context.Background(), uuid.New(), validInput(uuid.New(), uuid.New()))
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
}

func TestTransactionService_Create_InvalidAmount(t *testing.T) {
	svc, _ := newTransactionService()
	buyerID, sellerID := uuid.New(), uuid.New()

	in := validInput(buyerID, sellerID)
	in.Amount = 0
	_, _, err := svc.Create(context.Background(), buyerID, in)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))

	in.Amount = -10
	_, _, err = svc.Create(context.Background(), buyerID, in)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
}

func TestTransactionService_Accept_Success(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	buyerID, sellerID := uuid.New(), uuid.New()

	pending := &models.Transaction{ID: id, BuyerID: buyerID, SellerID: sellerID, Status: models.StatusPending}
	m.transactions.On("GetByID", ctx, id).Return(pending, nil)
	accepted := &models.Transaction{ID: id, BuyerID: buyerID, SellerID: sellerID, Status: models.StatusInProgress}
	m.transactions.On("UpdateStatusFrom", ctx, id, models.StatusPending, models.StatusInProgress).Return(accepted, nil)

	tr, err := svc.Accept(ctx, sellerID, id)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, tr.Status)
}

func TestTransactionService_Accept_ByBuyerForbidden(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	buyerID, sellerID := uuid.New(), uuid.New()

	m.transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: buyerID, SellerID: sellerID, Status: models.StatusPending,
	}, nil)

	_, err := svc.Accept(ctx, buyerID, id)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
	m.transactions.AssertNotCalled(t, "UpdateStatusFrom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTransactionService_Accept_FromTerminalStatus(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	sellerID := uuid.New()

	m.transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: uuid.New(), SellerID: sellerID, Status: models.StatusCompleted,
	}, nil)

	_, err := svc.Accept(ctx, sellerID, id)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(err))
}

func TestTransactionService_MarkDelivered_SkipsShipping(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	sellerID := uuid.New()

	// выполнение можно отметить и без промежуточной отправки
	inProgress := &models.Transaction{ID: id, BuyerID: uuid.New(), SellerID: sellerID, Status: models.StatusInProgress}
	m.transactions.On("GetByID", ctx, id).Return(inProgress, nil)
	ready := &models.Transaction{ID: id, SellerID: sellerID, Status: models.StatusReadyForRelease}
	m.transactions.On("UpdateStatusFrom", ctx, id, models.StatusInProgress, models.StatusReadyForRelease).Return(ready, nil)

	tr, err := svc.MarkDelivered(ctx, sellerID, id)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusReadyForRelease, tr.Status)
}

func TestTransactionService_Transition_RaceDetected(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	sellerID := uuid.New()

	m.transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: uuid.New(), SellerID: sellerID, Status: models.StatusPending,
	}, nil)
	m.transactions.On("UpdateStatusFrom", ctx, id, models.StatusPending, models.StatusInProgress).
		Return(nil, repository.ErrStatusConflict)

	_, err := svc.Accept(ctx, sellerID, id)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(err))
}

func TestTransactionService_Release_ByBuyer(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	buyerID, sellerID := uuid.New(), uuid.New()

	ready := &models.Transaction{ID: id, BuyerID: buyerID, SellerID: sellerID, Status: models.StatusReadyForRelease}
	m.transactions.On("GetByID", ctx, id).Return(ready, nil)
	completed := &models.Transaction{ID: id, BuyerID: buyerID, SellerID: sellerID, Status: models.StatusCompleted}
	m.escrows.On("ReleaseToSeller", ctx, id).Return(completed, &models.Escrow{Released: true}, nil)

	tr, err := svc.Release(ctx, buyerID, models.RoleBuyer, id)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, tr.Status)
}

func TestTransactionService_Release_ByAdmin(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	adminID := uuid.New()

	ready := &models.Transaction{ID: id, BuyerID: uuid.New(), SellerID: uuid.New(), Status: models.StatusReadyForRelease}
	m.transactions.On("GetByID", ctx, id).Return(ready, nil)
	completed := &models.Transaction{ID: id, Status: models.StatusCompleted}
	m.escrows.On("ReleaseToSeller", ctx, id).Return(completed, &models.Escrow{Released: true}, nil)

	_, err := svc.Release(ctx, adminID, models.RoleAdmin, id)
	assert.NoError(t, err)
}

func TestTransactionService_Release_BySellerForbidden(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	sellerID := uuid.New()

	m.transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: uuid.New(), SellerID: sellerID, Status: models.StatusReadyForRelease,
	}, nil)

	_, err := svc.Release(ctx, sellerID, models.RoleSeller, id)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
	m.escrows.AssertNotCalled(t, "ReleaseToSeller", mock.Anything, mock.Anything)
}

func TestTransactionService_Release_WrongStatus(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	buyerID := uuid.New()

	m.transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: buyerID, SellerID: uuid.New(), Status: models.StatusInProgress,
	}, nil)

	_, err := svc.Release(ctx, buyerID, models.RoleBuyer, id)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(err))
}

func TestTransactionService_Release_Reconciliation(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	buyerID := uuid.New()

	m.transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: buyerID, SellerID: uuid.New(), Status: models.StatusReadyForRelease,
	}, nil)
	m.escrows.On("ReleaseToSeller", ctx, id).Return(nil, nil, repository.ErrEscrowReleased)

	_, err := svc.Release(ctx, buyerID, models.RoleBuyer, id)
	assert.Equal(t, apperror.ErrCodeReconciliation, apperror.CodeOf(err))
}

func TestTransactionService_Cancel_Pending(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	buyerID, sellerID := uuid.New(), uuid.New()

	pending := &models.Transaction{ID: id, BuyerID: buyerID, SellerID: sellerID, Status: models.StatusPending}
	m.transactions.On("GetByID", ctx, id).Return(pending, nil)
	cancelled := &models.Transaction{ID: id, BuyerID: buyerID, SellerID: sellerID, Status: models.StatusCancelled}
	m.escrows.On("RefundToBuyer", ctx, id).Return(cancelled, &models.Escrow{Released: true}, nil)

	// отменить может и продавец
	tr, err := svc.Cancel(ctx, sellerID, id)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, tr.Status)
}

func TestTransactionService_Cancel_AfterAccept(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	buyerID := uuid.New()

	m.transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: buyerID, SellerID: uuid.New(), Status: models.StatusInProgress,
	}, nil)

	_, err := svc.Cancel(ctx, buyerID, id)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(err))
	m.escrows.AssertNotCalled(t, "RefundToBuyer", mock.Anything, mock.Anything)
}

func TestTransactionService_Cancel_NotParty(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()

	m.transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: uuid.New(), SellerID: uuid.New(), Status: models.StatusPending,
	}, nil)

	_, err := svc.Cancel(ctx, uuid.New(), id)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
}

func TestTransactionService_Get_Detail(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()
	buyerID := uuid.New()

	tr := &models.Transaction{ID: id, BuyerID: buyerID, SellerID: uuid.New(), Status: models.StatusDisputed}
	m.transactions.On("GetByID", ctx, id).Return(tr, nil)
	m.escrows.On("GetByTransactionID", ctx, id).Return(&models.Escrow{TransactionID: id}, nil)
	m.disputes.On("GetByTransactionID", ctx, id).Return(&models.Dispute{TransactionID: id}, nil)
	m.reviews.On("GetByTransactionID", ctx, id).Return(nil, repository.ErrReviewNotFound)

	detail, err := svc.Get(ctx, buyerID, models.RoleBuyer, id)
	assert.NoError(t, err)
	assert.NotNil(t, detail.Escrow)
	assert.NotNil(t, detail.Dispute)
	assert.Nil(t, detail.Review)
}

func TestTransactionService_Get_StrangerForbidden(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()

	m.transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: uuid.New(), SellerID: uuid.New(),
	}, nil)

	_, err := svc.Get(ctx, uuid.New(), models.RoleBuyer, id)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
}

func TestTransactionService_Get_AdminAllowed(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	id := uuid.New()

	m.transactions.On("GetByID", ctx, id).Return(&models.Transaction{
		ID: id, BuyerID: uuid.New(), SellerID: uuid.New(),
	}, nil)
	m.escrows.On("GetByTransactionID", ctx, id).Return(nil, repository.ErrEscrowNotFound)
	m.disputes.On("GetByTransactionID", ctx, id).Return(nil, repository.ErrDisputeNotFound)
	m.reviews.On("GetByTransactionID", ctx, id).Return(nil, repository.ErrReviewNotFound)

	_, err := svc.Get(ctx, uuid.New(), models.RoleAdmin, id)
	assert.NoError(t, err)
}

func TestTransactionService_List_DefaultLimit(t *testing.T) {
	svc, m := newTransactionService()
	ctx := context.Background()
	userID := uuid.New()

	m.transactions.On("ListByUser", ctx, userID, 20, 0).Return([]models.Transaction{}, nil)

	_, err := svc.List(ctx, userID, 0, -5)
	assert.NoError(t, err)
	m.transactions.AssertExpectations(t)
}
