package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/safedealhq/safedeal-backend/internal/goroutine"
	"github.com/safedealhq/safedeal-backend/internal/logger"
	"github.com/safedealhq/safedeal-backend/internal/models"
	"github.com/safedealhq/safedeal-backend/internal/pkg/apperror"
	"github.com/safedealhq/safedeal-backend/internal/repository"
	"github.com/safedealhq/safedeal-backend/internal/validation"
)

// События, рассылаемые сторонам сделки через WebSocket.
const (
	EventStatusChanged   = "transaction.status_changed"
	EventDisputeRaised   = "dispute.raised"
	EventDisputeResolved = "dispute.resolved"
	EventReviewCreated   = "review.created"
)

// Notifier доставляет событие пользователю. Реализация не должна блокировать.
type Notifier interface {
	Notify(userID uuid.UUID, event string, payload interface{})
}

// TransactionRepository — персистентные операции жизненного цикла сделки.
type TransactionRepository interface {
	CreateFunded(ctx context.Context, t *models.Transaction) (*models.Escrow, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to models.TransactionStatus) (*models.Transaction, error)
}

// EscrowRepository — денежные развязки сделки.
type EscrowRepository interface {
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Escrow, error)
	ReleaseToSeller(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, *models.Escrow, error)
	RefundToBuyer(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, *models.Escrow, error)
}

// TransactionUserRepository — проверка существования контрагентов.
type TransactionUserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TransactionDisputeRepository — чтение спора для детальной карточки сделки.
type TransactionDisputeRepository interface {
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error)
}

// TransactionReviewRepository — чтение отзыва для детальной карточки сделки.
type TransactionReviewRepository interface {
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Review, error)
}

// CreateTransactionInput — входные данные создания сделки.
type CreateTransactionInput struct {
	Title       string
	Description string
	Amount      float64
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
}

// TransactionDetail — сделка вместе с эскроу, спором и отзывом.
type TransactionDetail struct {
	Transaction *models.Transaction `json:"transaction"`
	Escrow      *models.Escrow      `json:"escrow,omitempty"`
	Dispute     *models.Dispute     `json:"dispute,omitempty"`
	Review      *models.Review      `json:"review,omitempty"`
}

// TransactionService реализует машину состояний сделки с авторизацией
// по сторонам и денежными развязками через эскроу.
type TransactionService struct {
	transactions TransactionRepository
	escrows      EscrowRepository
	users        TransactionUserRepository
	disputes     TransactionDisputeRepository
	reviews      TransactionReviewRepository
	notifier     Notifier
}

// NewTransactionService создаёт сервис сделок.
func NewTransactionService(
	transactions TransactionRepository,
	escrows EscrowRepository,
	users TransactionUserRepository,
	disputes TransactionDisputeRepository,
	reviews TransactionReviewRepository,
	notifier Notifier,
) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		escrows:      escrows,
		users:        users,
		disputes:     disputes,
		reviews:      reviews,
		notifier:     notifier,
	}
}

// Create создаёт сделку и атомарно фондирует эскроу с баланса покупателя.
// Инициатором может быть любая из сторон, но источник средств всегда
// покупатель; сделок без фондирования не существует.
func (s *TransactionService) Create(ctx context.Context, actorID uuid.UUID, in CreateTransactionInput) (*models.Transaction, *models.Escrow, error) {
	if err := validation.ValidateLength("название", in.Title, validation.MinTitleLength, validation.MaxTitleLength); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("описание", in.Description, validation.MinDescriptionLength, validation.MaxDescriptionLength); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateAmount(in.Amount); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.BuyerID == in.SellerID {
		return nil, nil, apperror.New(apperror.ErrCodeValidation, "покупатель и продавец должны быть разными пользователями")
	}
	if actorID != in.BuyerID && actorID != in.SellerID {
		return nil, nil, apperror.ErrForbidden
	}

	counterparty := in.SellerID
	if actorID == in.SellerID {
		counterparty = in.BuyerID
	}
	if _, err := s.users.GetByID(ctx, counterparty); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, apperror.New(apperror.ErrCodeValidation, "контрагент не найден")
		}
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить контрагента")
	}

	t := &models.Transaction{
		Title:       in.Title,
		Description: in.Description,
		Amount:      in.Amount,
		BuyerID:     in.BuyerID,
		SellerID:    in.SellerID,
	}
	escrow, err := s.transactions.CreateFunded(ctx, t)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, nil, apperror.ErrInsufficientFunds
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, nil, apperror.ErrUserNotFound
		case errors.Is(err, repository.ErrEscrowExists):
			return nil, nil, apperror.ErrEscrowExists
		}
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать сделку")
	}

	s.notifyParties(t, EventStatusChanged)
	return t, escrow, nil
}

// Get возвращает детальную карточку сделки. Доступ — стороны и админ.
func (s *TransactionService) Get(ctx context.Context, actorID uuid.UUID, actorRole string, id uuid.UUID) (*TransactionDetail, error) {
	t, err := s.getTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(actorID) && actorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}

	detail := &TransactionDetail{Transaction: t}

	escrow, err := s.escrows.GetByTransactionID(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrEscrowNotFound) {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить эскроу")
	}
	detail.Escrow = escrow

	dispute, err := s.disputes.GetByTransactionID(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить спор")
	}
	detail.Dispute = dispute

	review, err := s.reviews.GetByTransactionID(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrReviewNotFound) {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить отзыв")
	}
	detail.Review = review

	return detail, nil
}

// List возвращает сделки пользователя.
func (s *TransactionService) List(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.transactions.ListByUser(ctx, actorID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить сделки")
	}
	return list, nil
}

// Accept — продавец принимает сделку: pending -> in_progress.
func (s *TransactionService) Accept(ctx context.Context, actorID uuid.UUID, id uuid.UUID) (*models.Transaction, error) {
	return s.applyTransition(ctx, id, models.StatusInProgress, func(t *models.Transaction) error {
		if t.SellerID != actorID {
			return apperror.ErrForbidden
		}
		return nil
	})
}

// MarkShipped — продавец отметил отправку: in_progress -> awaiting_delivery.
func (s *TransactionService) MarkShipped(ctx context.Context, actorID uuid.UUID, id uuid.UUID) (*models.Transaction, error) {
	return s.applyTransition(ctx, id, models.StatusAwaitingDelivery, func(t *models.Transaction) error {
		if t.SellerID != actorID {
			return apperror.ErrForbidden
		}
		return nil
	})
}

// MarkDelivered — продавец отметил выполнение: сделка готова к выплате.
func (s *TransactionService) MarkDelivered(ctx context.Context, actorID uuid.UUID, id uuid.UUID) (*models.Transaction, error) {
	return s.applyTransition(ctx, id, models.StatusReadyForRelease, func(t *models.Transaction) error {
		if t.SellerID != actorID {
			return apperror.ErrForbidden
		}
		return nil
	})
}

// Release выплачивает эскроу продавцу: ready_for_release -> completed.
// Разрешено покупателю и админу. CAS-высвобождение, зачисление и смена
// статуса выполняются одной транзакцией БД.
func (s *TransactionService) Release(ctx context.Context, actorID uuid.UUID, actorRole string, id uuid.UUID) (*models.Transaction, error) {
	t, err := s.getTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.BuyerID != actorID && actorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	if !t.Status.CanTransitionTo(models.StatusCompleted) || t.Status != models.StatusReadyForRelease {
		return nil, apperror.ErrInvalidTransition
	}

	t, _, err = s.escrows.ReleaseToSeller(ctx, id)
	if err != nil {
		return nil, s.settleError(err, id, "release")
	}

	s.notifyParties(t, EventStatusChanged)
	return t, nil
}

// Cancel отменяет сделку до принятия продавцом: pending -> cancelled,
// эскроу возвращается покупателю. Разрешено обеим сторонам.
func (s *TransactionService) Cancel(ctx context.Context, actorID uuid.UUID, id uuid.UUID) (*models.Transaction, error) {
	t, err := s.getTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	if !t.Status.CanTransitionTo(models.StatusCancelled) || t.Status != models.StatusPending {
		return nil, apperror.ErrInvalidTransition
	}

	t, _, err = s.escrows.RefundToBuyer(ctx, id)
	if err != nil {
		return nil, s.settleError(err, id, "cancel")
	}

	s.notifyParties(t, EventStatusChanged)
	return t, nil
}

// applyTransition выполняет бесденежный переход: авторизация по снимку,
// легальность по таблице переходов, запись — с перепроверкой статуса
// под блокировкой строки в репозитории.
func (s *TransactionService) applyTransition(ctx context.Context, id uuid.UUID, to models.TransactionStatus, authorize func(*models.Transaction) error) (*models.Transaction, error) {
	t, err := s.getTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(t); err != nil {
		return nil, err
	}
	if !t.Status.CanTransitionTo(to) {
		return nil, apperror.ErrInvalidTransition
	}

	updated, err := s.transactions.UpdateStatusFrom(ctx, id, t.Status, to)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTransactionNotFound):
			return nil, apperror.ErrTransactionNotFound
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "статус сделки изменился, повторите запрос")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось обновить статус сделки")
	}

	s.notifyParties(updated, EventStatusChanged)
	return updated, nil
}

func (s *TransactionService) getTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить сделку")
	}
	return t, nil
}

// settleError переводит ошибки денежной развязки в ошибки приложения.
// Высвобожденный эскроу при активном статусе сделки — рассинхронизация
// данных: логируется с alert и никогда не маскируется под успех.
func (s *TransactionService) settleError(err error, transactionID uuid.UUID, op string) error {
	switch {
	case errors.Is(err, repository.ErrTransactionNotFound):
		return apperror.ErrTransactionNotFound
	case errors.Is(err, repository.ErrEscrowNotFound):
		return apperror.ErrEscrowNotFound
	case errors.Is(err, repository.ErrStatusConflict):
		return apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "статус сделки изменился, повторите запрос")
	case errors.Is(err, repository.ErrEscrowReleased):
		logger.Log.WithFields(map[string]interface{}{
			"alert":          true,
			"transaction_id": transactionID,
			"operation":      op,
		}).Error("эскроу уже высвобожден при активном статусе сделки")
		return apperror.Wrap(err, apperror.ErrCodeReconciliation, "состояние сделки требует ручной сверки")
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выполнить выплату")
}

// notifyParties рассылает событие обеим сторонам сделки, не блокируя запрос.
func (s *TransactionService) notifyParties(t *models.Transaction, event string) {
	if s.notifier == nil {
		return
	}
	buyerID, sellerID := t.BuyerID, t.SellerID
	payload := *t
	goroutine.SafeGo(func() {
		s.notifier.Notify(buyerID, event, payload)
		s.notifier.Notify(sellerID, event, payload)
	})
}
