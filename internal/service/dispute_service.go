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
	"github.com/safedealhq/safedeal-backend/internal/storage"
	"github.com/safedealhq/safedeal-backend/internal/validation"
)

// DisputeRepository — персистентные операции над спорами.
type DisputeRepository interface {
	Create(ctx context.Context, d *models.Dispute) (*models.Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error)
	ListOpen(ctx context.Context) ([]models.Dispute, error)
	Resolve(ctx context.Context, disputeID uuid.UUID, resolution string, resolvedByID uuid.UUID, winner string) (*models.Dispute, *models.Transaction, error)
	AddEvidence(ctx context.Context, e *models.DisputeEvidence) error
	ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error)
}

// EvidenceStorage сохраняет файл-доказательство и возвращает путь и
// определённый по содержимому MIME-тип.
type EvidenceStorage interface {
	Save(disputeID uuid.UUID, fileName string, data []byte) (path string, contentType string, err error)
}

// DisputeTransactionRepository — чтение сделки для проверок доступа.
type DisputeTransactionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}

// DisputeService реализует открытие и разрешение споров по сделкам.
type DisputeService struct {
	disputes     DisputeRepository
	transactions DisputeTransactionRepository
	storage      EvidenceStorage
	notifier     Notifier
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(disputes DisputeRepository, transactions DisputeTransactionRepository, storage EvidenceStorage, notifier Notifier) *DisputeService {
	return &DisputeService{
		disputes:     disputes,
		transactions: transactions,
		storage:      storage,
		notifier:     notifier,
	}
}

// Raise открывает спор по сделке. Допустимо только стороне сделки и только
// пока средства удерживаются в эскроу; сделка переводится в disputed
// атомарно со вставкой спора.
func (s *DisputeService) Raise(ctx context.Context, actorID, transactionID uuid.UUID, reason string) (*models.Dispute, error) {
	if err := validation.ValidateLength("причина", reason, validation.MinReasonLength, validation.MaxReasonLength); err != nil {
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
	if !t.Status.EscrowActive() {
		return nil, apperror.ErrInvalidTransition
	}

	d := &models.Dispute{
		TransactionID: transactionID,
		RaisedByID:    actorID,
		Reason:        reason,
	}
	t, err = s.disputes.Create(ctx, d)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDisputeExists):
			return nil, apperror.ErrDisputeExists
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, apperror.Wrap(err, apperror.ErrCodeInvalidTransition, "статус сделки изменился, повторите запрос")
		case errors.Is(err, repository.ErrTransactionNotFound):
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось открыть спор")
	}

	s.notify(t, EventDisputeRaised, d)
	return d, nil
}

// Get возвращает спор. Доступ — стороны сделки и админ.
func (s *DisputeService) Get(ctx context.Context, actorID uuid.UUID, actorRole string, disputeID uuid.UUID) (*models.Dispute, error) {
	d, t, err := s.getDisputeWithTransaction(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(actorID) && actorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	return d, nil
}

// ListOpen возвращает неразрешённые споры. Только для админа.
func (s *DisputeService) ListOpen(ctx context.Context, actorRole string) ([]models.Dispute, error) {
	if actorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	list, err := s.disputes.ListOpen(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить список споров")
	}
	return list, nil
}

// Resolve выносит решение по спору. Только для админа; победителю
// выплачивается эскроу, сделка получает финальный статус, всё — одной
// транзакцией БД.
func (s *DisputeService) Resolve(ctx context.Context, actorID uuid.UUID, actorRole string, disputeID uuid.UUID, winner, resolution string) (*models.Dispute, error) {
	if actorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	if winner != models.DisputeWinnerBuyer && winner != models.DisputeWinnerSeller {
		return nil, apperror.New(apperror.ErrCodeValidation, "победителем может быть только buyer или seller")
	}
	if err := validation.ValidateLength("решение", resolution, validation.MinReasonLength, validation.MaxReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	d, t, err := s.disputes.Resolve(ctx, disputeID, resolution, actorID, winner)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDisputeNotFound):
			return nil, apperror.ErrDisputeNotFound
		case errors.Is(err, repository.ErrDisputeResolved):
			return nil, apperror.ErrAlreadyResolved
		case errors.Is(err, repository.ErrTransactionNotFound):
			return nil, apperror.ErrTransactionNotFound
		case errors.Is(err, repository.ErrEscrowNotFound):
			return nil, apperror.ErrEscrowNotFound
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, apperror.Wrap(err, apperror.ErrCodeConflict, "сделка не находится в споре")
		case errors.Is(err, repository.ErrEscrowReleased):
			logger.Log.WithFields(map[string]interface{}{
				"alert":      true,
				"dispute_id": disputeID,
				"operation":  "resolve",
			}).Error("эскроу уже высвобожден при неразрешённом споре")
			return nil, apperror.Wrap(err, apperror.ErrCodeReconciliation, "состояние сделки требует ручной сверки")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось разрешить спор")
	}

	s.notify(t, EventDisputeResolved, d)
	return d, nil
}

// UploadEvidence сохраняет файл-доказательство по спору. Допустимо только
// сторонам сделки, пока спор не разрешён; тип файла проверяется по
// сигнатуре содержимого в хранилище.
func (s *DisputeService) UploadEvidence(ctx context.Context, actorID, disputeID uuid.UUID, fileName string, data []byte) (*models.DisputeEvidence, error) {
	d, t, err := s.getDisputeWithTransaction(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	if d.IsResolved {
		return nil, apperror.ErrAlreadyResolved
	}

	path, contentType, err := s.storage.Save(disputeID, fileName, data)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrFileTooLarge):
			return nil, apperror.New(apperror.ErrCodeValidation, "файл превышает допустимый размер")
		case errors.Is(err, storage.ErrUnsupportedType):
			return nil, apperror.New(apperror.ErrCodeValidation, "допустимы только изображения и PDF")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить файл")
	}

	e := &models.DisputeEvidence{
		DisputeID:    disputeID,
		UploadedByID: actorID,
		FileName:     fileName,
		FilePath:     path,
		ContentType:  contentType,
		SizeBytes:    int64(len(data)),
	}
	if err := s.disputes.AddEvidence(ctx, e); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить доказательство")
	}
	return e, nil
}

// ListEvidence возвращает доказательства по спору. Доступ — стороны и админ.
func (s *DisputeService) ListEvidence(ctx context.Context, actorID uuid.UUID, actorRole string, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	_, t, err := s.getDisputeWithTransaction(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(actorID) && actorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}

	list, err := s.disputes.ListEvidence(ctx, disputeID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить доказательства")
	}
	return list, nil
}

func (s *DisputeService) getDisputeWithTransaction(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, *models.Transaction, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, nil, apperror.ErrDisputeNotFound
		}
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить спор")
	}

	t, err := s.transactions.GetByID(ctx, d.TransactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, nil, apperror.ErrTransactionNotFound
		}
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить сделку")
	}
	return d, t, nil
}

func (s *DisputeService) notify(t *models.Transaction, event string, payload interface{}) {
	if s.notifier == nil || t == nil {
		return
	}
	buyerID, sellerID := t.BuyerID, t.SellerID
	goroutine.SafeGo(func() {
		s.notifier.Notify(buyerID, event, payload)
		s.notifier.Notify(sellerID, event, payload)
	})
}
