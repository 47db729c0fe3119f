package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/safedealhq/safedeal-backend/internal/models"
	"github.com/safedealhq/safedeal-backend/internal/pkg/apperror"
	"github.com/safedealhq/safedeal-backend/internal/repository"
	"github.com/safedealhq/safedeal-backend/internal/validation"
)

// LedgerUserRepository — леджер-операции над балансом пользователя.
type LedgerUserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Credit(ctx context.Context, userID uuid.UUID, amount float64) (float64, error)
}

// LedgerTransactionRepository — чтение сделок для истории баланса.
type LedgerTransactionRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// LedgerService отвечает за баланс: пополнение, чтение и историю.
type LedgerService struct {
	users        LedgerUserRepository
	transactions LedgerTransactionRepository
}

// NewLedgerService создаёт сервис баланса.
func NewLedgerService(users LedgerUserRepository, transactions LedgerTransactionRepository) *LedgerService {
	return &LedgerService{users: users, transactions: transactions}
}

// GetBalance возвращает текущий баланс пользователя.
func (s *LedgerService) GetBalance(ctx context.Context, userID uuid.UUID) (float64, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, apperror.ErrUserNotFound
		}
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить баланс")
	}
	return user.Balance, nil
}

// Deposit пополняет баланс пользователя и возвращает новое значение.
// Источник средств (платёжный провайдер) остаётся за пределами сервиса —
// сюда приходит уже подтверждённая сумма.
func (s *LedgerService) Deposit(ctx context.Context, userID uuid.UUID, amount float64) (float64, error) {
	if err := validation.ValidateAmount(amount); err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	balance, err := s.users.Credit(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, apperror.ErrUserNotFound
		}
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось пополнить баланс")
	}
	return balance, nil
}

// History строит историю движения средств из сделок пользователя:
// покупки — списания, завершённые продажи — зачисления, незавершённые
// продажи — ожидаемые поступления.
func (s *LedgerService) History(ctx context.Context, userID uuid.UUID) ([]models.BalanceEntry, error) {
	transactions, err := s.transactions.ListByUser(ctx, userID, 100, 0)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить историю баланса")
	}

	entries := make([]models.BalanceEntry, 0, len(transactions))
	for _, t := range transactions {
		switch {
		case t.BuyerID == userID && t.Status != models.StatusCancelled:
			entries = append(entries, models.BalanceEntry{
				ID:          t.ID,
				Type:        models.BalanceEntryDebit,
				Description: fmt.Sprintf("Оплата по сделке «%s»", t.Title),
				Amount:      -t.Amount,
				Date:        t.CreatedAt,
			})
		case t.SellerID == userID && t.Status == models.StatusCompleted:
			entries = append(entries, models.BalanceEntry{
				ID:          t.ID,
				Type:        models.BalanceEntryCredit,
				Description: fmt.Sprintf("Выплата по сделке «%s»", t.Title),
				Amount:      t.Amount,
				Date:        t.UpdatedAt,
			})
		case t.SellerID == userID && !t.Status.IsTerminal():
			entries = append(entries, models.BalanceEntry{
				ID:          t.ID,
				Type:        models.BalanceEntryPending,
				Description: fmt.Sprintf("Ожидается по сделке «%s»", t.Title),
				Amount:      t.Amount,
				Date:        t.UpdatedAt,
			})
		}
	}
	return entries, nil
}
