package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus — статус сделки в машине состояний эскроу.
type TransactionStatus string

const (
	StatusPending          TransactionStatus = "pending"
	StatusInProgress       TransactionStatus = "in_progress"
	StatusAwaitingDelivery TransactionStatus = "awaiting_delivery"
	StatusReadyForRelease  TransactionStatus = "ready_for_release"
	StatusCompleted        TransactionStatus = "completed"
	StatusDisputed         TransactionStatus = "disputed"
	StatusCancelled        TransactionStatus = "cancelled"
)

// transitions — полная таблица разрешённых переходов. Всё, чего здесь
// нет, отклоняется как InvalidTransition, включая повторное применение
// того же перехода.
var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:          {StatusInProgress, StatusCancelled},
	StatusInProgress:       {StatusAwaitingDelivery, StatusReadyForRelease, StatusDisputed},
	StatusAwaitingDelivery: {StatusReadyForRelease, StatusDisputed},
	StatusReadyForRelease:  {StatusCompleted, StatusDisputed},
	StatusDisputed:         {StatusCompleted, StatusCancelled},
	StatusCompleted:        {},
	StatusCancelled:        {},
}

func (s TransactionStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal сообщает, является ли статус конечным.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// EscrowActive сообщает, находится ли сделка в фазе удержания эскроу,
// из которой можно открыть спор.
func (s TransactionStatus) EscrowActive() bool {
	switch s {
	case StatusInProgress, StatusAwaitingDelivery, StatusReadyForRelease:
		return true
	}
	return false
}

// CanTransitionTo проверяет разрешённость перехода по таблице.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EscrowActiveStatuses возвращает статусы фазы удержания эскроу.
func EscrowActiveStatuses() []TransactionStatus {
	return []TransactionStatus{StatusInProgress, StatusAwaitingDelivery, StatusReadyForRelease}
}

// Transaction описывает сделку между покупателем и продавцом.
// Amount фиксируется при создании и далее неизменен; статус меняет
// только машина состояний.
type Transaction struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	Title       string            `db:"title" json:"title"`
	Description string            `db:"description" json:"description"`
	Amount      float64           `db:"amount" json:"amount"`
	BuyerID     uuid.UUID         `db:"buyer_id" json:"buyer_id"`
	SellerID    uuid.UUID         `db:"seller_id" json:"seller_id"`
	Status      TransactionStatus `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// IsParty сообщает, является ли пользователь стороной сделки.
func (t *Transaction) IsParty(userID uuid.UUID) bool {
	return t.BuyerID == userID || t.SellerID == userID
}

// Counterparty возвращает вторую сторону сделки.
func (t *Transaction) Counterparty(userID uuid.UUID) uuid.UUID {
	if t.BuyerID == userID {
		return t.SellerID
	}
	return t.BuyerID
}
