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
	// ErrEscrowNotFound возвращается, когда эскроу-запись не найдена.
	ErrEscrowNotFound = errors.New("escrow not found")
	// ErrEscrowExists возвращается при попытке создать второй эскроу для сделки.
	ErrEscrowExists = errors.New("escrow already exists")
	// ErrEscrowReleased возвращается, когда эскроу уже был высвобожден ранее.
	ErrEscrowReleased = errors.New("escrow already released")
)

const escrowColumns = `id, transaction_id, amount, released, release_date, created_at`

// EscrowRepository отвечает за таблицу escrows и денежные развязки сделок.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository создаёт экземпляр репозитория.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// GetByID возвращает эскроу по идентификатору.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	var e models.Escrow
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE id = $1`
	if err := r.db.GetContext(ctx, &e, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by id %w", err)
	}
	return &e, nil
}

// GetByTransactionID возвращает эскроу сделки.
func (r *EscrowRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Escrow, error) {
	var e models.Escrow
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE transaction_id = $1`
	if err := r.db.GetContext(ctx, &e, query, transactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by transaction %w", err)
	}
	return &e, nil
}

// ReleaseToSeller высвобождает эскроу в пользу продавца: CAS-пометка
// released, зачисление суммы продавцу и перевод сделки в completed — одна
// транзакция БД. Ожидаемый текущий статус — ready_for_release; любое
// расхождение сериализованно отклоняется под блокировкой строки.
func (r *EscrowRepository) ReleaseToSeller(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, *models.Escrow, error) {
	return r.settle(ctx, transactionID, models.StatusReadyForRelease, models.StatusCompleted, false)
}

// RefundToBuyer возвращает эскроу покупателю при отмене сделки в статусе
// pending. Механика та же, что у ReleaseToSeller: один денежный перевод
// на эскроу, атомарно с переводом статуса.
func (r *EscrowRepository) RefundToBuyer(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, *models.Escrow, error) {
	return r.settle(ctx, transactionID, models.StatusPending, models.StatusCancelled, true)
}

func (r *EscrowRepository) settle(ctx context.Context, transactionID uuid.UUID, from, to models.TransactionStatus, toBuyer bool) (*models.Transaction, *models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("escrow repository: begin tx %w", err)
	}
	defer tx.Rollback()

	t, err := lockTransaction(ctx, tx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	if t.Status != from {
		return nil, nil, fmt.Errorf("%w: %s", ErrStatusConflict, t.Status)
	}

	recipient := t.SellerID
	if toBuyer {
		recipient = t.BuyerID
	}
	e, err := settleEscrow(ctx, tx, t, recipient, to)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("escrow repository: commit %w", err)
	}
	return t, e, nil
}

// settleEscrow выполняет денежную развязку сделки внутри уже открытой
// транзакции: блокирует эскроу, помечает его высвобожденным через CAS,
// зачисляет сумму получателю и записывает финальный статус сделки.
// Строка сделки должна быть уже заблокирована вызывающей стороной;
// порядок блокировок — сделка, затем эскроу, затем баланс пользователя.
func settleEscrow(ctx context.Context, tx *sqlx.Tx, t *models.Transaction, recipientID uuid.UUID, to models.TransactionStatus) (*models.Escrow, error) {
	var e models.Escrow
	lockQuery := `SELECT ` + escrowColumns + ` FROM escrows WHERE transaction_id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &e, lockQuery, t.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: lock escrow %w", err)
	}
	if e.Released {
		// Сделка ещё в активном статусе, а эскроу уже высвобожден —
		// рассинхронизация, требующая ручного разбора.
		return nil, ErrEscrowReleased
	}

	releaseQuery := `
		UPDATE escrows SET released = TRUE, release_date = NOW()
		WHERE id = $1 AND released = FALSE
		RETURNING release_date
	`
	if err := tx.QueryRowxContext(ctx, releaseQuery, e.ID).Scan(&e.ReleaseDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowReleased
		}
		return nil, fmt.Errorf("escrow repository: release %w", err)
	}
	e.Released = true

	if _, err := creditBalance(ctx, tx, recipientID, e.Amount); err != nil {
		return nil, err
	}

	if err := setTransactionStatus(ctx, tx, t, to); err != nil {
		return nil, err
	}
	return &e, nil
}
