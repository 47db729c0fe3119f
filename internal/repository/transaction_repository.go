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
	// ErrTransactionNotFound возвращается, когда сделка не найдена.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrStatusConflict возвращается, когда сохранённый статус сделки
	// не допускает запрошенный переход.
	ErrStatusConflict = errors.New("transaction status conflict")
)

const transactionColumns = `id, buyer_id, seller_id, title, description, amount, status, created_at, updated_at`

// TransactionRepository отвечает за таблицу transactions и жизненный цикл сделки.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository создаёт экземпляр репозитория.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateFunded создаёт сделку и сразу фондирует её эскроу: списание с баланса
// покупателя, вставка сделки и вставка эскроу выполняются одной транзакцией
// БД. Либо все три шага фиксируются, либо ни один — деньги не могут уйти с
// баланса без появления эскроу-записи.
func (r *TransactionRepository) CreateFunded(ctx context.Context, t *models.Transaction) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: begin tx %w", err)
	}
	defer tx.Rollback()

	if _, err := debitBalance(ctx, tx, t.BuyerID, t.Amount); err != nil {
		return nil, err
	}

	insertTransaction := `
		INSERT INTO transactions (buyer_id, seller_id, title, description, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	t.Status = models.StatusPending
	if err := tx.QueryRowxContext(
		ctx, insertTransaction,
		t.BuyerID, t.SellerID, t.Title, t.Description, t.Amount, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("transaction repository: insert transaction %w", err)
	}

	escrow := &models.Escrow{
		TransactionID: t.ID,
		Amount:        t.Amount,
	}
	insertEscrow := `
		INSERT INTO escrows (transaction_id, amount)
		VALUES ($1, $2)
		RETURNING id, released, created_at
	`
	if err := tx.QueryRowxContext(ctx, insertEscrow, escrow.TransactionID, escrow.Amount).
		Scan(&escrow.ID, &escrow.Released, &escrow.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEscrowExists
		}
		return nil, fmt.Errorf("transaction repository: insert escrow %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("transaction repository: commit %w", err)
	}

	return escrow, nil
}

// GetByID возвращает сделку по идентификатору.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction repository: get by id %w", err)
	}
	return &t, nil
}

// ListByUser возвращает сделки, где пользователь — покупатель или продавец,
// новые первыми.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var list []models.Transaction
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &list, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("transaction repository: list by user %w", err)
	}
	return list, nil
}

// UpdateStatusFrom переводит сделку в статус to при условии, что её текущий
// сохранённый статус равен from. Строка блокируется SELECT ... FOR UPDATE,
// поэтому два конкурентных перехода сериализуются: второй увидит уже
// обновлённый статус и получит ErrStatusConflict.
func (r *TransactionRepository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to models.TransactionStatus) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: begin tx %w", err)
	}
	defer tx.Rollback()

	t, err := lockTransaction(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != from {
		return nil, fmt.Errorf("%w: %s", ErrStatusConflict, t.Status)
	}

	if err := setTransactionStatus(ctx, tx, t, to); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("transaction repository: commit %w", err)
	}
	return t, nil
}

// lockTransaction читает сделку с блокировкой строки до конца транзакции.
func lockTransaction(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction repository: lock transaction %w", err)
	}
	return &t, nil
}

// setTransactionStatus записывает новый статус внутри открытой транзакции.
func setTransactionStatus(ctx context.Context, tx *sqlx.Tx, t *models.Transaction, to models.TransactionStatus) error {
	query := `UPDATE transactions SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	if err := tx.QueryRowxContext(ctx, query, t.ID, to).Scan(&t.UpdatedAt); err != nil {
		return fmt.Errorf("transaction repository: update status %w", err)
	}
	t.Status = to
	return nil
}
