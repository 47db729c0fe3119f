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
	// ErrDisputeNotFound возвращается, когда спор не найден.
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrDisputeExists возвращается при попытке открыть второй спор по сделке.
	ErrDisputeExists = errors.New("dispute already exists")
	// ErrDisputeResolved возвращается при повторном разрешении спора.
	ErrDisputeResolved = errors.New("dispute already resolved")
)

const disputeColumns = `id, transaction_id, raised_by_id, reason, resolution, resolved_by_id, is_resolved, created_at, updated_at`

// DisputeRepository отвечает за таблицы disputes и dispute_evidence.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт экземпляр репозитория.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create открывает спор и переводит сделку в disputed одной транзакцией БД.
// Текущий статус сделки проверяется под блокировкой строки: спор допустим
// только пока средства удерживаются в эскроу.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: begin tx %w", err)
	}
	defer tx.Rollback()

	t, err := lockTransaction(ctx, tx, d.TransactionID)
	if err != nil {
		return nil, err
	}
	if !t.Status.EscrowActive() {
		return nil, fmt.Errorf("%w: %s", ErrStatusConflict, t.Status)
	}

	insert := `
		INSERT INTO disputes (transaction_id, raised_by_id, reason)
		VALUES ($1, $2, $3)
		RETURNING id, is_resolved, created_at, updated_at
	`
	if err := tx.QueryRowxContext(ctx, insert, d.TransactionID, d.RaisedByID, d.Reason).
		Scan(&d.ID, &d.IsResolved, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDisputeExists
		}
		return nil, fmt.Errorf("dispute repository: insert %w", err)
	}

	if err := setTransactionStatus(ctx, tx, t, models.StatusDisputed); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("dispute repository: commit %w", err)
	}
	return t, nil
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}
	return &d, nil
}

// GetByTransactionID возвращает спор по сделке.
func (r *DisputeRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE transaction_id = $1`
	if err := r.db.GetContext(ctx, &d, query, transactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by transaction %w", err)
	}
	return &d, nil
}

// ListOpen возвращает неразрешённые споры, старые первыми.
func (r *DisputeRepository) ListOpen(ctx context.Context) ([]models.Dispute, error) {
	var list []models.Dispute
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE is_resolved = FALSE ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &list, query); err != nil {
		return nil, fmt.Errorf("dispute repository: list open %w", err)
	}
	return list, nil
}

// Resolve выносит решение по спору: в одной транзакции БД блокируются спор
// и сделка, эскроу высвобождается в пользу победителя, сделка получает
// финальный статус (completed для продавца, cancelled для покупателя),
// спор помечается разрешённым. Повторное разрешение отсекается блокировкой
// строки спора и проверкой is_resolved.
func (r *DisputeRepository) Resolve(ctx context.Context, disputeID uuid.UUID, resolution string, resolvedByID uuid.UUID, winner string) (*models.Dispute, *models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dispute repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var d models.Dispute
	lockDispute := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &d, lockDispute, disputeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrDisputeNotFound
		}
		return nil, nil, fmt.Errorf("dispute repository: lock dispute %w", err)
	}
	if d.IsResolved {
		return nil, nil, ErrDisputeResolved
	}

	t, err := lockTransaction(ctx, tx, d.TransactionID)
	if err != nil {
		return nil, nil, err
	}
	if t.Status != models.StatusDisputed {
		return nil, nil, fmt.Errorf("%w: %s", ErrStatusConflict, t.Status)
	}

	recipient := t.SellerID
	finalStatus := models.StatusCompleted
	if winner == models.DisputeWinnerBuyer {
		recipient = t.BuyerID
		finalStatus = models.StatusCancelled
	}
	if _, err := settleEscrow(ctx, tx, t, recipient, finalStatus); err != nil {
		return nil, nil, err
	}

	update := `
		UPDATE disputes
		SET resolution = $2, resolved_by_id = $3, is_resolved = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := tx.QueryRowxContext(ctx, update, d.ID, resolution, resolvedByID).Scan(&d.UpdatedAt); err != nil {
		return nil, nil, fmt.Errorf("dispute repository: resolve %w", err)
	}
	d.Resolution = &resolution
	d.ResolvedByID = &resolvedByID
	d.IsResolved = true

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("dispute repository: commit %w", err)
	}
	return &d, t, nil
}

// AddEvidence сохраняет метаданные загруженного файла-доказательства.
func (r *DisputeRepository) AddEvidence(ctx context.Context, e *models.DisputeEvidence) error {
	query := `
		INSERT INTO dispute_evidence (dispute_id, uploaded_by_id, file_name, file_path, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		e.DisputeID, e.UploadedByID, e.FileName, e.FilePath, e.ContentType, e.SizeBytes,
	).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("dispute repository: add evidence %w", err)
	}
	return nil
}

// ListEvidence возвращает доказательства по спору в порядке загрузки.
func (r *DisputeRepository) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	var list []models.DisputeEvidence
	query := `
		SELECT id, dispute_id, uploaded_by_id, file_name, file_path, content_type, size_bytes, created_at
		FROM dispute_evidence
		WHERE dispute_id = $1
		ORDER BY created_at ASC
	`
	if err := r.db.SelectContext(ctx, &list, query, disputeID); err != nil {
		return nil, fmt.Errorf("dispute repository: list evidence %w", err)
	}
	return list, nil
}
