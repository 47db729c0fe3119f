package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/safedealhq/safedeal-backend/internal/models"
)

var (
	// ErrUserNotFound возвращается, когда запись пользователя не найдена.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists возвращается при конфликте уникальности email/username.
	ErrUserExists = errors.New("user already exists")
	// ErrInsufficientFunds возвращается, когда списание превышает баланс.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

const userColumns = `id, email, username, password_hash, role, balance, created_at, updated_at`

// UserRepository отвечает за таблицу users и леджер-операции над балансом.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя с нулевым балансом.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, balance, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Email, user.Username, user.PasswordHash, user.Role,
	).Scan(&user.ID, &user.Balance, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}
	return &user, nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}
	return &user, nil
}

// GetByUsername возвращает пользователя по имени.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by username %w", err)
	}
	return &user, nil
}

// Credit атомарно увеличивает баланс пользователя на amount и возвращает
// новое значение. Относительное обновление одним запросом — никаких
// read-then-write, чтобы параллельные зачисления не терялись.
func (r *UserRepository) Credit(ctx context.Context, userID uuid.UUID, amount float64) (float64, error) {
	return creditBalance(ctx, r.db, userID, amount)
}

// Debit атомарно списывает amount с баланса. Проверка достаточности
// средств и само списание выполняются одним запросом: два конкурентных
// списания не могут одновременно пройти проверку и увести баланс в минус.
func (r *UserRepository) Debit(ctx context.Context, userID uuid.UUID, amount float64) (float64, error) {
	return debitBalance(ctx, r.db, userID, amount)
}

// creditBalance — леджер-зачисление, пригодное и для вызова внутри транзакции.
func creditBalance(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, amount float64) (float64, error) {
	var balance float64
	query := `
		UPDATE users SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING balance
	`
	if err := sqlx.GetContext(ctx, q, &balance, query, userID, amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("user repository: credit %w", err)
	}
	return balance, nil
}

// debitBalance — леджер-списание с атомарной проверкой баланса.
func debitBalance(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, amount float64) (float64, error) {
	var balance float64
	query := `
		UPDATE users SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING balance
	`
	err := sqlx.GetContext(ctx, q, &balance, query, userID, amount)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user repository: debit %w", err)
	}

	// Ни одной строки: либо пользователя нет, либо не хватает средств.
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
		return 0, fmt.Errorf("user repository: debit check %w", err)
	}
	if !exists {
		return 0, ErrUserNotFound
	}
	return 0, ErrInsufficientFunds
}

// isUniqueViolation распознаёт нарушение уникального ограничения PostgreSQL.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
