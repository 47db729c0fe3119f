package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей. Роль — справочный атрибут: любой пользователь может
// выступать покупателем или продавцом в конкретной сделке, роль admin
// дополнительно открывает разрешение споров и выплату за покупателя.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User описывает пользователя площадки. Balance — единственный
// авторитетный запас средств; меняется только леджер-операциями.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Balance      float64   `db:"balance" json:"balance"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IsAdmin сообщает, обладает ли пользователь административными правами.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// BalanceEntry — строка истории баланса, производная от сделок пользователя.
type BalanceEntry struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
}

// Типы строк истории баланса.
const (
	BalanceEntryCredit  = "credit"
	BalanceEntryDebit   = "debit"
	BalanceEntryPending = "pending"
)
