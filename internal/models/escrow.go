package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow — средства, удержанные по сделке до выплаты. Released монотонен:
// false -> true ровно один раз, ReleaseDate проставляется в тот же момент.
type Escrow struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	TransactionID uuid.UUID  `db:"transaction_id" json:"transaction_id"`
	Amount        float64    `db:"amount" json:"amount"`
	Released      bool       `db:"released" json:"released"`
	ReleaseDate   *time.Time `db:"release_date" json:"release_date,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
