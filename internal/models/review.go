package models

import (
	"time"

	"github.com/google/uuid"
)

// Review — отзыв стороны сделки о контрагенте. Создаётся только после
// завершения сделки, не более одного на сделку.
type Review struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TransactionID uuid.UUID `db:"transaction_id" json:"transaction_id"`
	ReviewerID    uuid.UUID `db:"reviewer_id" json:"reviewer_id"`
	RevieweeID    uuid.UUID `db:"reviewee_id" json:"reviewee_id"`
	Rating        int       `db:"rating" json:"rating"`
	Comment       string    `db:"comment" json:"comment"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
