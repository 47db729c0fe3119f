package models

import (
	"time"

	"github.com/google/uuid"
)

// Сторона-победитель при разрешении спора.
const (
	DisputeWinnerBuyer  = "buyer"
	DisputeWinnerSeller = "seller"
)

// Dispute — спор по сделке. На сделку допускается не более одного спора;
// IsResolved монотонен, повторного открытия нет.
type Dispute struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	TransactionID uuid.UUID  `db:"transaction_id" json:"transaction_id"`
	RaisedByID    uuid.UUID  `db:"raised_by_id" json:"raised_by_id"`
	Reason        string     `db:"reason" json:"reason"`
	Resolution    *string    `db:"resolution" json:"resolution,omitempty"`
	ResolvedByID  *uuid.UUID `db:"resolved_by_id" json:"resolved_by_id,omitempty"`
	IsResolved    bool       `db:"is_resolved" json:"is_resolved"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// DisputeEvidence — файл-доказательство, приложенный стороной спора.
type DisputeEvidence struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DisputeID    uuid.UUID `db:"dispute_id" json:"dispute_id"`
	UploadedByID uuid.UUID `db:"uploaded_by_id" json:"uploaded_by_id"`
	FileName     string    `db:"file_name" json:"file_name"`
	FilePath     string    `db:"file_path" json:"-"`
	ContentType  string    `db:"content_type" json:"content_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
