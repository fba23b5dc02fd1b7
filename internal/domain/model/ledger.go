package model

import (
	"time"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
)

// LedgerEntry is an immutable audit record of a single balance change.
// Amount is signed: positive credits the balance, negative debits it.
type LedgerEntry struct {
	ID          int64            `json:"id"`
	UserID      int64            `json:"user_id"`
	Kind        enums.LedgerKind `json:"kind"`
	Currency    enums.Currency   `json:"currency"`
	Amount      int64            `json:"amount"`
	Description string           `json:"description"`
	ReferenceID *string          `json:"reference_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
