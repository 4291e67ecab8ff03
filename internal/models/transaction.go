package models

import (
	"github.com/go-playground/validator/v10"
)

// CreditTransaction is a single row in the credit ledger. Rows are
// append-only: the only way to take credit back is to delete the row.
type CreditTransaction struct {
	ID        int64   `db:"id" json:"id"`
	UserID    string  `db:"user_id" json:"user_id" validate:"required"`
	Amount    int     `db:"amount" json:"amount" validate:"required"`
	Reason    string  `db:"reason" json:"reason" validate:"required"`
	DedupKey  *string `db:"dedup_key" json:"dedup_key,omitempty"`
	IssuerID  string  `db:"issuer_id" json:"issuer_id" validate:"required"`
	CreatedAt int64   `db:"created_at" json:"created_at"`
}

// LeaderboardRow is one user's aggregated ledger total.
type LeaderboardRow struct {
	UserID      string `db:"user_id" json:"user_id"`
	DisplayName string `db:"display_name" json:"display_name"`
	Total       int    `db:"total" json:"total"`
}

func (t *CreditTransaction) Validate() error {
	validate := validator.New()
	return validate.Struct(t)
}
