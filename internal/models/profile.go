package models

import (
	"github.com/go-playground/validator/v10"
)

const (
	RoleStudent   = "student"
	RoleOrganizer = "organizer"
)

// Profile is the user record the ledger aggregates against. The total
// credit balance is derived from the ledger, never stored here.
type Profile struct {
	ID          string `db:"id" json:"id" validate:"required"`
	DisplayName string `db:"display_name" json:"display_name" validate:"required"`
	Role        string `db:"role" json:"role" validate:"required,oneof=student organizer"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
}

func (p *Profile) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}
