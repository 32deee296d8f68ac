package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleTrainee Role = "TRAINEE"
	RoleWriter  Role = "WRITER"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleTrainee, RoleWriter, RoleAdmin:
		return true
	}
	return false
}

// Account represents a platform user. Balance is never stored; it is derived
// from the ledger and filled in by the wallet service when an account is read.
type Account struct {
	ID          string          `json:"id" db:"id" example:"9f1c0e6a-2d4b-4f4e-8a61-7d1f2b3c4d5e"`
	PhoneNumber string          `json:"phone_number" db:"phone_number" example:"+2348012345678"`
	DisplayName string          `json:"display_name" db:"display_name" example:"Ada"`
	Role        Role            `json:"role" db:"role" example:"TRAINEE"`
	Balance     decimal.Decimal `json:"-" db:"-"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}
