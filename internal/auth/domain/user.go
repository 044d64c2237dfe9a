package domain

import "time"

// Roles assignable to LMS users.
const (
	RoleStudent     = "student"
	RoleFacilitator = "facilitator"
	RoleAdmin       = "admin"
)

type User struct {
	ID           string
	Email        string // unique
	Name         string
	PasswordHash string // bcrypt encoded
	Role         string

	EmailVerified   bool
	EmailVerifiedAt *time.Time

	// TwoFactorSecret is the active TOTP secret (base32), present only once
	// setup has been confirmed. PendingTwoFactorSecret exists only between
	// BeginSetup and ConfirmSetup; the two are never both authoritative.
	// Invariant: TwoFactorEnabled implies TwoFactorSecret != nil and
	// PendingTwoFactorSecret == nil.
	TwoFactorEnabled       bool
	TwoFactorSecret        *string
	PendingTwoFactorSecret *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
