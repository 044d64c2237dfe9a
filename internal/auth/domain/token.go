package domain

import "time"

// TokenPurpose discriminates the two ephemeral-token flows. Purposes are
// part of the lookup key, so a verification token can never redeem a reset.
type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// Default TTLs per purpose.
const (
	EmailVerificationTTL = 24 * time.Hour
	PasswordResetTTL     = time.Hour
)

// EphemeralToken is a short-lived, single-use credential record. Only the
// SHA-256 fingerprint of the mailed token is persisted.
type EphemeralToken struct {
	ID         string
	UserID     string
	Purpose    TokenPurpose
	TokenHash  string
	ExpiresAt  time.Time
	Consumed   bool
	ConsumedAt *time.Time
	CreatedAt  time.Time
}
