// Package jwtx issues and verifies the EdDSA-signed session tokens minted
// after a successful login.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime for session tokens.
const DefaultSessionTTL = 24 * time.Hour

// Authentication Method References recorded in the "amr" claim.
const (
	AMRPassword = "pwd" // Password-based authentication
	AMRMFA      = "mfa" // A second factor (TOTP or backup code) was verified
)

// Claims are the session-token claims shared across the LMS services.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user.
	Email string `json:"email,omitempty"`

	// Role is the coarse authorization role ("student", "facilitator", "admin").
	Role string `json:"role,omitempty"`

	// EmailVerified mirrors the user record at issuance time.
	EmailVerified bool `json:"email_verified,omitempty"`

	// AMR lists how the user authenticated, e.g. ["pwd","mfa"].
	AMR []string `json:"amr,omitempty"`
}

// NewSessionClaims builds claims for a freshly authenticated user.
func NewSessionClaims(
	subject, email, role string,
	emailVerified bool,
	amr []string,
	issuer string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        newJTI(),
		},
		Email:         email,
		Role:          role,
		EmailVerified: emailVerified,
		AMR:           amr,
	}
}

// newJTI returns a URL-safe random identifier for the "jti" claim.
func newJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
