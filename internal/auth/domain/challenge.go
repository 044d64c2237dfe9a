package domain

import "time"

// LoginChallengeTTL bounds how long a password-verified login may wait for
// its second factor.
const LoginChallengeTTL = 5 * time.Minute

// MaxChallengeAttempts caps failed second-factor submissions per challenge.
const MaxChallengeAttempts = 5

// LoginChallenge is the pending-authentication context issued after a
// successful password check when 2FA is enabled. The client holds the
// opaque challenge token; only its fingerprint is stored. A session is
// minted solely by presenting this token together with a valid TOTP or
// backup code.
type LoginChallenge struct {
	ID        string
	UserID    string
	TokenHash string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ChallengeResponse is returned by login when a second factor is required.
type ChallengeResponse struct {
	TwoFactorRequired bool     `json:"two_factor_required"` // always true
	ChallengeToken    string   `json:"challenge_token"`
	Methods           []string `json:"methods"` // e.g. ["totp", "backup_code"]
	ExpiresIn         int64    `json:"expires_in"`
}

// Second-factor method names accepted when completing a challenge.
const (
	MethodTOTP       = "totp"
	MethodBackupCode = "backup_code"
)
