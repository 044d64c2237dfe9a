package store

import (
	"context"
	"errors"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// It exposes sub-repositories to keep concerns tidy and testable.
type Store interface {
	Users() Users
	EphemeralTokens() EphemeralTokens
	BackupCodes() BackupCodes
	LoginChallenges() LoginChallenges
	Settings() Settings

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns
	// nil and rolling back otherwise. This is the recommended way to run
	// multi-step mutations that must be atomic (secret promotion, backup
	// code replacement, redeem-then-apply).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login and password reset.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// MarkEmailVerified flips email_verified and stamps the time.
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) error

	// SetPendingTwoFactorSecret stores the setup-phase secret without
	// touching the active one. Re-invoking setup simply overwrites it.
	SetPendingTwoFactorSecret(ctx context.Context, userID string, secret string) error

	// ActivateTwoFactor promotes secret to the active slot, sets
	// two_factor_enabled and clears the pending slot in one statement, so
	// there is no observable state with both or neither secret present.
	ActivateTwoFactor(ctx context.Context, userID string, secret string) error

	// DisableTwoFactor clears the active secret, the enabled flag and any
	// stray pending secret.
	DisableTwoFactor(ctx context.Context, userID string) error

	// DeleteUser cascades to ephemeral tokens, backup codes and challenges.
	DeleteUser(ctx context.Context, userID string) error
}

type EphemeralTokens interface {
	// CreateToken writes a new verification or reset token record
	// (token_hash is the SHA-256 fingerprint of the mailed token).
	CreateToken(ctx context.Context, t domain.EphemeralToken) error

	// GetActiveToken returns an unconsumed, unexpired token by purpose and
	// hash. Used for non-consuming pre-flight checks.
	GetActiveToken(ctx context.Context, purpose domain.TokenPurpose, hash string, now time.Time) (domain.EphemeralToken, error)

	// ConsumeToken atomically marks the matching unconsumed, unexpired
	// token as consumed and returns it. Concurrent redeems of the same
	// token race to exactly one winner; losers get ErrNotFound.
	ConsumeToken(ctx context.Context, purpose domain.TokenPurpose, hash string, now time.Time) (domain.EphemeralToken, error)

	// DeleteExpiredTokens is housekeeping.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

type BackupCodes interface {
	// CreateBackupCode stores one backup code hash for a user.
	CreateBackupCode(ctx context.Context, userID string, codeHash string) error

	// ConsumeBackupCode removes the matching hash and reports whether a row
	// was removed. The single DELETE is the compare-and-set that prevents
	// double-spend of a code under concurrent submissions.
	ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error)

	// DeleteAllBackupCodes removes every code for a user (regeneration,
	// 2FA disable).
	DeleteAllBackupCodes(ctx context.Context, userID string) error

	// CountBackupCodes returns how many unused codes remain.
	CountBackupCodes(ctx context.Context, userID string) (int, error)
}

type LoginChallenges interface {
	// CreateChallenge stores a pending-authentication context.
	CreateChallenge(ctx context.Context, c domain.LoginChallenge) error

	// GetActiveChallenge returns an unexpired challenge by token hash.
	GetActiveChallenge(ctx context.Context, tokenHash string, now time.Time) (domain.LoginChallenge, error)

	// IncrementChallengeAttempts bumps the failed-attempt counter and
	// returns the new count.
	IncrementChallengeAttempts(ctx context.Context, id string) (int, error)

	// DeleteChallenge removes a challenge. Returns ErrNotFound when it was
	// already removed, which completion paths treat as "lost the race".
	DeleteChallenge(ctx context.Context, id string) error

	// DeleteExpiredChallenges is housekeeping.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) error
}

type Settings interface {
	// GetSettings returns the singleton settings document, or ErrNotFound
	// when none has been saved yet (callers fall back to defaults).
	GetSettings(ctx context.Context) (domain.Settings, error)

	// UpsertSettings creates or replaces the singleton document.
	UpsertSettings(ctx context.Context, s domain.Settings) error
}
