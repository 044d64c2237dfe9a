package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
	"github.com/openlearnhub/lms-auth/pkg/cryptox"
	"github.com/openlearnhub/lms-auth/pkg/qrx"
	"github.com/openlearnhub/lms-auth/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	backupCodeCount = 10 // Number of backup codes per batch

	totpPeriod     = 30 // Standard time step in seconds
	totpSkew       = 2  // Accepted steps either side (absorbs +-60s clock drift)
	totpSecretSize = 20 // 160-bit shared secret
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrNoPendingSetup     = errors.New("two-factor setup not initiated")
	ErrNotEnabled         = errors.New("two-factor authentication not enabled")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTwoFactorDisabled  = errors.New("two-factor authentication is disabled by policy")
)

// TwoFactorService manages the Disabled -> PendingSetup -> Enabled lifecycle
// of a user's TOTP material and the backup-code vault.
type TwoFactorService struct {
	Store  store.Store
	Issuer string // Issuer name shown in authenticator apps
}

// BeginSetup generates a fresh shared secret, stores it in the pending slot
// without touching an already-active secret, and returns the secret with its
// provisioning URI and QR code. Re-invoking overwrites the previous pending
// secret, so an abandoned setup has no lasting effect.
func (s *TwoFactorService) BeginSetup(ctx context.Context, userID string) (domain.TwoFactorSetupResponse, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TwoFactorSetupResponse{}, ErrUserNotFound
		}
		return domain.TwoFactorSetupResponse{}, fmt.Errorf("failed to load user: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TwoFactorSetupResponse{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	if err := s.Store.Users().SetPendingTwoFactorSecret(ctx, userID, key.Secret()); err != nil {
		return domain.TwoFactorSetupResponse{}, fmt.Errorf("failed to store pending secret: %w", err)
	}

	qrCode, err := qrx.DataURL(key.URL(), 0)
	if err != nil {
		return domain.TwoFactorSetupResponse{}, fmt.Errorf("failed to render QR code: %w", err)
	}

	log.Debug("two-factor setup initiated", slog.String("user_id", userID))

	return domain.TwoFactorSetupResponse{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCode:          qrCode,
	}, nil
}

// ConfirmSetup verifies the submitted code against the pending secret and,
// on success, promotes it to the active slot and generates the first batch
// of backup codes. The promotion clears the pending slot in the same
// statement, and the backup codes land in the same transaction.
func (s *TwoFactorService) ConfirmSetup(ctx context.Context, userID string, code string) ([]string, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if user.PendingTwoFactorSecret == nil || *user.PendingTwoFactorSecret == "" {
		return nil, ErrNoPendingSetup
	}
	secret := *user.PendingTwoFactorSecret

	if !validateTOTP(code, secret) {
		return nil, ErrInvalidCode
	}

	backupCodes, err := newBackupCodeBatch()
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().ActivateTwoFactor(ctx, userID, secret); err != nil {
			return fmt.Errorf("failed to activate two-factor: %w", err)
		}

		// The first batch replaces anything a previous enrolment left behind.
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("failed to clear old backup codes: %w", err)
		}
		for _, plain := range backupCodes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, userID, cryptox.FingerprintToken(plain)); err != nil {
				return fmt.Errorf("failed to store backup code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("two-factor enabled", slog.String("user_id", userID))
	return backupCodes, nil
}

// VerifyLogin verifies a TOTP code against the active secret.
func (s *TwoFactorService) VerifyLogin(ctx context.Context, userID string, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil || *user.TwoFactorSecret == "" {
		return ErrNotEnabled
	}

	if !validateTOTP(code, *user.TwoFactorSecret) {
		return ErrInvalidCode
	}
	return nil
}

// Disable turns two-factor off after re-verifying the password AND a
// current TOTP code. On success the active secret, any stray pending secret
// and all backup codes are removed together; on any failure nothing changes.
func (s *TwoFactorService) Disable(ctx context.Context, userID string, password string, code string) error {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return ErrNotEnabled
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			log.Warn("two-factor disable rejected: bad password", slog.String("user_id", userID))
			return ErrInvalidCredentials
		}
		return err
	}

	if !validateTOTP(code, *user.TwoFactorSecret) {
		return ErrInvalidCode
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete backup codes: %w", err)
		}
		if err := tx.Users().DisableTwoFactor(ctx, userID); err != nil {
			return fmt.Errorf("failed to disable two-factor: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("two-factor disabled", slog.String("user_id", userID))
	return nil
}

// Enabled reports whether two-factor authentication is active for a user.
func (s *TwoFactorService) Enabled(ctx context.Context, userID string) (bool, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	return user.TwoFactorEnabled, nil
}

// GenerateBackupCodes replaces the user's entire vault with a fresh batch
// and returns the plaintext codes, shown exactly once. Old codes become
// invalid even if unused.
func (s *TwoFactorService) GenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.Store.Users().GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	backupCodes, err := newBackupCodeBatch()
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete old backup codes: %w", err)
		}
		for _, plain := range backupCodes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, userID, cryptox.FingerprintToken(plain)); err != nil {
				return fmt.Errorf("failed to store backup code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return backupCodes, nil
}

// ConsumeBackupCode spends a recovery code. The store-level conditional
// delete guarantees a code verifies at most once even under concurrent
// submissions.
func (s *TwoFactorService) ConsumeBackupCode(ctx context.Context, userID string, code string) error {
	ok, err := s.Store.BackupCodes().ConsumeBackupCode(ctx, userID, cryptox.FingerprintToken(code))
	if err != nil {
		return fmt.Errorf("failed to consume backup code: %w", err)
	}
	if !ok {
		return ErrInvalidCode
	}
	return nil
}

func newBackupCodeBatch() ([]string, error) {
	codes := make([]string, backupCodeCount)
	for i := range backupCodeCount {
		code, err := cryptox.GenerateBackupCode()
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

// validateTOTP checks a submitted code against a base32 secret using the
// standard 30-second step with a +-2 step tolerance window.
func validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
