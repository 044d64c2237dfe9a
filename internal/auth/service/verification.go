package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/mail"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
	"github.com/openlearnhub/lms-auth/pkg/cryptox"
	"github.com/openlearnhub/lms-auth/pkg/idx"
	"github.com/openlearnhub/lms-auth/pkg/slogx"
)

var (
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrAlreadyVerified       = errors.New("email already verified")
)

// VerificationService issues and redeems the two ephemeral-token flows:
// email verification (24h tokens) and password reset (1h tokens). Only
// SHA-256 fingerprints of the mailed tokens are persisted, so a database
// leak exposes nothing redeemable.
type VerificationService struct {
	Store    store.Store
	Mail     mail.Sender
	Settings *SettingsService
}

// SendVerificationEmail issues a fresh verification token for the user and
// mails it. If the address is already verified nothing is issued. Issuing
// again while an earlier token is still live is allowed; each token redeems
// independently.
func (s *VerificationService) SendVerificationEmail(ctx context.Context, userID string) error {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	token, err := s.issueToken(ctx, userID, domain.PurposeEmailVerification, domain.EmailVerificationTTL)
	if err != nil {
		return err
	}

	s.deliver(ctx, func(ctx context.Context) error {
		return s.Mail.SendVerificationEmail(ctx, user.Email, user.Name, token)
	})

	log.Info("verification email issued", slog.String("user_id", userID))
	return nil
}

// VerifyEmail redeems a verification token and marks the owning account's
// address as verified. The redeem is a conditional update, so a token that
// is expired, already spent, or simply unknown fails identically.
func (s *VerificationService) VerifyEmail(ctx context.Context, token string) error {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.EphemeralTokens().ConsumeToken(ctx, domain.PurposeEmailVerification, cryptox.FingerprintToken(token), now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return fmt.Errorf("failed to consume token: %w", err)
		}

		if err := tx.Users().MarkEmailVerified(ctx, rec.UserID, now); err != nil {
			return fmt.Errorf("failed to mark email verified: %w", err)
		}

		log.Info("email verified", slog.String("user_id", rec.UserID))
		return nil
	})
}

// EmailVerified reports the verification state of a user's address.
func (s *VerificationService) EmailVerified(ctx context.Context, userID string) (bool, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	return user.EmailVerified, nil
}

// RequestPasswordReset issues a reset token for the account behind the
// given email, if one exists. The caller always gets a nil error for an
// unknown address so responses cannot be used to probe which emails have
// accounts.
func (s *VerificationService) RequestPasswordReset(ctx context.Context, email string) error {
	log := slogx.FromContext(ctx)

	enabled, err := s.Settings.CheckFeature(ctx, domain.FeaturePasswordReset)
	if err != nil {
		return err
	}
	if !enabled {
		return ErrFeatureDisabled
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	token, err := s.issueToken(ctx, user.ID, domain.PurposePasswordReset, domain.PasswordResetTTL)
	if err != nil {
		return err
	}

	s.deliver(ctx, func(ctx context.Context) error {
		return s.Mail.SendPasswordResetEmail(ctx, user.Email, user.Name, token)
	})

	log.Info("password reset issued", slog.String("user_id", user.ID))
	return nil
}

// PeekPasswordResetToken checks a reset token without spending it, so a
// reset form can validate its link before asking for a new password.
func (s *VerificationService) PeekPasswordResetToken(ctx context.Context, token string) error {
	_, err := s.Store.EphemeralTokens().GetActiveToken(ctx, domain.PurposePasswordReset, cryptox.FingerprintToken(token), time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to look up token: %w", err)
	}
	return nil
}

// ResetPassword redeems a reset token and replaces the account's password.
// Consuming the token and writing the new hash happen in one transaction;
// a second submit of the same token changes nothing.
func (s *VerificationService) ResetPassword(ctx context.Context, token string, newPassword string) error {
	log := slogx.FromContext(ctx)

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.EphemeralTokens().ConsumeToken(ctx, domain.PurposePasswordReset, cryptox.FingerprintToken(token), now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return fmt.Errorf("failed to consume token: %w", err)
		}

		if err := tx.Users().UpdatePasswordHash(ctx, rec.UserID, hash); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}

		log.Info("password reset completed", slog.String("user_id", rec.UserID))
		return nil
	})
}

// issueToken mints a 128-bit random token, stores its fingerprint and
// returns the plaintext for mailing.
func (s *VerificationService) issueToken(ctx context.Context, userID string, purpose domain.TokenPurpose, ttl time.Duration) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	err = s.Store.EphemeralTokens().CreateToken(ctx, domain.EphemeralToken{
		ID:        idx.New().String(),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// deliver sends mail in the background so slow or failing providers never
// block or fail the originating request.
func (s *VerificationService) deliver(ctx context.Context, send func(ctx context.Context) error) {
	log := slogx.FromContext(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			log.Error("email delivery failed", slog.Any("error", err))
		}
	}()
}
