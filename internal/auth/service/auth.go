package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
	"github.com/openlearnhub/lms-auth/pkg/cryptox"
	"github.com/openlearnhub/lms-auth/pkg/idx"
	"github.com/openlearnhub/lms-auth/pkg/jwtx"
	"github.com/openlearnhub/lms-auth/pkg/slogx"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrInvalidChallenge   = errors.New("invalid or expired challenge")
	ErrTooManyAttempts    = errors.New("too many failed attempts")
	ErrUnsupportedMethod  = errors.New("unsupported second-factor method")
	ErrEmailNotVerified   = errors.New("email address not verified")
)

// LoginResult is the outcome of the first login step. Exactly one of
// Tokens or Challenge is set: a session is minted directly only when the
// account has no second factor, otherwise the caller must complete the
// returned challenge.
type LoginResult struct {
	Tokens    *domain.TokenPair
	Challenge *domain.ChallengeResponse
}

// AuthService orchestrates registration, the two-step login flow and
// session minting.
type AuthService struct {
	Store        store.Store
	Signer       *jwtx.Signer
	Settings     *SettingsService
	TwoFactor    *TwoFactorService
	Verification *VerificationService

	SessionTTL time.Duration
}

// Register creates a new account subject to the registration mode. In
// "open" mode anyone may register; "invite" and "closed" both reject
// self-service signups here (invites are redeemed elsewhere). When email
// verification is required a verification token is issued immediately.
func (s *AuthService) Register(ctx context.Context, email, name, password string) (domain.User, error) {
	log := slogx.FromContext(ctx)

	mode, err := s.Settings.RegistrationMode(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if mode != domain.RegistrationOpen {
		return domain.User{}, ErrRegistrationClosed
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         domain.RoleStudent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info("user registered", slog.String("user_id", user.ID))

	verificationRequired, err := s.Settings.CheckFeature(ctx, domain.FeatureEmailVerification)
	if err == nil && verificationRequired {
		if err := s.Verification.SendVerificationEmail(ctx, user.ID); err != nil {
			log.Error("failed to issue verification email", slog.Any("error", err))
		}
	}

	return user, nil
}

// Login performs the first authentication step. A wrong email and a wrong
// password fail identically. When the account has two-factor enabled the
// password check alone NEVER yields a session; a challenge is returned and
// the second step mints the tokens.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so unknown emails are not distinguishable
			// by response latency.
			_ = cryptox.VerifyPassword(password, dummyHash)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("failed to load user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			log.Warn("login rejected: bad password", slog.String("user_id", user.ID))
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	verificationRequired, err := s.Settings.CheckFeature(ctx, domain.FeatureEmailVerification)
	if err != nil {
		return LoginResult{}, err
	}
	if verificationRequired && !user.EmailVerified {
		return LoginResult{}, ErrEmailNotVerified
	}

	twoFactorAllowed, err := s.Settings.CheckFeature(ctx, domain.FeatureTwoFactor)
	if err != nil {
		return LoginResult{}, err
	}

	if user.TwoFactorEnabled && twoFactorAllowed {
		challenge, err := s.issueChallenge(ctx, user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		log.Info("login pending second factor", slog.String("user_id", user.ID))
		return LoginResult{Challenge: challenge}, nil
	}

	tokens, err := s.mintSession(user, []string{jwtx.AMRPassword})
	if err != nil {
		return LoginResult{}, err
	}
	log.Info("login succeeded", slog.String("user_id", user.ID))
	return LoginResult{Tokens: &tokens}, nil
}

// CompleteTwoFactor finishes a pending login with a TOTP code or a backup
// code. Failed submissions count against the challenge; hitting the cap
// invalidates it and the password step must be repeated. On success the
// challenge is deleted first, so two concurrent completions of the same
// challenge mint at most one session.
func (s *AuthService) CompleteTwoFactor(ctx context.Context, challengeToken, method, code string) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	challenge, err := s.Store.LoginChallenges().GetActiveChallenge(ctx, cryptox.FingerprintToken(challengeToken), now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidChallenge
		}
		return domain.TokenPair{}, fmt.Errorf("failed to load challenge: %w", err)
	}
	if challenge.Attempts >= domain.MaxChallengeAttempts {
		return domain.TokenPair{}, ErrTooManyAttempts
	}

	var verifyErr error
	switch method {
	case domain.MethodTOTP:
		verifyErr = s.TwoFactor.VerifyLogin(ctx, challenge.UserID, code)
	case domain.MethodBackupCode:
		verifyErr = s.TwoFactor.ConsumeBackupCode(ctx, challenge.UserID, code)
	default:
		return domain.TokenPair{}, ErrUnsupportedMethod
	}

	if verifyErr != nil {
		if !errors.Is(verifyErr, ErrInvalidCode) {
			return domain.TokenPair{}, verifyErr
		}
		attempts, incErr := s.Store.LoginChallenges().IncrementChallengeAttempts(ctx, challenge.ID)
		if incErr != nil && !errors.Is(incErr, store.ErrNotFound) {
			return domain.TokenPair{}, fmt.Errorf("failed to record attempt: %w", incErr)
		}
		if attempts >= domain.MaxChallengeAttempts {
			_ = s.Store.LoginChallenges().DeleteChallenge(ctx, challenge.ID)
			log.Warn("challenge invalidated after too many attempts", slog.String("user_id", challenge.UserID))
			return domain.TokenPair{}, ErrTooManyAttempts
		}
		return domain.TokenPair{}, ErrInvalidCode
	}

	// Deleting the challenge is the commit point. Losing this race means
	// another request already completed it.
	if err := s.Store.LoginChallenges().DeleteChallenge(ctx, challenge.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidChallenge
		}
		return domain.TokenPair{}, fmt.Errorf("failed to complete challenge: %w", err)
	}

	user, err := s.Store.Users().GetUserByID(ctx, challenge.UserID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to load user: %w", err)
	}

	tokens, err := s.mintSession(user, []string{jwtx.AMRPassword, jwtx.AMRMFA})
	if err != nil {
		return domain.TokenPair{}, err
	}
	log.Info("two-factor login succeeded", slog.String("user_id", user.ID))
	return tokens, nil
}

// ChangePassword rotates the password for an authenticated user after
// re-verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if err := cryptox.VerifyPassword(currentPassword, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Store.Users().UpdatePasswordHash(ctx, userID, hash)
}

func (s *AuthService) issueChallenge(ctx context.Context, userID string) (*domain.ChallengeResponse, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.Store.LoginChallenges().CreateChallenge(ctx, domain.LoginChallenge{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: now.Add(domain.LoginChallengeTTL),
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	return &domain.ChallengeResponse{
		TwoFactorRequired: true,
		ChallengeToken:    token,
		Methods:           []string{domain.MethodTOTP, domain.MethodBackupCode},
		ExpiresIn:         int64(domain.LoginChallengeTTL.Seconds()),
	}, nil
}

func (s *AuthService) mintSession(user domain.User, amr []string) (domain.TokenPair, error) {
	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}

	claims := jwtx.NewSessionClaims(user.ID, user.Email, user.Role, user.EmailVerified, amr, s.Signer.Issuer(), ttl, time.Now().UTC())
	signed, err := s.Signer.Sign(claims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return domain.TokenPair{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	}, nil
}

// dummyHash is a bcrypt hash of a random throwaway password, used only to
// equalize timing for unknown emails.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
