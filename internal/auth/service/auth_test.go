package service

import (
	"context"
	"testing"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
	"github.com/openlearnhub/lms-auth/pkg/cryptox"
	"github.com/openlearnhub/lms-auth/pkg/idx"
	"github.com/openlearnhub/lms-auth/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T, st store.Store) (*AuthService, *captureSender) {
	t.Helper()

	signer, err := jwtx.NewSigner("test-issuer")
	require.NoError(t, err)

	settings := &SettingsService{Store: st}
	twoFactor := &TwoFactorService{Store: st, Issuer: "TestLMS"}
	sender := newCaptureSender()
	verification := &VerificationService{Store: st, Mail: sender, Settings: settings}

	return &AuthService{
		Store:        st,
		Signer:       signer,
		Settings:     settings,
		TwoFactor:    twoFactor,
		Verification: verification,
		SessionTTL:   time.Hour,
	}, sender
}

func enableTwoFactor(t *testing.T, svc *AuthService, userID string) (secret string, backupCodes []string) {
	t.Helper()

	ctx := context.Background()
	setup, err := svc.TwoFactor.BeginSetup(ctx, userID)
	require.NoError(t, err)

	code, err := totp.GenerateCode(setup.Secret, time.Now().UTC())
	require.NoError(t, err)

	codes, err := svc.TwoFactor.ConfirmSetup(ctx, userID, code)
	require.NoError(t, err)
	return setup.Secret, codes
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc, _ := newAuthService(t, st)

	t.Run("open mode creates a student account", func(t *testing.T) {
		user, err := svc.Register(ctx, "Alice@Example.Test", "Alice", "a strong password")
		require.NoError(t, err)
		require.Equal(t, "alice@example.test", user.Email)
		require.Equal(t, domain.RoleStudent, user.Role)
		require.False(t, user.EmailVerified)

		// The stored hash is bcrypt, never the plaintext.
		stored, err := st.Users().GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotEqual(t, "a strong password", stored.PasswordHash)
		require.NoError(t, cryptox.VerifyPassword("a strong password", stored.PasswordHash))
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, "alice@example.test", "Alice Again", "another password")
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("closed mode rejects signups", func(t *testing.T) {
		require.NoError(t, st.Settings().UpsertSettings(ctx, domain.Settings{RegistrationMode: domain.RegistrationClosed}))
		_, err := svc.Register(ctx, "bob@example.test", "Bob", "password123")
		require.ErrorIs(t, err, ErrRegistrationClosed)
	})

	t.Run("invite mode rejects self-service signups", func(t *testing.T) {
		require.NoError(t, st.Settings().UpsertSettings(ctx, domain.Settings{RegistrationMode: domain.RegistrationInvite}))
		_, err := svc.Register(ctx, "carol@example.test", "Carol", "password123")
		require.ErrorIs(t, err, ErrRegistrationClosed)
	})
}

func TestRegisterIssuesVerificationWhenRequired(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc, sender := newAuthService(t, st)

	on := true
	require.NoError(t, st.Settings().UpsertSettings(ctx, domain.Settings{
		EmailVerificationRequired: &on,
		RegistrationMode:          domain.RegistrationOpen,
	}))

	user, err := svc.Register(ctx, "dave@example.test", "Dave", "password123")
	require.NoError(t, err)

	token := waitForToken(t, sender.verificationTokens)
	require.NoError(t, svc.Verification.VerifyEmail(ctx, token))

	verified, err := svc.Verification.EmailVerified(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, verified)
}

func TestLoginWithoutTwoFactor(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc, _ := newAuthService(t, st)
	user := createTestUser(t, st)

	t.Run("valid credentials mint a session", func(t *testing.T) {
		result, err := svc.Login(ctx, user.Email, testPassword)
		require.NoError(t, err)
		require.Nil(t, result.Challenge)
		require.NotNil(t, result.Tokens)
		require.Equal(t, "Bearer", result.Tokens.TokenType)
		require.Equal(t, int64(3600), result.Tokens.ExpiresIn)

		claims, err := svc.Signer.Verify(result.Tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, claims.Subject)
		require.Equal(t, user.Email, claims.Email)
		require.Equal(t, []string{jwtx.AMRPassword}, claims.AMR)
	})

	t.Run("wrong password fails", func(t *testing.T) {
		_, err := svc.Login(ctx, user.Email, "wrong password")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email fails identically", func(t *testing.T) {
		_, err := svc.Login(ctx, "ghost@example.test", testPassword)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLoginRequiresVerifiedEmailWhenEnforced(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc, _ := newAuthService(t, st)
	user := createTestUser(t, st)

	on := true
	require.NoError(t, st.Settings().UpsertSettings(ctx, domain.Settings{EmailVerificationRequired: &on}))

	_, err := svc.Login(ctx, user.Email, testPassword)
	require.ErrorIs(t, err, ErrEmailNotVerified)

	require.NoError(t, st.Users().MarkEmailVerified(ctx, user.ID, time.Now().UTC()))

	result, err := svc.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)
	require.NotNil(t, result.Tokens)
}

func TestTwoStepLogin(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc, _ := newAuthService(t, st)
	user := createTestUser(t, st)

	secret, backupCodes := enableTwoFactor(t, svc, user.ID)

	login := func(t *testing.T) *domain.ChallengeResponse {
		t.Helper()
		result, err := svc.Login(ctx, user.Email, testPassword)
		require.NoError(t, err)
		require.Nil(t, result.Tokens, "password alone must never mint a session")
		require.NotNil(t, result.Challenge)
		return result.Challenge
	}

	t.Run("challenge shape", func(t *testing.T) {
		challenge := login(t)
		require.True(t, challenge.TwoFactorRequired)
		require.Len(t, challenge.ChallengeToken, 64)
		require.ElementsMatch(t, []string{domain.MethodTOTP, domain.MethodBackupCode}, challenge.Methods)
		require.Equal(t, int64(300), challenge.ExpiresIn)
	})

	t.Run("totp completes the login", func(t *testing.T) {
		challenge := login(t)
		code, err := totp.GenerateCode(secret, time.Now().UTC())
		require.NoError(t, err)

		tokens, err := svc.CompleteTwoFactor(ctx, challenge.ChallengeToken, domain.MethodTOTP, code)
		require.NoError(t, err)

		claims, err := svc.Signer.Verify(tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, []string{jwtx.AMRPassword, jwtx.AMRMFA}, claims.AMR)
	})

	t.Run("challenge is single use", func(t *testing.T) {
		challenge := login(t)
		code, err := totp.GenerateCode(secret, time.Now().UTC())
		require.NoError(t, err)

		_, err = svc.CompleteTwoFactor(ctx, challenge.ChallengeToken, domain.MethodTOTP, code)
		require.NoError(t, err)

		_, err = svc.CompleteTwoFactor(ctx, challenge.ChallengeToken, domain.MethodTOTP, code)
		require.ErrorIs(t, err, ErrInvalidChallenge)
	})

	t.Run("backup code completes the login once", func(t *testing.T) {
		challenge := login(t)
		tokens, err := svc.CompleteTwoFactor(ctx, challenge.ChallengeToken, domain.MethodBackupCode, backupCodes[0])
		require.NoError(t, err)
		require.NotEmpty(t, tokens.AccessToken)

		// The spent code is gone even on a fresh challenge.
		challenge = login(t)
		_, err = svc.CompleteTwoFactor(ctx, challenge.ChallengeToken, domain.MethodBackupCode, backupCodes[0])
		require.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("unknown method rejected", func(t *testing.T) {
		challenge := login(t)
		_, err := svc.CompleteTwoFactor(ctx, challenge.ChallengeToken, "sms", "123456")
		require.ErrorIs(t, err, ErrUnsupportedMethod)
	})

	t.Run("bogus challenge token rejected", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now().UTC())
		require.NoError(t, err)
		_, err = svc.CompleteTwoFactor(ctx, "not-a-challenge", domain.MethodTOTP, code)
		require.ErrorIs(t, err, ErrInvalidChallenge)
	})
}

func TestChallengeAttemptCap(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc, _ := newAuthService(t, st)
	user := createTestUser(t, st)

	secret, _ := enableTwoFactor(t, svc, user.ID)

	result, err := svc.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)
	challenge := result.Challenge
	require.NotNil(t, challenge)

	for i := 0; i < domain.MaxChallengeAttempts-1; i++ {
		_, err := svc.CompleteTwoFactor(ctx, challenge.ChallengeToken, domain.MethodTOTP, "000000")
		require.ErrorIs(t, err, ErrInvalidCode)
	}

	// The final failure invalidates the challenge outright.
	_, err = svc.CompleteTwoFactor(ctx, challenge.ChallengeToken, domain.MethodTOTP, "000000")
	require.ErrorIs(t, err, ErrTooManyAttempts)

	// Even a correct code no longer works; the password step must repeat.
	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	_, err = svc.CompleteTwoFactor(ctx, challenge.ChallengeToken, domain.MethodTOTP, code)
	require.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestExpiredChallengeRejected(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc, _ := newAuthService(t, st)
	user := createTestUser(t, st)

	secret, _ := enableTwoFactor(t, svc, user.ID)

	// Insert an expired challenge directly.
	plain, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, st.LoginChallenges().CreateChallenge(ctx, domain.LoginChallenge{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(plain),
		ExpiresAt: now.Add(-time.Second),
		CreatedAt: now.Add(-domain.LoginChallengeTTL),
	}))

	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	_, err = svc.CompleteTwoFactor(ctx, plain, domain.MethodTOTP, code)
	require.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestLoginSkipsChallengeWhenTwoFactorDisabledByPolicy(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc, _ := newAuthService(t, st)
	user := createTestUser(t, st)

	enableTwoFactor(t, svc, user.ID)

	off := false
	require.NoError(t, st.Settings().UpsertSettings(ctx, domain.Settings{TwoFactorAllowed: &off}))

	result, err := svc.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)
	require.Nil(t, result.Challenge)
	require.NotNil(t, result.Tokens)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc, _ := newAuthService(t, st)
	user := createTestUser(t, st)

	t.Run("wrong current password refused", func(t *testing.T) {
		err := svc.ChangePassword(ctx, user.ID, "wrong", "replacement pass")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("rotation takes effect on next login", func(t *testing.T) {
		require.NoError(t, svc.ChangePassword(ctx, user.ID, testPassword, "replacement pass"))

		_, err := svc.Login(ctx, user.Email, testPassword)
		require.ErrorIs(t, err, ErrInvalidCredentials)

		result, err := svc.Login(ctx, user.Email, "replacement pass")
		require.NoError(t, err)
		require.NotNil(t, result.Tokens)
	})
}
