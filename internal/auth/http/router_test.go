package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/mail"
	"github.com/openlearnhub/lms-auth/internal/auth/service"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
	"github.com/openlearnhub/lms-auth/internal/auth/store/drivers/sqlite"
	"github.com/openlearnhub/lms-auth/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server *httptest.Server
	store  store.Store
	signer *jwtx.Signer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, err := jwtx.NewSigner("test-issuer")
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)

	settings := &service.SettingsService{Store: st}
	twoFactor := &service.TwoFactorService{Store: st, Issuer: "TestLMS"}
	verification := &service.VerificationService{
		Store:    st,
		Mail:     &mail.LogSender{Logger: logger},
		Settings: settings,
	}
	auth := &service.AuthService{
		Store:        st,
		Signer:       signer,
		Settings:     settings,
		TwoFactor:    twoFactor,
		Verification: verification,
		SessionTTL:   time.Hour,
	}

	router := NewRouter(signer, "test", st, logger)
	router.AuthService = auth
	router.TwoFactorService = twoFactor
	router.VerificationService = verification
	router.SettingsService = settings
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: st, signer: signer}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email":    "alice@example.test",
		"name":     "Alice",
		"password": "a strong password",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "alice@example.test", body["email"])
	require.Equal(t, domain.RoleStudent, body["role"])

	t.Run("weak password rejected", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
			"email":    "bob@example.test",
			"password": "short",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "invalid_request", body["error"])
	})

	t.Run("login mints a bearer token", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email":    "alice@example.test",
			"password": "a strong password",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "Bearer", body["token_type"])

		claims, err := env.signer.Verify(body["access_token"].(string))
		require.NoError(t, err)
		require.Equal(t, "alice@example.test", claims.Email)
	})

	t.Run("bad credentials are 401", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email":    "alice@example.test",
			"password": "nope nope nope",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "invalid_credentials", body["error"])
	})
}

func TestResendVerificationAfterVerified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _ = env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email":    "carol@example.test",
		"name":     "Carol",
		"password": "a strong password",
	})

	user, err := env.store.Users().GetUserByEmail(ctx, "carol@example.test")
	require.NoError(t, err)
	require.NoError(t, env.store.Users().MarkEmailVerified(ctx, user.ID, time.Now().UTC()))

	_, body := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "carol@example.test",
		"password": "a strong password",
	})
	bearer := body["access_token"].(string)

	t.Run("resend reports success without issuing a token", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/v1/email-verification/send", bearer, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "Email already verified", body["message"])
	})

	t.Run("status still reports verified", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/v1/email-verification/status", bearer, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, true, body["verified"])
	})
}

func TestTwoFactorLoginOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, body := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email":    "carol@example.test",
		"name":     "Carol",
		"password": "a strong password",
	})
	userID := body["id"].(string)

	resp, body := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "carol@example.test",
		"password": "a strong password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bearer := body["access_token"].(string)

	// Enroll: setup returns the secret, verify-setup activates it.
	resp, body = env.do(t, http.MethodPost, "/v1/2fa/setup", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	secret := body["secret"].(string)
	require.NotEmpty(t, secret)

	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	resp, body = env.do(t, http.MethodPost, "/v1/2fa/verify-setup", bearer, map[string]string{"code": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["backup_codes"], 10)

	user, err := env.store.Users().GetUserByID(ctx, userID)
	require.NoError(t, err)
	require.True(t, user.TwoFactorEnabled)

	t.Run("login now returns a challenge instead of tokens", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email":    "carol@example.test",
			"password": "a strong password",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, true, body["two_factor_required"])
		require.NotContains(t, body, "access_token")

		challengeToken := body["challenge_token"].(string)
		code, err := totp.GenerateCode(secret, time.Now().UTC())
		require.NoError(t, err)

		resp, body = env.do(t, http.MethodPost, "/v1/auth/2fa/complete", "", map[string]string{
			"challenge_token": challengeToken,
			"method":          domain.MethodTOTP,
			"code":            code,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, body["access_token"])
	})

	t.Run("status endpoint reflects enrolment", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/v1/2fa/status", bearer, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, true, body["enabled"])
	})
}

func TestAdminSettingsAuthz(t *testing.T) {
	env := newTestEnv(t)

	student := jwtx.NewSessionClaims("u1", "s@example.test", domain.RoleStudent, true,
		[]string{jwtx.AMRPassword}, "test-issuer", time.Hour, time.Now().UTC())
	studentToken, err := env.signer.Sign(student)
	require.NoError(t, err)

	admin := jwtx.NewSessionClaims("u2", "a@example.test", domain.RoleAdmin, true,
		[]string{jwtx.AMRPassword}, "test-issuer", time.Hour, time.Now().UTC())
	adminToken, err := env.signer.Sign(admin)
	require.NoError(t, err)

	t.Run("anonymous is 401", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodGet, "/v1/admin/settings", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("student is 403", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodGet, "/v1/admin/settings", studentToken, nil)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin reads defaults and updates", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/v1/admin/settings", adminToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, domain.RegistrationOpen, body["registration_mode"])

		resp, body = env.do(t, http.MethodPut, "/v1/admin/settings", adminToken, map[string]any{
			"registration_mode": domain.RegistrationClosed,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, domain.RegistrationClosed, body["registration_mode"])
		require.Equal(t, "u2", body["updated_by"])
	})

	t.Run("closed registration turns signups away", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
			"email":    "late@example.test",
			"password": "a strong password",
		})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Equal(t, "registration_closed", body["error"])
	})

	t.Run("feature check is public", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/v1/settings/check/registration", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, false, body["enabled"])

		resp, _ = env.do(t, http.MethodGet, "/v1/settings/check/teleportation", "", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])

	resp, body = env.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["database"])
}
