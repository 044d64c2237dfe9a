package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/openlearnhub/lms-auth/internal/auth/service"
	"github.com/openlearnhub/lms-auth/pkg/httpx"
	"github.com/openlearnhub/lms-auth/pkg/slogx"
)

// AuthHandler serves registration and the two-step login flow.
type AuthHandler struct {
	AuthService *service.AuthService
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type registerResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// HandleRegister handles POST /v1/auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "A valid email address is required")
		return
	}
	if len(req.Password) < 8 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Password must be at least 8 characters")
		return
	}

	user, err := h.AuthService.Register(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			httpx.WriteError(w, http.StatusConflict, "email_taken", "An account with this email already exists")
		case errors.Is(err, service.ErrRegistrationClosed):
			httpx.WriteError(w, http.StatusForbidden, "registration_closed", "Registration is currently closed")
		default:
			log.Error("registration failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /v1/auth/login. Accounts without a second
// factor receive tokens directly; accounts with 2FA enabled receive a
// challenge to complete via HandleCompleteTwoFactor.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	result, err := h.AuthService.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		case errors.Is(err, service.ErrEmailNotVerified):
			httpx.WriteError(w, http.StatusForbidden, "email_not_verified", "Verify your email address before logging in")
		default:
			log.Error("login failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	if result.Challenge != nil {
		httpx.WriteJSON(w, http.StatusOK, result.Challenge)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result.Tokens)
}

type completeTwoFactorRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Method         string `json:"method"`
	Code           string `json:"code"`
}

// HandleCompleteTwoFactor handles POST /v1/auth/2fa/complete.
func (h *AuthHandler) HandleCompleteTwoFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req completeTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	tokens, err := h.AuthService.CompleteTwoFactor(ctx, req.ChallengeToken, req.Method, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidChallenge):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_challenge", "Challenge is invalid or expired; log in again")
		case errors.Is(err, service.ErrTooManyAttempts):
			httpx.WriteError(w, http.StatusUnauthorized, "too_many_attempts", "Too many failed attempts; log in again")
		case errors.Is(err, service.ErrInvalidCode):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_code", "Invalid verification code")
		case errors.Is(err, service.ErrUnsupportedMethod):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Unsupported second-factor method")
		default:
			log.Error("two-factor completion failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokens)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleChangePassword handles POST /v1/auth/password (authenticated).
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if len(req.NewPassword) < 8 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Password must be at least 8 characters")
		return
	}

	if err := h.AuthService.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Current password is incorrect")
		default:
			log.Error("password change failed", "user_id", userID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}
