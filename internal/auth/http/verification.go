package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openlearnhub/lms-auth/internal/auth/service"
	"github.com/openlearnhub/lms-auth/pkg/httpx"
	"github.com/openlearnhub/lms-auth/pkg/slogx"
)

// VerificationHandler serves the email verification and password reset
// flows.
type VerificationHandler struct {
	VerificationService *service.VerificationService
}

// HandleSendVerification handles POST /v1/email-verification/send
// (authenticated). Re-sending while a previous link is still valid is
// allowed; each link works independently.
func (h *VerificationHandler) HandleSendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	if err := h.VerificationService.SendVerificationEmail(ctx, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyVerified):
			// Already verified is a success for the caller; no token is
			// issued and no mail goes out.
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email already verified"})
		default:
			log.Error("failed to send verification email", "user_id", userID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Verification email sent"})
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

// HandleVerifyEmail handles POST /v1/email-verification/verify. The
// endpoint is unauthenticated; possession of the mailed token is the
// credential.
func (h *VerificationHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.VerificationService.VerifyEmail(ctx, req.Token); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOrExpiredToken):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_token", "Token is invalid or expired")
		default:
			log.Error("email verification failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

// HandleVerificationStatus handles GET /v1/email-verification/status.
func (h *VerificationHandler) HandleVerificationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	verified, err := h.VerificationService.EmailVerified(ctx, userID)
	if err != nil {
		log.Error("verification status lookup failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"verified": verified})
}

type requestResetRequest struct {
	Email string `json:"email"`
}

// HandleRequestReset handles POST /v1/password-reset/request. The response
// is identical whether or not the email maps to an account, so the
// endpoint cannot be used to enumerate users.
func (h *VerificationHandler) HandleRequestReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req requestResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.VerificationService.RequestPasswordReset(ctx, req.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrFeatureDisabled):
			httpx.WriteError(w, http.StatusForbidden, "feature_disabled", "Password reset is disabled")
		default:
			log.Error("password reset request failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists for this email, a reset link has been sent",
	})
}

type verifyResetTokenRequest struct {
	Token string `json:"token"`
}

// HandleVerifyResetToken handles POST /v1/password-reset/verify-token.
// Checks a link without spending it, so the reset form can fail fast.
func (h *VerificationHandler) HandleVerifyResetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req verifyResetTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.VerificationService.PeekPasswordResetToken(ctx, req.Token); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOrExpiredToken):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_token", "Token is invalid or expired")
		default:
			log.Error("reset token check failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// HandleResetPassword handles POST /v1/password-reset/reset.
func (h *VerificationHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if len(req.NewPassword) < 8 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Password must be at least 8 characters")
		return
	}

	if err := h.VerificationService.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOrExpiredToken):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_token", "Token is invalid or expired")
		default:
			log.Error("password reset failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}
