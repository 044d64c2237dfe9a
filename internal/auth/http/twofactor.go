package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/service"
	"github.com/openlearnhub/lms-auth/pkg/httpx"
	"github.com/openlearnhub/lms-auth/pkg/slogx"
)

// TwoFactorHandler serves TOTP enrolment and management for authenticated
// users. Verification during login goes through AuthHandler instead.
type TwoFactorHandler struct {
	TwoFactorService *service.TwoFactorService
	SettingsService  *service.SettingsService
}

// HandleSetup handles POST /v1/2fa/setup.
func (h *TwoFactorHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	allowed, err := h.SettingsService.CheckFeature(ctx, domain.FeatureTwoFactor)
	if err != nil {
		log.Error("feature check failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}
	if !allowed {
		httpx.WriteError(w, http.StatusForbidden, "feature_disabled", "Two-factor authentication is disabled")
		return
	}

	setup, err := h.TwoFactorService.BeginSetup(ctx, userID)
	if err != nil {
		log.Error("two-factor setup failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, setup)
}

type verifySetupRequest struct {
	Code string `json:"code"`
}

type backupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// HandleVerifySetup handles POST /v1/2fa/verify-setup. A correct code
// activates two-factor and returns the backup codes, shown exactly once.
func (h *TwoFactorHandler) HandleVerifySetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	var req verifySetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	codes, err := h.TwoFactorService.ConfirmSetup(ctx, userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoPendingSetup):
			httpx.WriteError(w, http.StatusBadRequest, "no_pending_setup", "Start setup before verifying")
		case errors.Is(err, service.ErrInvalidCode):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_code", "Invalid verification code")
		default:
			log.Error("two-factor confirmation failed", "user_id", userID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, backupCodesResponse{BackupCodes: codes})
}

type disableRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

// HandleDisable handles POST /v1/2fa/disable. Requires the account
// password and a current TOTP code.
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	var req disableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.TwoFactorService.Disable(ctx, userID, req.Password, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrNotEnabled):
			httpx.WriteError(w, http.StatusBadRequest, "not_enabled", "Two-factor authentication is not enabled")
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Password is incorrect")
		case errors.Is(err, service.ErrInvalidCode):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_code", "Invalid verification code")
		default:
			log.Error("two-factor disable failed", "user_id", userID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Two-factor authentication disabled"})
}

// HandleStatus handles GET /v1/2fa/status.
func (h *TwoFactorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	enabled, err := h.TwoFactorService.Enabled(ctx, userID)
	if err != nil {
		log.Error("two-factor status lookup failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// HandleRegenerateBackupCodes handles POST /v1/2fa/backup-codes. The new
// batch replaces all remaining codes.
func (h *TwoFactorHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	enabled, err := h.TwoFactorService.Enabled(ctx, userID)
	if err != nil {
		log.Error("two-factor status lookup failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}
	if !enabled {
		httpx.WriteError(w, http.StatusBadRequest, "not_enabled", "Two-factor authentication is not enabled")
		return
	}

	codes, err := h.TwoFactorService.GenerateBackupCodes(ctx, userID)
	if err != nil {
		log.Error("backup code regeneration failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, backupCodesResponse{BackupCodes: codes})
}
