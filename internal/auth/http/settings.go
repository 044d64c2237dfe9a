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

// SettingsHandler serves the admin policy document and the public
// feature-flag checks.
type SettingsHandler struct {
	SettingsService *service.SettingsService
}

type providerPayload struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

type settingsPayload struct {
	EmailVerificationRequired *bool  `json:"email_verification_required,omitempty"`
	TwoFactorAllowed          *bool  `json:"two_factor_allowed,omitempty"`
	PasswordResetEnabled      *bool  `json:"password_reset_enabled,omitempty"`
	RegistrationMode          string `json:"registration_mode,omitempty"`

	Google   providerPayload `json:"google"`
	GitHub   providerPayload `json:"github"`
	LinkedIn providerPayload `json:"linkedin"`

	UpdatedBy string `json:"updated_by,omitempty"`
}

func toPayload(s domain.Settings) settingsPayload {
	return settingsPayload{
		EmailVerificationRequired: s.EmailVerificationRequired,
		TwoFactorAllowed:          s.TwoFactorAllowed,
		PasswordResetEnabled:      s.PasswordResetEnabled,
		RegistrationMode:          s.RegistrationMode,
		Google:                    providerPayload{Enabled: s.Google.Enabled, ClientID: s.Google.ClientID},
		GitHub:                    providerPayload{Enabled: s.GitHub.Enabled, ClientID: s.GitHub.ClientID},
		LinkedIn:                  providerPayload{Enabled: s.LinkedIn.Enabled, ClientID: s.LinkedIn.ClientID},
		UpdatedBy:                 s.UpdatedBy,
	}
}

func fromPayload(p settingsPayload) domain.Settings {
	return domain.Settings{
		EmailVerificationRequired: p.EmailVerificationRequired,
		TwoFactorAllowed:          p.TwoFactorAllowed,
		PasswordResetEnabled:      p.PasswordResetEnabled,
		RegistrationMode:          p.RegistrationMode,
		Google:                    domain.ProviderConfig{Enabled: p.Google.Enabled, ClientID: p.Google.ClientID},
		GitHub:                    domain.ProviderConfig{Enabled: p.GitHub.Enabled, ClientID: p.GitHub.ClientID},
		LinkedIn:                  domain.ProviderConfig{Enabled: p.LinkedIn.Enabled, ClientID: p.LinkedIn.ClientID},
	}
}

// HandleGet handles GET /v1/admin/settings.
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	settings, err := h.SettingsService.Get(ctx)
	if err != nil {
		log.Error("failed to load settings", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toPayload(settings))
}

// HandleUpdate handles PUT /v1/admin/settings.
func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	saved, err := h.SettingsService.Update(ctx, fromPayload(payload), httpx.UserIDFromCtx(ctx))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRegistrationMode):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Unknown registration mode")
		default:
			log.Error("failed to save settings", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toPayload(saved))
}

// HandleCheckFeature handles GET /v1/settings/check/{feature}. Public so
// frontends can decide which affordances to render.
func (h *SettingsHandler) HandleCheckFeature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	feature := domain.Feature(r.PathValue("feature"))
	enabled, err := h.SettingsService.CheckFeature(ctx, feature)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownFeature):
			httpx.WriteError(w, http.StatusNotFound, "unknown_feature", "Unknown feature flag")
		default:
			log.Error("feature check failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"feature": string(feature),
		"enabled": enabled,
	})
}
