package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
	"github.com/openlearnhub/lms-auth/pkg/slogx"
)

var (
	ErrFeatureDisabled         = errors.New("feature is disabled")
	ErrInvalidRegistrationMode = errors.New("invalid registration mode")
)

// SettingsService exposes the admin-configurable security policy and the
// feature-flag view the auth flows consult. A missing settings document is
// normal and resolves to the documented defaults.
type SettingsService struct {
	Store store.Store
}

// Get returns the current settings with every unset field materialized to
// its default, so admin UIs always see concrete values.
func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	current, err := s.load(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	return materialize(current), nil
}

// Update replaces the settings document. Unset fields in the incoming
// document are materialized to defaults before saving, so a partial update
// never silently reverts unrelated policy later.
func (s *SettingsService) Update(ctx context.Context, updated domain.Settings, updatedBy string) (domain.Settings, error) {
	log := slogx.FromContext(ctx)

	if updated.RegistrationMode != "" && !domain.ValidRegistrationMode(updated.RegistrationMode) {
		return domain.Settings{}, fmt.Errorf("%w: %q", ErrInvalidRegistrationMode, updated.RegistrationMode)
	}

	full := materialize(&updated)
	full.UpdatedBy = updatedBy
	full.UpdatedAt = time.Now().UTC()

	if err := s.Store.Settings().UpsertSettings(ctx, full); err != nil {
		return domain.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}

	log.Info("settings updated", slog.String("updated_by", updatedBy))
	return full, nil
}

// CheckFeature resolves one feature flag against the live settings.
func (s *SettingsService) CheckFeature(ctx context.Context, f domain.Feature) (bool, error) {
	current, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	return domain.ResolveFeature(current, f)
}

// RegistrationMode returns the effective mode, defaulting to open.
func (s *SettingsService) RegistrationMode(ctx context.Context) (string, error) {
	current, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	if current == nil || current.RegistrationMode == "" {
		return domain.RegistrationOpen, nil
	}
	return current.RegistrationMode, nil
}

// load returns nil (not an error) when no document has been saved yet.
func (s *SettingsService) load(ctx context.Context) (*domain.Settings, error) {
	current, err := s.Store.Settings().GetSettings(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &current, nil
}

// materialize fills every unset field with its default.
func materialize(s *domain.Settings) domain.Settings {
	out := domain.Settings{}
	if s != nil {
		out = *s
	}
	out.EmailVerificationRequired = boolPtrOr(out.EmailVerificationRequired, false)
	out.TwoFactorAllowed = boolPtrOr(out.TwoFactorAllowed, true)
	out.PasswordResetEnabled = boolPtrOr(out.PasswordResetEnabled, true)
	if out.RegistrationMode == "" {
		out.RegistrationMode = domain.RegistrationOpen
	}
	out.Google.Enabled = boolPtrOr(out.Google.Enabled, true)
	out.GitHub.Enabled = boolPtrOr(out.GitHub.Enabled, false)
	out.LinkedIn.Enabled = boolPtrOr(out.LinkedIn.Enabled, false)
	return out
}

func boolPtrOr(v *bool, def bool) *bool {
	if v != nil {
		return v
	}
	return &def
}
