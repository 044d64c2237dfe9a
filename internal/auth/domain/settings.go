package domain

import (
	"errors"
	"fmt"
	"time"
)

// SettingsKeyGlobal is the fixed discriminator of the singleton settings
// document. Exactly one live settings row exists; absence means "use
// defaults", never an error.
const SettingsKeyGlobal = "global"

// Registration modes.
const (
	RegistrationOpen   = "open"
	RegistrationClosed = "closed"
	RegistrationInvite = "invite"
)

// ValidRegistrationMode reports whether mode is one of the known modes.
func ValidRegistrationMode(mode string) bool {
	switch mode {
	case RegistrationOpen, RegistrationClosed, RegistrationInvite:
		return true
	}
	return false
}

// ProviderConfig describes one social login provider toggle. Social login
// itself is not implemented here; the flags gate the UI.
type ProviderConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// Settings is the admin-configurable security policy. Pointer fields
// distinguish "explicitly set" from "unset, use the default".
type Settings struct {
	EmailVerificationRequired *bool
	TwoFactorAllowed          *bool
	PasswordResetEnabled      *bool
	RegistrationMode          string // "" means unset

	Google   ProviderConfig
	GitHub   ProviderConfig
	LinkedIn ProviderConfig

	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Feature is the closed set of flags callers may resolve.
type Feature string

const (
	FeatureEmailVerification Feature = "email-verification"
	FeatureTwoFactor         Feature = "2fa"
	FeaturePasswordReset     Feature = "password-reset"
	FeatureGoogleOAuth       Feature = "google-oauth"
	FeatureGitHubOAuth       Feature = "github-oauth"
	FeatureLinkedInOAuth     Feature = "linkedin-oauth"
	FeatureRegistration      Feature = "registration"
)

// ErrUnknownFeature surfaces caller typos instead of silently reporting a
// feature as disabled.
var ErrUnknownFeature = errors.New("unknown feature")

// ResolveFeature resolves a feature flag against a settings document, which
// may be nil. Defaults when unset: email verification off, 2FA and password
// reset on, Google on, GitHub/LinkedIn off, registration open. Resolution is
// pure and total over the known feature set.
func ResolveFeature(s *Settings, f Feature) (bool, error) {
	switch f {
	case FeatureEmailVerification:
		return s != nil && boolOr(s.EmailVerificationRequired, false), nil
	case FeatureTwoFactor:
		if s == nil {
			return true, nil
		}
		return boolOr(s.TwoFactorAllowed, true), nil
	case FeaturePasswordReset:
		if s == nil {
			return true, nil
		}
		return boolOr(s.PasswordResetEnabled, true), nil
	case FeatureGoogleOAuth:
		if s == nil {
			return true, nil
		}
		return boolOr(s.Google.Enabled, true), nil
	case FeatureGitHubOAuth:
		return s != nil && boolOr(s.GitHub.Enabled, false), nil
	case FeatureLinkedInOAuth:
		return s != nil && boolOr(s.LinkedIn.Enabled, false), nil
	case FeatureRegistration:
		if s == nil {
			return true, nil
		}
		return s.RegistrationMode != RegistrationClosed, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownFeature, f)
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
