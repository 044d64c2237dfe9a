package service

import (
	"context"
	"testing"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestSettingsDefaults(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &SettingsService{Store: st}

	t.Run("get without a saved document materializes defaults", func(t *testing.T) {
		got, err := svc.Get(ctx)
		require.NoError(t, err)

		require.NotNil(t, got.EmailVerificationRequired)
		require.False(t, *got.EmailVerificationRequired)
		require.NotNil(t, got.TwoFactorAllowed)
		require.True(t, *got.TwoFactorAllowed)
		require.NotNil(t, got.PasswordResetEnabled)
		require.True(t, *got.PasswordResetEnabled)
		require.Equal(t, domain.RegistrationOpen, got.RegistrationMode)
		require.True(t, *got.Google.Enabled)
		require.False(t, *got.GitHub.Enabled)
		require.False(t, *got.LinkedIn.Enabled)
	})

	t.Run("feature checks follow defaults", func(t *testing.T) {
		cases := map[domain.Feature]bool{
			domain.FeatureEmailVerification: false,
			domain.FeatureTwoFactor:         true,
			domain.FeaturePasswordReset:     true,
			domain.FeatureGoogleOAuth:       true,
			domain.FeatureGitHubOAuth:       false,
			domain.FeatureLinkedInOAuth:     false,
			domain.FeatureRegistration:      true,
		}
		for feature, want := range cases {
			got, err := svc.CheckFeature(ctx, feature)
			require.NoError(t, err, "feature %s", feature)
			require.Equal(t, want, got, "feature %s", feature)
		}
	})

	t.Run("unknown feature errors", func(t *testing.T) {
		_, err := svc.CheckFeature(ctx, domain.Feature("saml"))
		require.ErrorIs(t, err, domain.ErrUnknownFeature)
	})
}

func TestSettingsUpdate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &SettingsService{Store: st}

	t.Run("update persists and stamps the editor", func(t *testing.T) {
		on := true
		saved, err := svc.Update(ctx, domain.Settings{
			EmailVerificationRequired: &on,
			RegistrationMode:          domain.RegistrationInvite,
			GitHub:                    domain.ProviderConfig{Enabled: &on, ClientID: "gh-client"},
		}, "admin-1")
		require.NoError(t, err)
		require.Equal(t, "admin-1", saved.UpdatedBy)

		got, err := svc.Get(ctx)
		require.NoError(t, err)
		require.True(t, *got.EmailVerificationRequired)
		require.Equal(t, domain.RegistrationInvite, got.RegistrationMode)
		require.True(t, *got.GitHub.Enabled)
		require.Equal(t, "gh-client", got.GitHub.ClientID)

		// Untouched fields landed on their defaults, not on nil.
		require.True(t, *got.TwoFactorAllowed)
		require.True(t, *got.Google.Enabled)
	})

	t.Run("flags flip behavior", func(t *testing.T) {
		enabled, err := svc.CheckFeature(ctx, domain.FeatureEmailVerification)
		require.NoError(t, err)
		require.True(t, enabled)

		enabled, err = svc.CheckFeature(ctx, domain.FeatureGitHubOAuth)
		require.NoError(t, err)
		require.True(t, enabled)

		enabled, err = svc.CheckFeature(ctx, domain.FeatureRegistration)
		require.NoError(t, err)
		require.True(t, enabled, "invite mode still counts as registration enabled")
	})

	t.Run("closed registration disables the flag", func(t *testing.T) {
		_, err := svc.Update(ctx, domain.Settings{RegistrationMode: domain.RegistrationClosed}, "admin-1")
		require.NoError(t, err)

		enabled, err := svc.CheckFeature(ctx, domain.FeatureRegistration)
		require.NoError(t, err)
		require.False(t, enabled)

		mode, err := svc.RegistrationMode(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.RegistrationClosed, mode)
	})

	t.Run("bogus registration mode rejected", func(t *testing.T) {
		_, err := svc.Update(ctx, domain.Settings{RegistrationMode: "vip-only"}, "admin-1")
		require.ErrorIs(t, err, ErrInvalidRegistrationMode)
	})
}
