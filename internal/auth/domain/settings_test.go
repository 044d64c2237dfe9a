package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func TestResolveFeatureDefaults(t *testing.T) {
	t.Parallel()

	// nil settings document resolves every flag to its default.
	cases := []struct {
		feature Feature
		want    bool
	}{
		{FeatureEmailVerification, false},
		{FeatureTwoFactor, true},
		{FeaturePasswordReset, true},
		{FeatureGoogleOAuth, true},
		{FeatureGitHubOAuth, false},
		{FeatureLinkedInOAuth, false},
		{FeatureRegistration, true},
	}

	for _, tc := range cases {
		got, err := ResolveFeature(nil, tc.feature)
		require.NoError(t, err, "feature %s", tc.feature)
		require.Equal(t, tc.want, got, "feature %s", tc.feature)
	}
}

func TestResolveFeatureExplicitSettings(t *testing.T) {
	t.Parallel()

	t.Run("explicit values override defaults", func(t *testing.T) {
		s := &Settings{
			EmailVerificationRequired: boolPtr(true),
			TwoFactorAllowed:          boolPtr(false),
			PasswordResetEnabled:      boolPtr(false),
			Google:                    ProviderConfig{Enabled: boolPtr(false)},
			GitHub:                    ProviderConfig{Enabled: boolPtr(true)},
		}

		got, err := ResolveFeature(s, FeatureEmailVerification)
		require.NoError(t, err)
		require.True(t, got)

		got, err = ResolveFeature(s, FeatureTwoFactor)
		require.NoError(t, err)
		require.False(t, got)

		got, err = ResolveFeature(s, FeaturePasswordReset)
		require.NoError(t, err)
		require.False(t, got)

		got, err = ResolveFeature(s, FeatureGoogleOAuth)
		require.NoError(t, err)
		require.False(t, got)

		got, err = ResolveFeature(s, FeatureGitHubOAuth)
		require.NoError(t, err)
		require.True(t, got)
	})

	t.Run("document present but fields unset keeps defaults", func(t *testing.T) {
		s := &Settings{}

		got, err := ResolveFeature(s, FeatureTwoFactor)
		require.NoError(t, err)
		require.True(t, got)

		got, err = ResolveFeature(s, FeatureGoogleOAuth)
		require.NoError(t, err)
		require.True(t, got)

		got, err = ResolveFeature(s, FeatureEmailVerification)
		require.NoError(t, err)
		require.False(t, got)
	})

	t.Run("registration closed disables registration", func(t *testing.T) {
		s := &Settings{RegistrationMode: RegistrationClosed}
		got, err := ResolveFeature(s, FeatureRegistration)
		require.NoError(t, err)
		require.False(t, got)

		s.RegistrationMode = RegistrationInvite
		got, err = ResolveFeature(s, FeatureRegistration)
		require.NoError(t, err)
		require.True(t, got)
	})
}

func TestResolveFeatureUnknown(t *testing.T) {
	t.Parallel()

	_, err := ResolveFeature(nil, Feature("sso-magic"))
	require.ErrorIs(t, err, ErrUnknownFeature)
}

func TestValidRegistrationMode(t *testing.T) {
	t.Parallel()

	require.True(t, ValidRegistrationMode(RegistrationOpen))
	require.True(t, ValidRegistrationMode(RegistrationClosed))
	require.True(t, ValidRegistrationMode(RegistrationInvite))
	require.False(t, ValidRegistrationMode("hybrid"))
	require.False(t, ValidRegistrationMode(""))
}
