package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
)

type settingsRepo struct {
	q dbtx
}

func (r *settingsRepo) GetSettings(ctx context.Context) (domain.Settings, error) {
	var (
		s                 domain.Settings
		emailVerification sql.NullBool
		twoFactor         sql.NullBool
		passwordReset     sql.NullBool
		registrationMode  sql.NullString
		googleEnabled     sql.NullBool
		githubEnabled     sql.NullBool
		linkedinEnabled   sql.NullBool
		updatedBy         sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT email_verification_required, two_factor_allowed, password_reset_enabled,
		       registration_mode,
		       google_enabled, google_client_id,
		       github_enabled, github_client_id,
		       linkedin_enabled, linkedin_client_id,
		       updated_by, created_at, updated_at
		FROM system_settings WHERE type = ?`, domain.SettingsKeyGlobal).
		Scan(&emailVerification, &twoFactor, &passwordReset,
			&registrationMode,
			&googleEnabled, &s.Google.ClientID,
			&githubEnabled, &s.GitHub.ClientID,
			&linkedinEnabled, &s.LinkedIn.ClientID,
			&updatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.Settings{}, mapNotFound(err)
	}

	s.EmailVerificationRequired = mapNullBoolPtr(emailVerification)
	s.TwoFactorAllowed = mapNullBoolPtr(twoFactor)
	s.PasswordResetEnabled = mapNullBoolPtr(passwordReset)
	if registrationMode.Valid {
		s.RegistrationMode = registrationMode.String
	}
	s.Google.Enabled = mapNullBoolPtr(googleEnabled)
	s.GitHub.Enabled = mapNullBoolPtr(githubEnabled)
	s.LinkedIn.Enabled = mapNullBoolPtr(linkedinEnabled)
	if updatedBy.Valid {
		s.UpdatedBy = updatedBy.String
	}
	return s, nil
}

// UpsertSettings keeps exactly one live row keyed by the fixed discriminator.
func (r *settingsRepo) UpsertSettings(ctx context.Context, s domain.Settings) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO system_settings (
			type, email_verification_required, two_factor_allowed, password_reset_enabled,
			registration_mode,
			google_enabled, google_client_id,
			github_enabled, github_client_id,
			linkedin_enabled, linkedin_client_id,
			updated_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type) DO UPDATE SET
			email_verification_required = excluded.email_verification_required,
			two_factor_allowed = excluded.two_factor_allowed,
			password_reset_enabled = excluded.password_reset_enabled,
			registration_mode = excluded.registration_mode,
			google_enabled = excluded.google_enabled,
			google_client_id = excluded.google_client_id,
			github_enabled = excluded.github_enabled,
			github_client_id = excluded.github_client_id,
			linkedin_enabled = excluded.linkedin_enabled,
			linkedin_client_id = excluded.linkedin_client_id,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		domain.SettingsKeyGlobal,
		mapOptionalBool(s.EmailVerificationRequired),
		mapOptionalBool(s.TwoFactorAllowed),
		mapOptionalBool(s.PasswordResetEnabled),
		nullIfEmpty(s.RegistrationMode),
		mapOptionalBool(s.Google.Enabled), s.Google.ClientID,
		mapOptionalBool(s.GitHub.Enabled), s.GitHub.ClientID,
		mapOptionalBool(s.LinkedIn.Enabled), s.LinkedIn.ClientID,
		nullIfEmpty(s.UpdatedBy), now, now,
	)
	return err
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
