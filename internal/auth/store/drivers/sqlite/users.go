package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
)

type usersRepo struct {
	q dbtx
}

const userColumns = `id, email, name, password_hash, role,
	email_verified, email_verified_at,
	two_factor_enabled, two_factor_secret, pending_two_factor_secret,
	created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (
			id, email, name, password_hash, role,
			email_verified, email_verified_at,
			two_factor_enabled, two_factor_secret, pending_two_factor_secret,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role,
		u.EmailVerified, mapOptionalTime(u.EmailVerifiedAt),
		u.TwoFactorEnabled, mapOptionalString(u.TwoFactorSecret), mapOptionalString(u.PendingTwoFactorSecret),
		now, now,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return r.exec(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE users SET email_verified = 1, email_verified_at = ?, updated_at = ?
		WHERE id = ?`,
		at.UTC(), time.Now().UTC(), userID)
}

func (r *usersRepo) SetPendingTwoFactorSecret(ctx context.Context, userID string, secret string) error {
	return r.exec(ctx, `
		UPDATE users SET pending_two_factor_secret = ?, updated_at = ? WHERE id = ?`,
		secret, time.Now().UTC(), userID)
}

// ActivateTwoFactor performs the pending-to-active promotion as one UPDATE
// so no intermediate state is ever visible.
func (r *usersRepo) ActivateTwoFactor(ctx context.Context, userID string, secret string) error {
	return r.exec(ctx, `
		UPDATE users
		SET two_factor_secret = ?, two_factor_enabled = 1,
		    pending_two_factor_secret = NULL, updated_at = ?
		WHERE id = ?`,
		secret, time.Now().UTC(), userID)
}

func (r *usersRepo) DisableTwoFactor(ctx context.Context, userID string) error {
	return r.exec(ctx, `
		UPDATE users
		SET two_factor_secret = NULL, two_factor_enabled = 0,
		    pending_two_factor_secret = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), userID)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = ?`, userID)
}

// exec runs an UPDATE/DELETE that targets one user and maps "no rows
// touched" to ErrNotFound.
func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u             domain.User
		verifiedAt    sql.NullTime
		secret        sql.NullString
		pendingSecret sql.NullString
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&u.EmailVerified, &verifiedAt,
		&u.TwoFactorEnabled, &secret, &pendingSecret,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.EmailVerifiedAt = mapNullTimePtr(verifiedAt)
	u.TwoFactorSecret = mapNullStringPtr(secret)
	u.PendingTwoFactorSecret = mapNullStringPtr(pendingSecret)
	return u, nil
}
