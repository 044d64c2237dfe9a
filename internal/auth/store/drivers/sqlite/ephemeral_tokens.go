package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
)

type ephemeralTokensRepo struct {
	q dbtx
}

const tokenColumns = `id, user_id, purpose, token_hash, expires_at, consumed, consumed_at, created_at`

func (r *ephemeralTokensRepo) CreateToken(ctx context.Context, t domain.EphemeralToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO ephemeral_tokens (id, user_id, purpose, token_hash, expires_at, consumed, consumed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Purpose), t.TokenHash,
		t.ExpiresAt.UTC(), t.Consumed, mapOptionalTime(t.ConsumedAt), t.CreatedAt.UTC(),
	)
	return err
}

func (r *ephemeralTokensRepo) GetActiveToken(
	ctx context.Context,
	purpose domain.TokenPurpose,
	hash string,
	now time.Time,
) (domain.EphemeralToken, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+tokenColumns+` FROM ephemeral_tokens
		WHERE purpose = ? AND token_hash = ? AND consumed = 0 AND expires_at > ?`,
		string(purpose), hash, now.UTC())
	return scanToken(row)
}

// ConsumeToken is the compare-and-set at the heart of single-use semantics:
// the UPDATE only matches an unconsumed, unexpired row, so of any number of
// concurrent redeems exactly one observes RowsAffected == 1.
func (r *ephemeralTokensRepo) ConsumeToken(
	ctx context.Context,
	purpose domain.TokenPurpose,
	hash string,
	now time.Time,
) (domain.EphemeralToken, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE ephemeral_tokens
		SET consumed = 1, consumed_at = ?
		WHERE purpose = ? AND token_hash = ? AND consumed = 0 AND expires_at > ?`,
		now.UTC(), string(purpose), hash, now.UTC())
	if err != nil {
		return domain.EphemeralToken{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.EphemeralToken{}, err
	}
	if n == 0 {
		return domain.EphemeralToken{}, store.ErrNotFound
	}

	row := r.q.QueryRowContext(ctx, `
		SELECT `+tokenColumns+` FROM ephemeral_tokens
		WHERE purpose = ? AND token_hash = ? AND consumed = 1`,
		string(purpose), hash)
	return scanToken(row)
}

func (r *ephemeralTokensRepo) DeleteExpiredTokens(ctx context.Context, now time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM ephemeral_tokens WHERE expires_at <= ?`, now.UTC())
	return err
}

func scanToken(row rowScanner) (domain.EphemeralToken, error) {
	var (
		t          domain.EphemeralToken
		purpose    string
		consumedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &purpose, &t.TokenHash,
		&t.ExpiresAt, &t.Consumed, &consumedAt, &t.CreatedAt)
	if err != nil {
		return domain.EphemeralToken{}, mapNotFound(err)
	}
	t.Purpose = domain.TokenPurpose(purpose)
	t.ConsumedAt = mapNullTimePtr(consumedAt)
	return t, nil
}
