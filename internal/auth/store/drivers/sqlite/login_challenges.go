package sqlite

import (
	"context"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
)

type loginChallengesRepo struct {
	q dbtx
}

func (r *loginChallengesRepo) CreateChallenge(ctx context.Context, c domain.LoginChallenge) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO login_challenges (id, user_id, token_hash, attempts, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.TokenHash, c.Attempts, c.ExpiresAt.UTC(), c.CreatedAt.UTC())
	return err
}

func (r *loginChallengesRepo) GetActiveChallenge(
	ctx context.Context,
	tokenHash string,
	now time.Time,
) (domain.LoginChallenge, error) {
	var c domain.LoginChallenge
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, attempts, expires_at, created_at
		FROM login_challenges
		WHERE token_hash = ? AND expires_at > ?`,
		tokenHash, now.UTC()).
		Scan(&c.ID, &c.UserID, &c.TokenHash, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.LoginChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *loginChallengesRepo) IncrementChallengeAttempts(ctx context.Context, id string) (int, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE login_challenges SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, store.ErrNotFound
	}

	var attempts int
	err = r.q.QueryRowContext(ctx,
		`SELECT attempts FROM login_challenges WHERE id = ?`, id).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

// DeleteChallenge enforces single use: the completion path that loses the
// delete race sees ErrNotFound and fails.
func (r *loginChallengesRepo) DeleteChallenge(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM login_challenges WHERE id = ?`, id)
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

func (r *loginChallengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM login_challenges WHERE expires_at <= ?`, now.UTC())
	return err
}
