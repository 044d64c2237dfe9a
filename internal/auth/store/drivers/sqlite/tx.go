package sqlite

import (
	"context"
	"database/sql"

	"github.com/openlearnhub/lms-auth/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op; the caller commits/rollbacks and the outer DB stays open.
func (t *txStore) Close() error { return nil }

// Ping is a no-op for transactions; the connection already exists.
func (t *txStore) Ping(ctx context.Context) error { return nil }

// Nested transactions are not supported.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

// ApplyMigrations is a no-op; migrations run before any transaction starts.
func (t *txStore) ApplyMigrations() error { return nil }

func (t *txStore) Users() store.Users                     { return &usersRepo{q: t.tx} }
func (t *txStore) EphemeralTokens() store.EphemeralTokens { return &ephemeralTokensRepo{q: t.tx} }
func (t *txStore) BackupCodes() store.BackupCodes         { return &backupCodesRepo{q: t.tx} }
func (t *txStore) LoginChallenges() store.LoginChallenges { return &loginChallengesRepo{q: t.tx} }
func (t *txStore) Settings() store.Settings               { return &settingsRepo{q: t.tx} }
