package service

import (
	"context"
	"testing"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
	"github.com/openlearnhub/lms-auth/internal/auth/store/drivers/sqlite"
	"github.com/openlearnhub/lms-auth/pkg/cryptox"
	"github.com/openlearnhub/lms-auth/pkg/idx"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery"

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func createTestUser(t *testing.T, st store.Store) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Email:        idx.New().String() + "@example.test",
		Name:         "Test User",
		PasswordHash: hash,
		Role:         domain.RoleStudent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), user))
	return user
}

// captureSender records issued tokens so tests can redeem them. Delivery
// happens on a background goroutine, hence the buffered channels.
type captureSender struct {
	verificationTokens chan string
	resetTokens        chan string
}

func newCaptureSender() *captureSender {
	return &captureSender{
		verificationTokens: make(chan string, 8),
		resetTokens:        make(chan string, 8),
	}
}

func (c *captureSender) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	c.verificationTokens <- token
	return nil
}

func (c *captureSender) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	c.resetTokens <- token
	return nil
}

func waitForToken(t *testing.T, ch chan string) string {
	t.Helper()

	select {
	case token := <-ch:
		return token
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for token delivery")
		return ""
	}
}
