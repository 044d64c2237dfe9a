package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/domain"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
	"github.com/openlearnhub/lms-auth/pkg/cryptox"
	"github.com/openlearnhub/lms-auth/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingSweepsExpiredRecords(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := createTestUser(t, st)
	now := time.Now().UTC()

	expiredToken := cryptox.FingerprintToken("expired")
	liveToken := cryptox.FingerprintToken("live")

	require.NoError(t, st.EphemeralTokens().CreateToken(ctx, domain.EphemeralToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Purpose:   domain.PurposeEmailVerification,
		TokenHash: expiredToken,
		ExpiresAt: now.Add(-time.Hour),
		CreatedAt: now.Add(-25 * time.Hour),
	}))
	require.NoError(t, st.EphemeralTokens().CreateToken(ctx, domain.EphemeralToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Purpose:   domain.PurposeEmailVerification,
		TokenHash: liveToken,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}))

	expiredChallenge := domain.LoginChallenge{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken("old-challenge"),
		ExpiresAt: now.Add(-time.Minute),
		CreatedAt: now.Add(-10 * time.Minute),
	}
	require.NoError(t, st.LoginChallenges().CreateChallenge(ctx, expiredChallenge))

	svc := &HousekeepingService{Store: st, Logger: slog.Default(), Interval: time.Hour}
	svc.cleanup(ctx)

	_, err := st.EphemeralTokens().GetActiveToken(ctx, domain.PurposeEmailVerification, liveToken, now)
	require.NoError(t, err, "live token must survive the sweep")

	// The expired rows are physically gone, not just filtered.
	require.ErrorIs(t, st.LoginChallenges().DeleteChallenge(ctx, expiredChallenge.ID), store.ErrNotFound)
}

func TestHousekeepingStartStop(t *testing.T) {
	st := newTestStore(t)

	svc := &HousekeepingService{Store: st, Logger: slog.Default(), Interval: 50 * time.Millisecond}
	svc.Start(context.Background())

	time.Sleep(120 * time.Millisecond)
	svc.Stop()
}
