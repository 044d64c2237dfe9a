package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/openlearnhub/lms-auth/internal/auth/store"
)

const defaultHousekeepingInterval = 15 * time.Minute

// HousekeepingService periodically removes expired ephemeral tokens and
// login challenges. Expiry is already enforced at read time; this keeps
// the tables from growing without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// Start launches the background cleanup loop. An initial sweep runs
// immediately so restarts do not postpone cleanup by a full interval.
func (s *HousekeepingService) Start(ctx context.Context) {
	if s.Interval <= 0 {
		s.Interval = defaultHousekeepingInterval
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(ctx)
}

// Stop signals the loop to exit and waits for the in-flight sweep.
func (s *HousekeepingService) Stop() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
}

func (s *HousekeepingService) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			s.cleanup(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanup runs each sweep independently so one failure does not starve
// the others.
func (s *HousekeepingService) cleanup(ctx context.Context) {
	now := time.Now().UTC()

	if err := s.Store.EphemeralTokens().DeleteExpiredTokens(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired tokens", slog.Any("error", err))
	}
	if err := s.Store.LoginChallenges().DeleteExpiredChallenges(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired challenges", slog.Any("error", err))
	}
}
