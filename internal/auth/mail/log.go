package mail

import (
	"context"
	"log/slog"
)

// LogSender writes would-be emails to the log instead of delivering them.
// Used in development and tests where no Postmark credentials exist.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) SendVerificationEmail(ctx context.Context, to string, name string, token string) error {
	s.logger().InfoContext(ctx, "verification email (not sent)",
		slog.String("to", to),
		slog.String("token", token),
	)
	return nil
}

func (s *LogSender) SendPasswordResetEmail(ctx context.Context, to string, name string, token string) error {
	s.logger().InfoContext(ctx, "password reset email (not sent)",
		slog.String("to", to),
		slog.String("token", token),
	)
	return nil
}

func (s *LogSender) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
