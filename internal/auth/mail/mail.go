package mail

import "context"

// Sender delivers the transactional emails the auth flows produce. The
// services treat delivery as best effort and never fail a request because
// an email could not be sent.
type Sender interface {
	// SendVerificationEmail mails an address-confirmation link containing
	// the plaintext token.
	SendVerificationEmail(ctx context.Context, to string, name string, token string) error

	// SendPasswordResetEmail mails a reset link containing the plaintext
	// token.
	SendPasswordResetEmail(ctx context.Context, to string, name string, token string) error
}
