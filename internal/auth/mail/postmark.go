package mail

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/mrz1836/postmark"
)

var ErrSendFailed = errors.New("mail: failed to send email")

// PostmarkSender delivers mail through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client

	From    string // Sender address, must be a verified signature
	ReplyTo string // Support address replies are routed to
	BaseURL string // Public frontend origin links are built against
	Product string // Product name used in subjects and copy
}

// NewPostmarkSender builds a sender from server and account API tokens.
func NewPostmarkSender(serverToken, accountToken, from, replyTo, baseURL, product string) *PostmarkSender {
	return &PostmarkSender{
		client:  postmark.NewClient(serverToken, accountToken),
		From:    from,
		ReplyTo: replyTo,
		BaseURL: baseURL,
		Product: product,
	}
}

func (s *PostmarkSender) SendVerificationEmail(ctx context.Context, to string, name string, token string) error {
	link := s.BaseURL + "/verify-email?token=" + url.QueryEscape(token)
	body := fmt.Sprintf(verificationBodyHTML, name, s.Product, link, link)
	return s.send(ctx, to, "Verify your email address", "email-verification", body)
}

func (s *PostmarkSender) SendPasswordResetEmail(ctx context.Context, to string, name string, token string) error {
	link := s.BaseURL + "/reset-password?token=" + url.QueryEscape(token)
	body := fmt.Sprintf(passwordResetBodyHTML, name, s.Product, link, link)
	return s.send(ctx, to, "Reset your password", "password-reset", body)
}

func (s *PostmarkSender) send(ctx context.Context, to, subject, tag, htmlBody string) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.From,
		ReplyTo:    s.ReplyTo,
		To:         to,
		Subject:    subject,
		Tag:        tag,
		HTMLBody:   htmlBody,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

const verificationBodyHTML = `<p>Hi %s,</p>
<p>Thanks for signing up for %s. Please confirm your email address by
clicking the link below. The link is valid for 24 hours.</p>
<p><a href="%s">Verify email address</a></p>
<p>If the button does not work, copy this URL into your browser:<br>%s</p>
<p>If you did not create an account, you can safely ignore this email.</p>`

const passwordResetBodyHTML = `<p>Hi %s,</p>
<p>We received a request to reset your %s password. Click the link below
to choose a new one. The link is valid for 1 hour and can be used once.</p>
<p><a href="%s">Reset password</a></p>
<p>If the button does not work, copy this URL into your browser:<br>%s</p>
<p>If you did not request a reset, no action is needed; your password is
unchanged.</p>`
