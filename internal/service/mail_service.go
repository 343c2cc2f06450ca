package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/umsys/account-api/pkg/jobs"
	"github.com/umsys/account-api/pkg/mailer"
)

// MailService dispatches outbound email through a background queue so
// request handlers never block on SMTP. Delivery failures retry and are
// eventually dropped with a logged error; they never surface to the caller.
type MailService struct {
	queue  *jobs.Queue
	logger *zap.Logger
	origin string
}

// NewMailService wires a mailer behind a worker queue.
func NewMailService(m *mailer.Mailer, origin string, cfg jobs.QueueConfig) *MailService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &MailService{logger: logger, origin: origin}
	s.queue = jobs.NewQueue("mail", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			return fmt.Errorf("unexpected mail payload %T", job.Payload)
		}
		return m.Send(msg)
	}, cfg)
	return s
}

// Start launches the delivery workers.
func (s *MailService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *MailService) Stop() {
	s.queue.Stop()
}

// Enqueue schedules a message for delivery.
func (s *MailService) Enqueue(to, subject, html string) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "email",
		Payload: mailer.Message{To: to, Subject: subject, HTML: html},
	})
	if err != nil {
		s.logger.Warn("failed to enqueue email", zap.String("to", to), zap.Error(err))
	}
}

// SendVerificationEmail mails the signup verification link.
func (s *MailService) SendVerificationEmail(to, token string) {
	html := fmt.Sprintf(`<h4>Verify Email</h4>
<p>Thanks for registering!</p>
<p>Please click the below link to verify your email address:</p>
<p><a href="%s/account/verify-email?token=%s">%s/account/verify-email?token=%s</a></p>`,
		s.origin, token, s.origin, token)
	s.Enqueue(to, "Verification Email - Verify Your Account", html)
}

// SendAlreadyRegisteredEmail is sent when someone registers an email that
// already has an account, instead of returning an error that would confirm
// the account exists.
func (s *MailService) SendAlreadyRegisteredEmail(to string) {
	html := fmt.Sprintf(`<h4>Email Already Registered</h4>
<p>Your email <strong>%s</strong> is already registered.</p>
<p>If you don't know your password please visit the <a href="%s/account/forgot-password">forgot password</a> page.</p>`,
		to, s.origin)
	s.Enqueue(to, "Verification Email - Email Already Registered", html)
}

// SendPasswordResetEmail mails the reset link, valid for one day.
func (s *MailService) SendPasswordResetEmail(to, token string) {
	html := fmt.Sprintf(`<h4>Reset Password</h4>
<p>Please click the below link to reset your password, the link will be valid for 1 day:</p>
<p><a href="%s/account/reset-password?token=%s">%s/account/reset-password?token=%s</a></p>`,
		s.origin, token, s.origin, token)
	s.Enqueue(to, "Reset Password Email", html)
}
