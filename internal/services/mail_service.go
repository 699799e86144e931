package services

import "github.com/rs/zerolog"

// Mailer delivers the verification and password-reset emails the identity
// service sends. Delivery failures are reported to the caller; they never
// roll back the operation that triggered the send.
type Mailer interface {
	Send(to, subject, body string) error
}

// LogMailer writes outgoing mail to the log instead of delivering it. It is
// the default in development and test environments.
type LogMailer struct {
	logger zerolog.Logger
}

func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(to, subject, body string) error {
	m.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("Outgoing email")
	return nil
}
