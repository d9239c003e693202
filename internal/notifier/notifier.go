package notifier

import (
	"context"
	"crypto/tls"
	"log"

	mail "github.com/go-mail/mail/v2"
)

// Notifier delivers best-effort notifications outside the transactional
// boundary. Failures are logged by callers and never fail the operation that
// triggered them.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig carries the mail server settings read from the environment.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpNotifier struct {
	dialer *mail.Dialer
	from   string
}

// NewSMTP builds a Notifier on a STARTTLS SMTP connection.
func NewSMTP(cfg SMTPConfig) Notifier {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return &smtpNotifier{dialer: d, from: cfg.From}
}

func (n *smtpNotifier) Send(_ context.Context, to, subject, body string) error {
	if to == "" {
		return nil
	}
	m := mail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return n.dialer.DialAndSend(m)
}

type noopNotifier struct{}

// NewNoop returns a Notifier that only logs. Used when SMTP is not configured.
func NewNoop() Notifier {
	return noopNotifier{}
}

func (noopNotifier) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("notifier disabled, dropping mail to=%s subject=%q", to, subject)
	return nil
}
