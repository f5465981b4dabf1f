package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/pkg/retry"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Transport delivers a single email.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// NewTransport picks the first configured provider: Resend, SendGrid, SMTP.
// Without any of them, messages are only logged.
func NewTransport(cfg Config, logger *log.Logger) Transport {
	switch {
	case cfg.ResendAPIKey != "":
		logger.Info("Email transport selected", "transport", "resend")
		return NewResendTransport(cfg.ResendAPIKey, cfg.sender())
	case cfg.SendGridAPIKey != "":
		logger.Info("Email transport selected", "transport", "sendgrid")
		return NewSendGridTransport(cfg.SendGridAPIKey, cfg.FromName, cfg.FromEmail)
	case cfg.SMTPUser != "" && cfg.SMTPPass != "":
		logger.Info("Email transport selected", "transport", "smtp", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
		return NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.FromName, cfg.FromEmail)
	default:
		logger.Warn("No email provider configured; notifications will only be logged")
		return NewLogTransport(logger)
	}
}

type logTransport struct {
	logger *log.Logger
}

func NewLogTransport(logger *log.Logger) Transport {
	return &logTransport{logger: logger}
}

func (t *logTransport) Name() string { return "log" }

func (t *logTransport) Send(ctx context.Context, msg Message) error {
	log.GetLoggerInstanceFromContext(ctx, t.logger).Info("Email not sent (no provider configured)",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

// statusError classifies provider HTTP failures: 429 and 5xx are retried,
// other 4xx responses are permanent.
func statusError(provider string, code int, body string) error {
	err := fmt.Errorf("%s: unexpected status %d: %s", provider, code, body)
	if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return err
	}
	return retry.Permanent(err)
}
