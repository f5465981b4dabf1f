package notify

import (
	"context"
	"fmt"
	"time"

	mail "gopkg.in/mail.v2"
)

type smtpTransport struct {
	host      string
	port      int
	user      string
	pass      string
	fromName  string
	fromEmail string
}

func NewSMTPTransport(host string, port int, user, pass, fromName, fromEmail string) Transport {
	return &smtpTransport{
		host:      host,
		port:      port,
		user:      user,
		pass:      pass,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (t *smtpTransport) Name() string { return "smtp" }

func (t *smtpTransport) Send(ctx context.Context, msg Message) error {
	m := mail.NewMessage()
	m.SetAddressHeader("From", t.fromEmail, t.fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	dialer := mail.NewDialer(t.host, t.port, t.user, t.pass)
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Timeout = time.Until(deadline)
	}

	// mail.v2 has no context support; the dialer timeout bounds the call.
	errCh := make(chan error, 1)
	go func() {
		errCh <- dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp: %w", ctx.Err())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		return nil
	}
}
