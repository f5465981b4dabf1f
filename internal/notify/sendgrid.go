package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendGridTransport struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

func NewSendGridTransport(apiKey, fromName, fromEmail string) Transport {
	return &sendGridTransport{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (t *sendGridTransport) Name() string { return "sendgrid" }

func (t *sendGridTransport) Send(ctx context.Context, msg Message) error {
	email := sgmail.NewSingleEmail(
		sgmail.NewEmail(t.fromName, t.fromEmail),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)

	resp, err := t.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return statusError("sendgrid", resp.StatusCode, resp.Body)
	}
	return nil
}
