package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/resend/resend-go/v2"
)

type resendTransport struct {
	client *resend.Client
	from   string
}

func NewResendTransport(apiKey, from string) Transport {
	return newResendTransport(apiKey, from, nil)
}

// newResendTransport points the client at baseURL when it is set.
func newResendTransport(apiKey, from string, baseURL *url.URL) *resendTransport {
	client := resend.NewCustomClient(&http.Client{
		Timeout:   time.Minute,
		Transport: statusRecorder{next: http.DefaultTransport},
	}, apiKey)
	if baseURL != nil {
		client.BaseURL = baseURL
	}

	return &resendTransport{client: client, from: from}
}

func (t *resendTransport) Name() string { return "resend" }

func (t *resendTransport) Send(ctx context.Context, msg Message) error {
	var status int
	ctx = context.WithValue(ctx, statusKey{}, &status)

	_, err := t.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    t.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err == nil {
		return nil
	}
	if status != 0 {
		return statusError("resend", status, err.Error())
	}
	return fmt.Errorf("resend: %w", err)
}

type statusKey struct{}

// statusRecorder copies the response status into the *int the request
// context carries. The resend client reports failures as plain strings.
type statusRecorder struct {
	next http.RoundTripper
}

func (r statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if status, ok := req.Context().Value(statusKey{}).(*int); ok {
		*status = resp.StatusCode
	}
	return resp, nil
}
