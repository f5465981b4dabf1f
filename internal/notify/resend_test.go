package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/akeren/waitlist-foundry/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resendAgainst(t *testing.T, status int, body string) *resendTransport {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	return newResendTransport("re_test", "Acme <noreply@example.com>", base)
}

func TestResendTransport_ClassifiesFailures(t *testing.T) {
	msg := Message{To: "ana@example.com", Subject: "hi", HTML: "<p>hi</p>", Text: "hi"}

	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   bool
		permanent bool
	}{
		{name: "accepted", status: http.StatusOK, body: `{"id":"email_1"}`},
		{name: "invalid recipient", status: http.StatusUnprocessableEntity, body: `{"statusCode":422,"name":"validation_error","message":"Invalid to field"}`, wantErr: true, permanent: true},
		{name: "bad api key", status: http.StatusUnauthorized, body: `{"message":"API key is invalid"}`, wantErr: true, permanent: true},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"message":"Too many requests"}`, wantErr: true},
		{name: "provider outage", status: http.StatusServiceUnavailable, body: `{"message":"unavailable"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resendAgainst(t, tt.status, tt.body).Send(context.Background(), msg)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.permanent, retry.IsPermanent(err))
		})
	}
}

func TestResendTransport_NetworkErrorIsRetryable(t *testing.T) {
	base, err := url.Parse("http://127.0.0.1:1/")
	require.NoError(t, err)

	err = newResendTransport("re_test", "noreply@example.com", base).
		Send(context.Background(), Message{To: "ana@example.com", Subject: "hi"})

	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err))
}
