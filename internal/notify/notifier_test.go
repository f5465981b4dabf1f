package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/models"
	"github.com/akeren/waitlist-foundry/pkg/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	mu      sync.Mutex
	sent    []Message
	failFor map[string]error
	block   chan struct{}
}

func (t *recordingTransport) Name() string { return "recording" }

func (t *recordingTransport) Send(ctx context.Context, msg Message) error {
	if t.block != nil {
		select {
		case <-t.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err, ok := t.failFor[msg.To]; ok {
		return err
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *recordingTransport) recipients() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.sent))
	for _, m := range t.sent {
		out = append(out, m.To)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	values [][]byte
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.values = append(p.values, value)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func testConfig() Config {
	return Config{
		FromEmail:   "noreply@example.com",
		FromName:    "Acme",
		AdminEmail:  "ops@example.com",
		ProductName: "Acme",
		AppURL:      "https://acme.test/",
		Timeout:     time.Second,
	}
}

func noRetry() retry.RetryPolicy {
	return retry.NewFixedDelay(&retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond})
}

func testEntry() models.WaitlistEntry {
	company := "Acme Corp"
	return models.WaitlistEntry{
		ID:        3,
		Name:      "Ana",
		Email:     "ana@example.com",
		Company:   &company,
		UseCase:   "data-analytics",
		CreatedAt: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
	}
}

func waitFor(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestDispatcher_SendsConfirmationAndAdminAlert(t *testing.T) {
	transport := &recordingTransport{}
	metrics := NewMetrics(prometheus.NewRegistry())
	d := NewDispatcher(testConfig(), log.NewLoggerWithJSONOutput(), Options{
		Transport: transport,
		Metrics:   metrics,
		Retry:     noRetry(),
	})

	d.Notify(testEntry(), 3)
	waitFor(t, d)

	assert.ElementsMatch(t, []string{"ana@example.com", "ops@example.com"}, transport.recipients())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.notifications.WithLabelValues(TargetConfirmation, OutcomeSent)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.notifications.WithLabelValues(TargetAdminAlert, OutcomeSent)))
}

func TestDispatcher_SkipsAdminAlertWithoutAdminEmail(t *testing.T) {
	cfg := testConfig()
	cfg.AdminEmail = ""
	transport := &recordingTransport{}
	metrics := NewMetrics(nil)
	d := NewDispatcher(cfg, log.NewLoggerWithJSONOutput(), Options{Transport: transport, Metrics: metrics, Retry: noRetry()})

	d.Notify(testEntry(), 1)
	waitFor(t, d)

	assert.Equal(t, []string{"ana@example.com"}, transport.recipients())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.notifications.WithLabelValues(TargetAdminAlert, OutcomeSkipped)))
}

func TestDispatcher_TargetsFailIndependently(t *testing.T) {
	transport := &recordingTransport{failFor: map[string]error{
		"ana@example.com": retry.Permanent(errors.New("mailbox rejected")),
	}}
	metrics := NewMetrics(nil)
	d := NewDispatcher(testConfig(), log.NewLoggerWithJSONOutput(), Options{Transport: transport, Metrics: metrics, Retry: noRetry()})

	d.Notify(testEntry(), 1)
	waitFor(t, d)

	assert.Equal(t, []string{"ops@example.com"}, transport.recipients())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.notifications.WithLabelValues(TargetConfirmation, OutcomeFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.notifications.WithLabelValues(TargetAdminAlert, OutcomeSent)))
}

func TestDispatcher_NotifyReturnsBeforeDelivery(t *testing.T) {
	transport := &recordingTransport{block: make(chan struct{})}
	d := NewDispatcher(testConfig(), log.NewLoggerWithJSONOutput(), Options{Transport: transport, Retry: noRetry()})

	start := time.Now()
	d.Notify(testEntry(), 1)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, transport.recipients())

	close(transport.block)
	waitFor(t, d)
	assert.Len(t, transport.recipients(), 2)
}

func TestDispatcher_WaitHonoursContext(t *testing.T) {
	transport := &recordingTransport{block: make(chan struct{})}
	d := NewDispatcher(testConfig(), log.NewLoggerWithJSONOutput(), Options{Transport: transport, Retry: noRetry()})

	d.Notify(testEntry(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(transport.block)
	waitFor(t, d)
}

func TestDispatcher_PublishesSignupEvent(t *testing.T) {
	publisher := &recordingPublisher{}
	d := NewDispatcher(testConfig(), log.NewLoggerWithJSONOutput(), Options{
		Transport: &recordingTransport{},
		Events:    publisher,
		Retry:     noRetry(),
	})

	d.Notify(testEntry(), 7)
	waitFor(t, d)

	require.Len(t, publisher.values, 1)

	var event SignupEvent
	require.NoError(t, json.Unmarshal(publisher.values[0], &event))
	assert.Equal(t, EventWaitlistJoined, event.Event)
	assert.Equal(t, int64(7), event.Position)
	assert.Equal(t, "ana@example.com", event.Email)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	transport := &flakyTransport{fn: func() error {
		attempts++
		if attempts < 3 {
			return errors.New("sendgrid: unexpected status 503")
		}
		return nil
	}}
	cfg := testConfig()
	cfg.AdminEmail = ""
	d := NewDispatcher(cfg, log.NewLoggerWithJSONOutput(), Options{
		Transport: transport,
		Retry: retry.NewFixedDelay(&retry.Config{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			Retryable:   isRetryable,
		}),
	})

	d.Notify(testEntry(), 1)
	waitFor(t, d)

	assert.Equal(t, 3, attempts)
}

type flakyTransport struct {
	fn func() error
}

func (t *flakyTransport) Name() string { return "flaky" }

func (t *flakyTransport) Send(context.Context, Message) error { return t.fn() }

func TestConfirmationMessage(t *testing.T) {
	msg, err := confirmationMessage(testConfig(), testEntry(), 12)

	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "You're on the Acme waitlist! (#12)", msg.Subject)
	assert.Contains(t, msg.HTML, "#12")
	assert.Contains(t, msg.HTML, "Data Analytics")
	assert.Contains(t, msg.HTML, "Acme Corp")
	assert.Contains(t, msg.Text, "#12")
}

func TestAdminAlertMessage_EscapesUserInput(t *testing.T) {
	entry := testEntry()
	entry.Name = "<script>alert(1)</script>"
	entry.Company = nil

	msg, err := adminAlertMessage(testConfig(), entry, 2)

	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", msg.To)
	assert.False(t, strings.Contains(msg.HTML, "<script>"))
	assert.Contains(t, msg.HTML, "Not provided")
	assert.Contains(t, msg.HTML, "https://acme.test/admin")
}

func TestNewTransport_SelectionOrder(t *testing.T) {
	logger := log.NewLoggerWithJSONOutput()

	cfg := Config{ResendAPIKey: "re_x", SendGridAPIKey: "SG.x", SMTPUser: "u", SMTPPass: "p"}
	assert.Equal(t, "resend", NewTransport(cfg, logger).Name())

	cfg.ResendAPIKey = ""
	assert.Equal(t, "sendgrid", NewTransport(cfg, logger).Name())

	cfg.SendGridAPIKey = ""
	assert.Equal(t, "smtp", NewTransport(cfg, logger).Name())

	cfg.SMTPPass = ""
	assert.Equal(t, "log", NewTransport(cfg, logger).Name())
}

func TestStatusError(t *testing.T) {
	assert.True(t, retry.IsPermanent(statusError("sendgrid", 400, "bad")))
	assert.False(t, retry.IsPermanent(statusError("sendgrid", 429, "slow down")))
	assert.False(t, retry.IsPermanent(statusError("sendgrid", 502, "bad gateway")))
}
