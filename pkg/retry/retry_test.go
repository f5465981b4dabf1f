package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2,
	}
}

func counting(calls *int, fail func(n int) error) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		return fail(*calls)
	}
}

func TestExponentialBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := NewExponentialBackoff(fastConfig(3)).ExecuteContext(context.Background(), counting(&calls, func(n int) error {
		if n < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	}))

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExponentialBackoff_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := NewExponentialBackoff(fastConfig(5)).ExecuteContext(context.Background(), counting(&calls, func(int) error {
		return errors.New("invalid recipient")
	}))

	assert.EqualError(t, err, "invalid recipient")
	assert.Equal(t, 1, calls)
}

func TestExponentialBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := NewExponentialBackoff(fastConfig(3)).ExecuteContext(context.Background(), counting(&calls, func(int) error {
		return errors.New("service unavailable")
	}))

	assert.EqualError(t, err, "service unavailable")
	assert.Equal(t, 3, calls)
}

func TestExecuteContext_PermanentErrorIsNotRetried(t *testing.T) {
	calls := 0
	cfg := fastConfig(4)
	cfg.Retryable = func(error) bool { return true }

	err := NewFixedDelay(cfg).ExecuteContext(context.Background(), counting(&calls, func(int) error {
		return Permanent(errors.New("rejected"))
	}))

	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestExecuteContext_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := NewFixedDelay(fastConfig(3)).ExecuteContext(ctx, counting(&calls, func(int) error { return nil }))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestExecuteContext_StopsWaitingWhenContextEnds(t *testing.T) {
	cfg := fastConfig(10)
	cfg.BaseDelay = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	err := NewFixedDelay(cfg).ExecuteContext(ctx, counting(&calls, func(int) error {
		return errors.New("timeout talking to smtp")
	}))

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	assert.True(t, IsTransient(errors.New("unexpected EOF")))
	assert.False(t, IsTransient(errors.New("invalid api key")))
	assert.False(t, IsTransient(nil))
}

func TestConfigDefaults(t *testing.T) {
	cfg := (*Config)(nil).withDefaults()

	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.NotNil(t, cfg.Retryable)
}
