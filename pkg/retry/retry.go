// Package retry runs an operation until it succeeds, fails permanently or
// runs out of attempts.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryPolicy interface {
	ExecuteContext(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// Retryable decides which errors get another attempt. Defaults to IsTransient.
	Retryable func(error) bool
}

func (c *Config) withDefaults() Config {
	out := Config{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 30 * time.Second, Multiplier: 2}
	if c == nil {
		out.Retryable = IsTransient
		return out
	}
	if c.MaxAttempts > 0 {
		out.MaxAttempts = c.MaxAttempts
	}
	if c.BaseDelay > 0 {
		out.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		out.MaxDelay = c.MaxDelay
	}
	if c.Multiplier > 1 {
		out.Multiplier = c.Multiplier
	}
	out.Retryable = c.Retryable
	if out.Retryable == nil {
		out.Retryable = IsTransient
	}
	return out
}

// Policy drives backoff.Retry with a fresh schedule per call.
type Policy struct {
	cfg      Config
	schedule func() backoff.BackOff
}

func NewExponentialBackoff(config *Config) *Policy {
	cfg := config.withDefaults()
	return &Policy{cfg: cfg, schedule: func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.BaseDelay
		b.MaxInterval = cfg.MaxDelay
		b.Multiplier = cfg.Multiplier
		return b
	}}
}

func NewFixedDelay(config *Config) *Policy {
	cfg := config.withDefaults()
	return &Policy{cfg: cfg, schedule: func() backoff.BackOff {
		return backoff.NewConstantBackOff(cfg.BaseDelay)
	}}
}

// ExecuteContext returns nil on the first success, otherwise the last error
// from fn, or the context error if ctx ends first.
func (p *Policy) ExecuteContext(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn(ctx)
		if err != nil && (IsPermanent(err) || !p.cfg.Retryable(err)) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(p.schedule()),
		backoff.WithMaxTries(uint(p.cfg.MaxAttempts)),
	)

	var stop *backoff.PermanentError
	if errors.As(err, &stop) {
		return stop.Err
	}
	return err
}

var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"too many requests",
	"eof",
}

// IsTransient reports network timeouts and errors whose text names a
// condition that usually clears on its own.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// PermanentError marks a failure that must never be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
