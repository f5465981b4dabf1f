package notify

//go:generate mockgen -source=notifier.go -destination=mocks/mock_notifier.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/models"
	"github.com/akeren/waitlist-foundry/pkg/circuitbreaker"
	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
	"github.com/akeren/waitlist-foundry/pkg/retry"
)

const defaultTimeout = 15 * time.Second

// Notifier fans a successful enrollment out to email and event targets.
// Notify never blocks on delivery and never reports failure to the caller.
type Notifier interface {
	Notify(entry models.WaitlistEntry, position int64)
	// Wait blocks until in-flight dispatches finish or ctx is done.
	Wait(ctx context.Context) error
	Close() error
}

type Options struct {
	Transport Transport
	Events    EventPublisher
	Metrics   *Metrics
	Retry     retry.RetryPolicy
	Breaker   circuitbreaker.CircuitBreaker
}

type Dispatcher struct {
	cfg       Config
	logger    *log.Logger
	transport Transport
	events    EventPublisher
	metrics   *Metrics
	retry     retry.RetryPolicy
	breaker   circuitbreaker.CircuitBreaker
	wg        sync.WaitGroup
}

var _ Notifier = (*Dispatcher)(nil)

func NewDispatcher(cfg Config, logger *log.Logger, opts Options) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if opts.Transport == nil {
		opts.Transport = NewLogTransport(logger)
	}
	if opts.Retry == nil {
		opts.Retry = retry.NewExponentialBackoff(&retry.Config{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Multiplier:  2,
			Retryable:   isRetryable,
		})
	}
	if opts.Breaker == nil {
		opts.Breaker = circuitbreaker.NewCircuitBreaker(&circuitbreaker.Config{
			Name:             opts.Transport.Name(),
			FailureThreshold: 5,
			RecoveryTimeout:  time.Minute,
			SuccessThreshold: 1,
			IsFailure:        func(err error) bool { return !retry.IsPermanent(err) },
			OnStateChange: func(name string, from, to circuitbreaker.CircuitState) {
				logger.Warn("Email transport circuit changed state", "transport", name, "from", from.String(), "to", to.String())
			},
		})
	}

	return &Dispatcher{
		cfg:       cfg,
		logger:    logger,
		transport: opts.Transport,
		events:    opts.Events,
		metrics:   opts.Metrics,
		retry:     opts.Retry,
		breaker:   opts.Breaker,
	}
}

func isRetryable(err error) bool {
	return !errors.Is(err, circuitbreaker.ErrCircuitOpen) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (d *Dispatcher) Notify(entry models.WaitlistEntry, position int64) {
	d.dispatch(TargetConfirmation, entry, func(ctx context.Context) (bool, error) {
		msg, err := confirmationMessage(d.cfg, entry, position)
		if err != nil {
			return false, err
		}
		return true, d.send(ctx, msg)
	})

	d.dispatch(TargetAdminAlert, entry, func(ctx context.Context) (bool, error) {
		if d.cfg.AdminEmail == "" {
			return false, nil
		}
		msg, err := adminAlertMessage(d.cfg, entry, position)
		if err != nil {
			return false, err
		}
		return true, d.send(ctx, msg)
	})

	if d.events != nil {
		d.dispatch(TargetSignupEvent, entry, func(ctx context.Context) (bool, error) {
			key, value, err := encodeSignupEvent(entry, position)
			if err != nil {
				return false, err
			}
			return true, d.events.Publish(ctx, key, value)
		})
	}
}

// dispatch runs fn on its own goroutine with a timeout detached from any
// request context. fn reports false when the target does not apply.
func (d *Dispatcher) dispatch(target string, entry models.WaitlistEntry, fn func(ctx context.Context) (bool, error)) {
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		logger := d.logger.With("target", target, "entry_id", entry.ID)

		defer func() {
			if r := recover(); r != nil {
				logger.Error("Notification panicked", "panic", fmt.Sprint(r))
				d.metrics.observe(target, OutcomeFailed)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		defer cancel()

		attempted, err := fn(ctx)
		switch {
		case err != nil:
			notifyErr := apperrors.NewNotificationError(fmt.Sprintf("%s notification failed", target), err)
			logger.Error("Notification failed", "error", notifyErr)
			d.metrics.observe(target, OutcomeFailed)
		case !attempted:
			logger.Debug("Notification skipped")
			d.metrics.observe(target, OutcomeSkipped)
		default:
			logger.Info("Notification sent")
			d.metrics.observe(target, OutcomeSent)
		}
	}()
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	return d.retry.ExecuteContext(ctx, func(ctx context.Context) error {
		return d.breaker.Call(func() error {
			return d.transport.Send(ctx, msg)
		})
	})
}

func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Close() error {
	if d.events == nil {
		return nil
	}
	return d.events.Close()
}
