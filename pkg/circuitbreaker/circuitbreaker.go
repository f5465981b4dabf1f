// Package circuitbreaker stops calling a failing dependency for a while and
// probes it again before resuming normal traffic.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitState int

const (
	Closed CircuitState = iota
	Open
	HalfOpen
)

var stateNames = map[CircuitState]string{
	Closed:   "closed",
	Open:     "open",
	HalfOpen: "half_open",
}

func (s CircuitState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

type CircuitBreaker interface {
	Call(func() error) error
	State() CircuitState
	Name() string
	Reset()
}

type Config struct {
	Name string
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before probing.
	RecoveryTimeout time.Duration
	// SuccessThreshold half-open successes close it again.
	SuccessThreshold int
	// OnStateChange runs outside the lock.
	OnStateChange func(name string, from, to CircuitState)
	// IsFailure filters which errors count. Nil counts all of them.
	IsFailure func(error) bool
}

type breaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     CircuitState
	failures  int
	successes int
	openUntil time.Time
}

func NewCircuitBreaker(config *Config) CircuitBreaker {
	return newCircuitBreaker(config, time.Now)
}

func newCircuitBreaker(config *Config, now func() time.Time) *breaker {
	cfg := Config{FailureThreshold: 5, RecoveryTimeout: time.Minute, SuccessThreshold: 1}
	if config != nil {
		cfg = *config
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 1
	}
	return &breaker{cfg: cfg, now: now}
}

func (b *breaker) Name() string { return b.cfg.Name }

func (b *breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call runs fn unless the circuit is open. fn runs without the lock held.
func (b *breaker) Call(fn func() error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}

	err := fn()
	b.record(err != nil && (b.cfg.IsFailure == nil || b.cfg.IsFailure(err)))
	return err
}

func (b *breaker) admit() bool {
	b.mu.Lock()
	from := b.state
	if b.state == Open && !b.now().Before(b.openUntil) {
		b.setState(HalfOpen)
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return to != Open
}

func (b *breaker) record(failed bool) {
	b.mu.Lock()
	from := b.state

	switch {
	case failed && (b.state == HalfOpen || b.failures+1 >= b.cfg.FailureThreshold):
		b.setState(Open)
		b.openUntil = b.now().Add(b.cfg.RecoveryTimeout)
	case failed:
		b.failures++
	case b.state == HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.setState(Closed)
		}
	default:
		b.failures = 0
	}

	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.setState(Closed)
	b.mu.Unlock()

	b.notify(from, Closed)
}

// setState resets the counters for the new state. Callers hold b.mu.
func (b *breaker) setState(s CircuitState) {
	b.state = s
	b.failures = 0
	b.successes = 0
}

func (b *breaker) notify(from, to CircuitState) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}
