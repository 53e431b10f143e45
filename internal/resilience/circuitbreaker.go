// Package resilience keeps the capture pipeline dictating while a speech or
// extraction provider misbehaves.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops hammering a provider once it fails repeatedly. [FallbackGroup] chains
// a primary provider with fallbacks behind per-provider breakers, so a
// Deepgram outage degrades to the configured backup transcriber instead of
// killing the session. [STTFallback] and [LLMFallback] apply the group to the
// pipeline's two provider boundaries.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// failing fast and the reset timeout has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a breaker's operating mode.
type State int

const (
	// StateClosed forwards every call; the provider is considered healthy.
	StateClosed State = iota

	// StateOpen fails fast with [ErrCircuitOpen] after too many consecutive
	// provider failures, until the reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through to find out
	// whether the provider recovered. Probes succeeding closes the breaker;
	// any probe failing re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero fields take defaults.
type CircuitBreakerConfig struct {
	// Name labels the guarded provider in logs, e.g. "stt-deepgram".
	Name string

	// MaxFailures is how many consecutive failures trip the breaker.
	// Default 5.
	MaxFailures int

	// ResetTimeout is how long the breaker fails fast before probing the
	// provider again. Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds the probe calls allowed while half-open. Default 3.
	HalfOpenMax int
}

// CircuitBreaker guards one provider. Safe for concurrent use.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu         sync.Mutex
	state      State
	streak     int // consecutive failures while closed
	failedAt   time.Time
	probes     int // calls admitted while half-open
	probeFails int
}

// NewCircuitBreaker builds a breaker from cfg, filling in defaults for any
// zero field.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		state:        StateClosed,
	}
}

// Execute runs fn unless the breaker is failing fast, in which case it
// returns [ErrCircuitOpen] without touching the provider. fn's error is
// passed through.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.failedAt) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeFails = 0
		slog.Info("resilience: probing provider again", "breaker", cb.name)

	case StateHalfOpen:
		if cb.probes >= cb.halfOpenMax {
			// Probe budget spent, verdict pending.
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	probing := cb.state == StateHalfOpen
	if probing {
		cb.probes++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	cb.settle(err, probing)
	cb.mu.Unlock()
	return err
}

// settle updates breaker state after a call. Caller holds cb.mu.
func (cb *CircuitBreaker) settle(err error, probing bool) {
	if err == nil {
		if !probing {
			cb.streak = 0
			return
		}
		if cb.probes-cb.probeFails >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.streak = 0
			cb.probes = 0
			cb.probeFails = 0
			slog.Info("resilience: provider recovered, breaker closed", "breaker", cb.name)
		}
		return
	}

	cb.failedAt = time.Now()
	if probing {
		// One failed probe is enough, back to failing fast.
		cb.probeFails++
		cb.state = StateOpen
		cb.streak = cb.maxFailures
		slog.Warn("resilience: probe failed, breaker re-opened", "breaker", cb.name)
		return
	}

	cb.streak++
	if cb.streak >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("resilience: breaker opened, failing fast",
			"breaker", cb.name, "consecutive_failures", cb.streak)
	}
}

// State reports the breaker's mode. An open breaker whose reset timeout has
// elapsed reports half-open; the transition itself happens on the next
// Execute.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.failedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.streak = 0
	cb.probes = 0
	cb.probeFails = 0
	slog.Info("resilience: breaker reset", "breaker", cb.name)
}
