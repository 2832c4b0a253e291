package routing

import (
	"log/slog"
	"sync"
	"time"
)

// CircuitState is the breaker state for one downstream service.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

const (
	// DefaultFailureThreshold opens a circuit after this many consecutive failures.
	DefaultFailureThreshold = 5
	// DefaultRecoveryTimeout is how long an open circuit blocks calls before
	// allowing a half-open probe.
	DefaultRecoveryTimeout = 60 * time.Second
)

type circuitEntry struct {
	failureCount    int
	lastFailureTime time.Time
	state           CircuitState
}

// CircuitBreaker gates calls to known-failing downstream services, tracked
// per service name. State lives only for the lifetime of the process; callers
// must not assume durability across Lambda execution environments.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	recoveryTimeout  time.Duration
	services         map[string]*circuitEntry
	now              func() time.Time
}

// NewCircuitBreaker creates a breaker with the default threshold and timeout.
func NewCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreakerWith(DefaultFailureThreshold, DefaultRecoveryTimeout)
}

// NewCircuitBreakerWith creates a breaker with explicit settings.
func NewCircuitBreakerWith(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		services:         make(map[string]*circuitEntry),
		now:              time.Now,
	}
}

func (cb *CircuitBreaker) entry(service string) *circuitEntry {
	e, ok := cb.services[service]
	if !ok {
		e = &circuitEntry{state: CircuitClosed}
		cb.services[service] = e
	}
	return e
}

// IsOpen reports whether calls to service should be blocked. Once the
// recovery timeout has elapsed since the last failure, the circuit moves to
// half-open and the next call is allowed through as a probe.
func (cb *CircuitBreaker) IsOpen(service string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	e := cb.entry(service)
	if e.state != CircuitOpen {
		return false
	}
	if cb.now().Sub(e.lastFailureTime) > cb.recoveryTimeout {
		e.state = CircuitHalfOpen
		slog.Info("Circuit breaker moved to half-open state", "service", service)
		return false
	}
	return true
}

// RecordSuccess resets the service's failure count and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess(service string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	e := cb.entry(service)
	e.failureCount = 0
	e.state = CircuitClosed
	slog.Debug("Circuit breaker reset to closed state", "service", service)
}

// RecordFailure increments the failure count and opens the circuit once the
// threshold is reached. A failure while half-open reopens immediately.
func (cb *CircuitBreaker) RecordFailure(service string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	e := cb.entry(service)
	e.failureCount++
	e.lastFailureTime = cb.now()

	if e.failureCount >= cb.failureThreshold || e.state == CircuitHalfOpen {
		e.state = CircuitOpen
		slog.Warn("Circuit breaker opened", "service", service, "failures", e.failureCount)
	}
}

// State returns the current circuit state for a service.
func (cb *CircuitBreaker) State(service string) CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.entry(service).state
}

// Snapshot returns a copy of all circuit states, keyed by service name.
func (cb *CircuitBreaker) Snapshot() map[string]CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	out := make(map[string]CircuitState, len(cb.services))
	for name, e := range cb.services {
		out[name] = e.state
	}
	return out
}
