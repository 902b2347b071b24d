package llm

import (
	"errors"
	"sync"
	"time"
)

// Circuit breaker defaults, applied for zero-value config fields.
const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultCooldown         = 30 * time.Second
)

// ErrCircuitOpen rejects a completion handshake while the provider is in its
// cooldown window.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the breaker's position.
type CircuitState int

const (
	// CircuitClosed passes handshakes through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects handshakes until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen lets probe handshakes through to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes the breaker. Zero values fall back to defaults.
type CircuitBreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening
	SuccessThreshold int           // Consecutive probe successes to close again
	Timeout          time.Duration // Cooldown before probing resumes
}

func (cfg CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = defaultSuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCooldown
	}
	return cfg
}

// DefaultCircuitBreakerConfig returns the default tuning.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{}.withDefaults()
}

// CircuitBreaker guards the completion handshake: Allow gates each request
// before any chunk is produced, and Success/Failure record per-attempt
// outcomes. Mid-stream failures count like any other failure but are never
// retried by the caller, so the breaker only ever blocks new handshakes,
// never a stream in progress.
//
// A single streak counter serves both directions: consecutive failures while
// closed, consecutive probe successes while half-open. The open→half-open
// transition is applied lazily on every entry point, so State() observed
// after the cooldown reports half-open without requiring an Allow call.
type CircuitBreaker struct {
	mu  sync.Mutex
	cfg CircuitBreakerConfig

	state    CircuitState
	streak   int
	openedAt time.Time
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg.withDefaults()}
}

// advance applies the lazy open→half-open transition. Callers hold mu.
func (cb *CircuitBreaker) advance() {
	if cb.state == CircuitOpen && time.Since(cb.openedAt) > cb.cfg.Timeout {
		cb.state = CircuitHalfOpen
		cb.streak = 0
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = CircuitOpen
	cb.streak = 0
	cb.openedAt = time.Now()
}

// Allow reports whether a handshake may proceed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance()
	if cb.state == CircuitOpen {
		return ErrCircuitOpen
	}
	return nil
}

// Success records a successful attempt.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance()
	switch cb.state {
	case CircuitClosed:
		cb.streak = 0
	case CircuitHalfOpen:
		cb.streak++
		if cb.streak >= cb.cfg.SuccessThreshold {
			cb.state = CircuitClosed
			cb.streak = 0
		}
	}
}

// Failure records a failed attempt. A failure while open extends the
// cooldown; a failed probe reopens immediately.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance()
	switch cb.state {
	case CircuitClosed:
		cb.streak++
		if cb.streak >= cb.cfg.FailureThreshold {
			cb.open()
		}
	case CircuitHalfOpen:
		cb.open()
	case CircuitOpen:
		cb.openedAt = time.Now()
	}
}

// State returns the current position, cooldown expiry included.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance()
	return cb.state
}
