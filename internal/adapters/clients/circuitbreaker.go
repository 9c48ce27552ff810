package clients

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling the downstream while the
// breaker is open, or half-open with its trial requests in flight.
var ErrCircuitOpen = errors.New("circuit breaker open")

// State is the circuit breaker state.
type State = gobreaker.State

// Circuit breaker states.
const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in state change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures int

	// Timeout is how long to wait in open state before transitioning to half-open.
	Timeout time.Duration

	// HalfOpenLimit is the number of trial requests let through while half-open.
	// That many consecutive successes close the circuit again.
	HalfOpenLimit int
}

// CircuitBreaker guards a downstream service. A request asks Allow for
// permission and reports its outcome through the returned callback.
//
// State transitions:
//   - Closed → Open: After MaxFailures consecutive failures
//   - Open → HalfOpen: After Timeout duration has passed
//   - HalfOpen → Closed: After HalfOpenLimit consecutive successes
//   - HalfOpen → Open: On any failure
type CircuitBreaker struct {
	cb *gobreaker.TwoStepCircuitBreaker[struct{}]
}

// NewCircuitBreaker creates a circuit breaker. onStateChange may be nil.
func NewCircuitBreaker(cfg CircuitBreakerConfig, onStateChange func(from, to State)) *CircuitBreaker {
	maxFailures := uint32(max(cfg.MaxFailures, 1)) //nolint:gosec // bounded by config validation
	halfOpen := uint32(max(cfg.HalfOpenLimit, 1))  //nolint:gosec // bounded by config validation

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: halfOpen,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}

	if onStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			onStateChange(from, to)
		}
	}

	return &CircuitBreaker{cb: gobreaker.NewTwoStepCircuitBreaker[struct{}](settings)}
}

// Allow reports whether a request may proceed. On success the caller must
// invoke done exactly once with the outcome of the request.
func (b *CircuitBreaker) Allow() (done func(success bool), err error) {
	done, err = b.cb.Allow()
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}

	return done, err
}

// State returns the current state of the circuit breaker.
func (b *CircuitBreaker) State() State {
	return b.cb.State()
}
