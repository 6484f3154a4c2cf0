// circuitbreaker.go - Fail fast when the mirror bucket or the audit database
// stops answering, so a dead dependency does not stall the accept loop.
package server

import (
	"errors"
	"sync"
	"time"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// StateClosed: calls flow normally
	StateClosed CircuitState = iota
	// StateOpen: calls fail fast
	StateOpen
	// StateHalfOpen: one trial call decides whether to close again
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// ErrCircuitOpen is returned when circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards calls to one dependency.
type CircuitBreaker struct {
	mu sync.Mutex

	name        string
	maxFailures uint32
	timeout     time.Duration
	log         *Logger
	now         func() time.Time

	state           CircuitState
	failures        uint32
	lastFailureTime time.Time

	totalRequests    uint64
	failedRequests   uint64
	rejectedRequests uint64
}

// NewCircuitBreaker opens after maxFailures consecutive failures and allows a
// trial call once timeout has passed.
func NewCircuitBreaker(name string, maxFailures uint32, timeout time.Duration, log *Logger) *CircuitBreaker {
	if log == nil {
		log = DefaultLogger
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		timeout:     timeout,
		log:         log,
		now:         time.Now,
		state:       StateClosed,
	}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	cb.totalRequests++
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) <= cb.timeout {
			cb.rejectedRequests++
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.log.Info("circuit_breaker_half_open", map[string]any{
			"name":            cb.name,
			"timeout_elapsed": cb.timeout.String(),
		})
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) onSuccess() {
	if cb.state == StateHalfOpen {
		cb.log.Info("circuit_breaker_closed", map[string]any{
			"name":   cb.name,
			"reason": "recovery_successful",
		})
	}
	cb.state = StateClosed
	cb.failures = 0
}

func (cb *CircuitBreaker) onFailure() {
	cb.failedRequests++
	cb.failures++
	cb.lastFailureTime = cb.now()

	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		if cb.state != StateOpen {
			cb.log.Warn("circuit_breaker_opened", map[string]any{
				"name":         cb.name,
				"failures":     cb.failures,
				"max_failures": cb.maxFailures,
				"timeout":      cb.timeout.String(),
			})
		}
		cb.state = StateOpen
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns circuit breaker statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		State:            cb.state,
		Failures:         cb.failures,
		TotalRequests:    cb.totalRequests,
		FailedRequests:   cb.failedRequests,
		RejectedRequests: cb.rejectedRequests,
		LastFailureTime:  cb.lastFailureTime,
	}
}

// CircuitBreakerStats holds circuit breaker statistics.
type CircuitBreakerStats struct {
	State            CircuitState `json:"state"`
	Failures         uint32       `json:"failures"`
	TotalRequests    uint64       `json:"total_requests"`
	FailedRequests   uint64       `json:"failed_requests"`
	RejectedRequests uint64       `json:"rejected_requests"`
	LastFailureTime  time.Time    `json:"last_failure_time"`
}
