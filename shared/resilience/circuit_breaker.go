package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is wrapped by Execute when the breaker rejects a call
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name             string
	maxFailures      uint32
	resetTimeout     time.Duration
	halfOpenMaxCalls uint32
	isFailure        func(error) bool

	state           int32  // atomic
	failures        uint32 // atomic
	lastFailureTime int64  // atomic (UnixNano)
	halfOpenCalls   uint32 // atomic

	mu              sync.RWMutex
	successCount    uint64
	failureCount    uint64
	lastStateChange time.Time
	onStateChange   func(name string, from, to State)
}

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	Name             string
	MaxFailures      uint32
	ResetTimeout     time.Duration
	HalfOpenMaxCalls uint32
	// IsFailure decides which errors count against the breaker. nil counts all of them.
	IsFailure     func(error) bool
	OnStateChange func(name string, from, to State)
}

// DefaultCircuitBreakerConfig returns default circuit breaker configuration
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "default",
		MaxFailures:      5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if config.HalfOpenMaxCalls == 0 {
		config.HalfOpenMaxCalls = 1
	}

	return &CircuitBreaker{
		name:             config.Name,
		maxFailures:      config.MaxFailures,
		resetTimeout:     config.ResetTimeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
		isFailure:        config.IsFailure,
		state:            int32(StateClosed),
		lastStateChange:  time.Now(),
		onStateChange:    config.OnStateChange,
	}
}

// Execute runs the given function if the circuit breaker allows it
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.canExecute() {
		return fmt.Errorf("circuit breaker '%s': %w", cb.name, ErrCircuitOpen)
	}

	err := fn(ctx)

	if err != nil && (cb.isFailure == nil || cb.isFailure(err)) {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}

	return err
}

// canExecute checks if execution is allowed based on current state
func (cb *CircuitBreaker) canExecute() bool {
	switch cb.GetState() {
	case StateClosed:
		return true

	case StateOpen:
		lastFailure := time.Unix(0, atomic.LoadInt64(&cb.lastFailureTime))
		if time.Since(lastFailure) > cb.resetTimeout {
			cb.transitionTo(StateHalfOpen)
			atomic.AddUint32(&cb.halfOpenCalls, 1)
			return true
		}
		return false

	case StateHalfOpen:
		calls := atomic.AddUint32(&cb.halfOpenCalls, 1)
		return calls <= cb.halfOpenMaxCalls

	default:
		return false
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	cb.successCount++
	cb.mu.Unlock()

	switch cb.GetState() {
	case StateHalfOpen:
		cb.transitionTo(StateClosed)
	case StateClosed:
		atomic.StoreUint32(&cb.failures, 0)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	cb.failureCount++
	cb.mu.Unlock()

	atomic.StoreInt64(&cb.lastFailureTime, time.Now().UnixNano())
	failures := atomic.AddUint32(&cb.failures, 1)

	switch cb.GetState() {
	case StateClosed:
		if failures >= cb.maxFailures {
			cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		// Any failure in half-open state opens the circuit
		cb.transitionTo(StateOpen)
	}
}

func (cb *CircuitBreaker) transitionTo(newState State) {
	oldState := State(atomic.SwapInt32(&cb.state, int32(newState)))
	if oldState == newState {
		return
	}

	cb.mu.Lock()
	cb.lastStateChange = time.Now()
	cb.mu.Unlock()

	switch newState {
	case StateClosed:
		atomic.StoreUint32(&cb.failures, 0)
		atomic.StoreUint32(&cb.halfOpenCalls, 0)
	case StateHalfOpen, StateOpen:
		atomic.StoreUint32(&cb.halfOpenCalls, 0)
	}

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, oldState, newState)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	return State(atomic.LoadInt32(&cb.state))
}

// Name returns the breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return CircuitBreakerStats{
		Name:            cb.name,
		State:           cb.GetState(),
		Failures:        atomic.LoadUint32(&cb.failures),
		SuccessCount:    cb.successCount,
		FailureCount:    cb.failureCount,
		LastStateChange: cb.lastStateChange,
	}
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.transitionTo(StateClosed)
}

// CircuitBreakerStats holds statistics for a circuit breaker
type CircuitBreakerStats struct {
	Name            string
	State           State
	Failures        uint32
	SuccessCount    uint64
	FailureCount    uint64
	LastStateChange time.Time
}
