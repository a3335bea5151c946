package agent

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("сервис решений временно недоступен")

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker перестаёт обращаться к модели после серии неудачных запросов подряд.
// Состояние общее для всех сессий.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 5
	}
	if resetTimeout == 0 {
		resetTimeout = 30 * time.Second
	}

	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        CircuitClosed,
	}
}

func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		if classifyError(err) == ErrorTypeCritical && cb.state != CircuitHalfOpen {
			return err
		}
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.failures >= cb.maxFailures || cb.state == CircuitHalfOpen {
			cb.state = CircuitOpen
		}
		return err
	}

	cb.state = CircuitClosed
	cb.failures = 0
	return nil
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
}
