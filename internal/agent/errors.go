package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"browserPilot/internal/llm"
	"browserPilot/internal/transport"
)

type ErrorType int

const (
	ErrorTypeTemporary ErrorType = iota
	ErrorTypeCritical
	ErrorTypeRetryable
)

func (e ErrorType) String() string {
	switch e {
	case ErrorTypeTemporary:
		return "temporary"
	case ErrorTypeCritical:
		return "critical"
	case ErrorTypeRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// DecisionError - сбой запроса к модели после всех попыток.
type DecisionError struct {
	Type    ErrorType
	Attempt int
	Err     error
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("запрос решения (%s, попыток %d): %v", e.Type, e.Attempt, e.Err)
}

func (e *DecisionError) Unwrap() error {
	return e.Err
}

func classifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeTemporary
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) || transport.IsChannelError(err) {
		return ErrorTypeCritical
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, llm.ErrEmptyResponse) {
		return ErrorTypeRetryable
	}
	var se *llm.StatusError
	if errors.As(err, &se) {
		if se.Temporary() {
			return ErrorTypeRetryable
		}
		return ErrorTypeCritical
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "econnrefused") ||
		strings.Contains(errStr, "etimedout") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "лимит") {
		return ErrorTypeRetryable
	}

	if strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "api key") ||
		strings.Contains(errStr, "ключ") {
		return ErrorTypeCritical
	}

	return ErrorTypeTemporary
}

// retryAction повторяет fn с экспоненциальной задержкой, пока ошибка не критична.
func retryAction(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
			select {
			case <-ctx.Done():
				return &DecisionError{Type: ErrorTypeCritical, Attempt: attempt, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if t := classifyError(err); t == ErrorTypeCritical {
			return &DecisionError{Type: t, Attempt: attempt + 1, Err: err}
		}
	}

	return &DecisionError{Type: classifyError(lastErr), Attempt: maxRetries, Err: lastErr}
}
