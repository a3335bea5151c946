package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter ограничивает частоту запросов (RPM) и расход токенов (TPH).
type RateLimiter struct {
	requestsPerMinute int
	tokensPerHour     int

	requests *rate.Limiter
	tokens   *rate.Limiter
}

func NewRateLimiter(requestsPerMinute, tokensPerHour int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if tokensPerHour <= 0 {
		tokensPerHour = 90000
	}

	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		tokensPerHour:     tokensPerHour,
		requests:          rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		tokens:            rate.NewLimiter(rate.Limit(float64(tokensPerHour)/3600), tokensPerHour),
	}
}

// AllowRequest проверяет, можно ли выполнить запрос прямо сейчас.
func (rl *RateLimiter) AllowRequest() error {
	if !rl.requests.Allow() {
		return fmt.Errorf("превышен лимит запросов (%d RPM)", rl.requestsPerMinute)
	}
	return nil
}

// Wait блокируется, пока не освободится место под один запрос и указанное число токенов.
func (rl *RateLimiter) Wait(ctx context.Context, tokens int) error {
	if err := rl.requests.Wait(ctx); err != nil {
		return fmt.Errorf("ожидание лимита запросов (%d RPM): %w", rl.requestsPerMinute, err)
	}
	if tokens <= 0 {
		return nil
	}
	if tokens > rl.tokensPerHour {
		return fmt.Errorf("запрос на %d токенов превышает лимит %d TPH", tokens, rl.tokensPerHour)
	}
	if err := rl.tokens.WaitN(ctx, tokens); err != nil {
		return fmt.Errorf("ожидание лимита токенов (%d TPH): %w", rl.tokensPerHour, err)
	}
	return nil
}

// ConsumeTokens списывает токены, израсходованные сверх оценки.
func (rl *RateLimiter) ConsumeTokens(tokens int) {
	if tokens <= 0 {
		return
	}
	if tokens > rl.tokensPerHour {
		tokens = rl.tokensPerHour
	}
	rl.tokens.ReserveN(time.Now(), tokens)
}

// GetStats возвращает текущую статистику лимитера
func (rl *RateLimiter) GetStats() (requestsAvailable int, tokensAvailable int) {
	return int(rl.requests.Tokens()), int(rl.tokens.Tokens())
}
