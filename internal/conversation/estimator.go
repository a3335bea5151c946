package conversation

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Estimator оценивает стоимость текста в токенах. Оценка детерминирована.
type Estimator interface {
	Estimate(text string) int
}

// CharEstimator - грубая оценка: ~4 символа на токен.
type CharEstimator struct {
	CharsPerToken int
}

func (e CharEstimator) Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	per := e.CharsPerToken
	if per <= 0 {
		per = 4
	}
	return (n + per - 1) / per
}

type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки кодировки %s: %w", encoding, err)
	}
	return &TiktokenEstimator{enc: enc}, nil
}

func (e *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}

// DefaultEstimator пытается загрузить cl100k_base и откатывается на посимвольную оценку.
func DefaultEstimator(log *zap.Logger) Estimator {
	est, err := NewTiktokenEstimator("cl100k_base")
	if err != nil {
		if log != nil {
			log.Warn("Токенизатор недоступен, используется оценка по символам", zap.Error(err))
		}
		return CharEstimator{CharsPerToken: 4}
	}
	return est
}
