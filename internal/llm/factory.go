package llm

import (
	"context"
	"fmt"
	"strings"
)

// NewProvider выбирает адаптер по имени провайдера.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.APIKey == "" && name != ProviderCompatible {
		return nil, fmt.Errorf("не задан API ключ для провайдера %q", cfg.Provider)
	}

	switch name {
	case "", ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderCompatible:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("для совместимого провайдера нужен базовый адрес")
		}
		return NewCompatible(cfg), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("неизвестный провайдер %q", cfg.Provider)
	}
}
