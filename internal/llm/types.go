// Package llm предоставляет единый клиент к модели, принимающей решения.
// Каждый провайдер реализован отдельным адаптером, который только переводит формат
// сообщений. Включает rate limiting и журналирование запросов.
package llm

import (
	"context"
	"net/http"

	"browserPilot/internal/conversation"
)

// Logger определяет интерфейс для логирования LLM запросов.
type Logger interface {
	// LogLLMRequest сохраняет информацию о запросе к LLM в базу данных.
	LogLLMRequest(ctx context.Context, taskID *uint, stepID *uint, role, promptText, responseText, model string, tokensUsed int) error
}

// Generator превращает историю разговора в один запрос к модели и возвращает сырой текст ответа.
// Оркестратор зависит только от этого интерфейса.
type Generator interface {
	Generate(ctx context.Context, transcript []conversation.Entry) (string, error)
}

// Provider - адаптер конкретного API.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, system string, messages []Message) (*Completion, error)
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Completion struct {
	Text       string
	TokensUsed int
}

const (
	ProviderOpenAI     = "openai"
	ProviderCompatible = "compatible"
	ProviderGemini     = "gemini"
	ProviderAnthropic  = "anthropic"
)

type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}
