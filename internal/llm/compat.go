package llm

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Compatible обслуживает любые эндпоинты с API chat completions (локальные модели, прокси).
type Compatible struct {
	client      oai.Client
	model       string
	maxTokens   int
	temperature float64
}

func NewCompatible(cfg Config) *Compatible {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Compatible{
		client:      oai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (p *Compatible) Name() string  { return ProviderCompatible }
func (p *Compatible) Model() string { return p.model }

func (p *Compatible) Complete(ctx context.Context, system string, messages []Message) (*Completion, error) {
	params := oai.ChatCompletionNewParams{
		Model: oai.ChatModel(p.model),
	}
	if p.maxTokens > 0 {
		params.MaxTokens = oai.Int(int64(p.maxTokens))
	}
	if p.temperature > 0 {
		params.Temperature = oai.Float(p.temperature)
	}
	if system != "" {
		params.Messages = append(params.Messages, oai.SystemMessage(system))
	}
	for _, m := range messages {
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, oai.AssistantMessage(m.Content))
			continue
		}
		params.Messages = append(params.Messages, oai.UserMessage(m.Content))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к совместимому API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("пустой ответ от совместимого API")
	}

	return &Completion{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}
