package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	AnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
	anthropicModel    = "claude-sonnet-4-5"
)

type Anthropic struct {
	apiKey      string
	client      *http.Client
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func NewAnthropic(cfg Config) *Anthropic {
	p := &Anthropic{
		apiKey:      cfg.APIKey,
		client:      http.DefaultClient,
		endpoint:    AnthropicEndpoint,
		model:       anthropicModel,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
	if cfg.HTTPClient != nil {
		p.client = cfg.HTTPClient
	}
	if cfg.BaseURL != "" {
		p.endpoint = cfg.BaseURL
	}
	if cfg.Model != "" {
		p.model = cfg.Model
	}
	if p.maxTokens <= 0 {
		p.maxTokens = 4096
	}
	return p
}

func (p *Anthropic) Name() string  { return ProviderAnthropic }
func (p *Anthropic) Model() string { return p.model }

func (p *Anthropic) Complete(ctx context.Context, system string, messages []Message) (*Completion, error) {
	body := anthropicRequest{
		Model:     p.model,
		System:    system,
		MaxTokens: p.maxTokens,
	}
	if p.temperature > 0 {
		body.Temperature = &p.temperature
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к Anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(msg)}
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа Anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return &Completion{
		Text:       sb.String(),
		TokensUsed: out.Usage.InputTokens + out.Usage.OutputTokens,
	}, nil
}

// StatusError - неуспешный HTTP-ответ провайдера.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("провайдер вернул статус %d: %s", e.Code, e.Body)
}

// Temporary сообщает, имеет ли смысл повторить запрос.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}
