package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type Gemini struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
}

func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента Gemini: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model, maxTokens: cfg.MaxTokens, temperature: cfg.Temperature}, nil
}

func (p *Gemini) Name() string  { return ProviderGemini }
func (p *Gemini) Model() string { return p.model }

func (p *Gemini) Complete(ctx context.Context, system string, messages []Message) (*Completion, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}

	gc := &genai.GenerateContentConfig{}
	if system != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(system)}}
	}
	if p.maxTokens > 0 {
		gc.MaxOutputTokens = int32(p.maxTokens)
	}
	if p.temperature > 0 {
		t := float32(p.temperature)
		gc.Temperature = &t
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к Gemini: %w", err)
	}

	c := &Completion{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		c.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return c, nil
}
