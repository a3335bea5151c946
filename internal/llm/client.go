package llm

import (
	"context"
	"errors"
	"fmt"

	"browserPilot/internal/conversation"
	"browserPilot/internal/sanitizer"

	"go.uber.org/zap"
)

var ErrEmptyResponse = errors.New("пустой ответ модели")

type Client struct {
	provider    Provider
	logger      Logger
	sanitizer   *sanitizer.DataSanitizer
	rateLimiter *RateLimiter
	maxTokens   int
	log         *zap.Logger
}

type ClientOptions struct {
	// Logger сохраняет запросы в БД, может быть nil.
	Logger            Logger
	RequestsPerMinute int
	TokensPerHour     int
	MaxTokens         int
}

func NewClient(p Provider, opts ClientOptions, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		provider:    p,
		logger:      opts.Logger,
		sanitizer:   sanitizer.New(),
		rateLimiter: NewRateLimiter(opts.RequestsPerMinute, opts.TokensPerHour),
		maxTokens:   opts.MaxTokens,
		log:         log.With(zap.String("provider", p.Name()), zap.String("model", p.Model())),
	}
}

func (c *Client) Model() string { return c.provider.Model() }

func (c *Client) RateLimiter() *RateLimiter { return c.rateLimiter }

// Generate выполняет запрос с проверкой rate limit и журналирует его.
func (c *Client) Generate(ctx context.Context, transcript []conversation.Entry) (string, error) {
	system, msgs := Transcript(transcript)
	if len(msgs) == 0 {
		return "", fmt.Errorf("нет сообщений для запроса к модели")
	}

	estimated := estimateTokens(system, msgs) + c.maxTokens
	if err := c.rateLimiter.Wait(ctx, estimated); err != nil {
		return "", err
	}

	completion, err := c.provider.Complete(ctx, system, msgs)
	if err != nil {
		c.log.Warn("Ошибка запроса к модели", zap.Error(err))
		return "", fmt.Errorf("запрос к %s: %w", c.provider.Name(), err)
	}
	if completion.Text == "" {
		return "", ErrEmptyResponse
	}

	if completion.TokensUsed > estimated {
		c.rateLimiter.ConsumeTokens(completion.TokensUsed - estimated)
	}

	c.log.Debug("Ответ модели получен",
		zap.Int("tokens", completion.TokensUsed),
		zap.Int("messages", len(msgs)),
	)
	c.record(ctx, flatten(system, msgs), completion)

	return completion.Text, nil
}

func (c *Client) record(ctx context.Context, prompt string, completion *Completion) {
	if c.logger == nil {
		return
	}
	taskID, stepID := traceFrom(ctx)
	err := c.logger.LogLLMRequest(ctx, taskID, stepID, string(RoleUser),
		c.sanitizer.Sanitize(prompt),
		c.sanitizer.Sanitize(completion.Text),
		c.provider.Model(),
		completion.TokensUsed,
	)
	if err != nil {
		c.log.Warn("Не удалось сохранить лог запроса", zap.Error(err))
	}
}

type traceKey struct{}

type trace struct {
	taskID *uint
	stepID *uint
}

// WithTrace привязывает к контексту идентификаторы задачи и шага для журнала запросов.
func WithTrace(ctx context.Context, taskID, stepID *uint) context.Context {
	return context.WithValue(ctx, traceKey{}, trace{taskID: taskID, stepID: stepID})
}

func traceFrom(ctx context.Context) (*uint, *uint) {
	t, _ := ctx.Value(traceKey{}).(trace)
	return t.taskID, t.stepID
}
