package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"browserPilot/internal/conversation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func transcript() []conversation.Entry {
	return []conversation.Entry{
		{Role: conversation.RoleSystem, Content: "инструкция"},
		{Role: conversation.RoleTask, Content: "Задача: войти"},
		{Role: conversation.RoleObservation, Content: "[0][html[1]/body[1]/a[1]]<a>Войти</a>"},
	}
}

func TestTranscript_MergesUserTurns(t *testing.T) {
	system, msgs := Transcript(transcript())

	assert.Equal(t, "инструкция", system)
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "Задача: войти\n\n[0][html[1]/body[1]/a[1]]<a>Войти</a>", msgs[0].Content)
}

func TestTranscript_SkipsEmptyEntries(t *testing.T) {
	_, msgs := Transcript([]conversation.Entry{
		{Role: conversation.RoleSystem, Content: "s"},
		{Role: conversation.RoleObservation, Content: ""},
	})
	assert.Empty(t, msgs)
}

func TestOpenAI_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"1","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"{\"action\":{\"type\":\"wait\",\"seconds\":1}}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	}))
	defer srv.Close()

	p := NewOpenAI(Config{APIKey: "key", Model: "gpt-4o", BaseURL: srv.URL + "/v1"})
	system, msgs := Transcript(transcript())
	c, err := p.Complete(context.Background(), system, msgs)
	require.NoError(t, err)

	assert.Equal(t, `{"action":{"type":"wait","seconds":1}}`, c.Text)
	assert.Equal(t, 15, c.TokensUsed)

	sent := got["messages"].([]any)
	require.Len(t, sent, 2)
	assert.Equal(t, "system", sent[0].(map[string]any)["role"])
	assert.Equal(t, "user", sent[1].(map[string]any)["role"])
}

func TestCompatible_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "local-model", body["model"])
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"1","object":"chat.completion","created":1,"model":"local-model","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
	}))
	defer srv.Close()

	p := NewCompatible(Config{APIKey: "k", Model: "local-model", BaseURL: srv.URL + "/v1/"})
	c, err := p.Complete(context.Background(), "s", []Message{{Role: RoleUser, Content: "u"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", c.Text)
	assert.Equal(t, 5, c.TokensUsed)
}

func TestAnthropic_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"content":[{"type":"text","text":"часть 1 "},{"type":"text","text":"часть 2"}],"usage":{"input_tokens":7,"output_tokens":3}}`)
	}))
	defer srv.Close()

	p := NewAnthropic(Config{APIKey: "key", BaseURL: srv.URL})
	system, msgs := Transcript(transcript())
	c, err := p.Complete(context.Background(), system, msgs)
	require.NoError(t, err)

	assert.Equal(t, "часть 1 часть 2", c.Text)
	assert.Equal(t, 10, c.TokensUsed)
	assert.Equal(t, "инструкция", got.System)
	assert.Equal(t, 4096, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestAnthropic_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "slow down")
	}))
	defer srv.Close()

	p := NewAnthropic(Config{APIKey: "key", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), "", []Message{{Role: RoleUser, Content: "u"}})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.True(t, se.Temporary())
}

func TestGemini_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"готово"}]}}],"usageMetadata":{"totalTokenCount":12}}`)
	}))
	defer srv.Close()

	p, err := NewGemini(context.Background(), Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)

	c, err := p.Complete(context.Background(), "s", []Message{{Role: RoleUser, Content: "u"}})
	require.NoError(t, err)
	assert.Equal(t, "готово", c.Text)
	assert.Equal(t, 12, c.TokensUsed)
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, Config{Provider: "OpenAI", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())

	p, err = NewProvider(ctx, Config{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, anthropicModel, p.Model())

	_, err = NewProvider(ctx, Config{Provider: "compatible"})
	assert.Error(t, err)

	_, err = NewProvider(ctx, Config{Provider: "gemini"})
	assert.Error(t, err)

	_, err = NewProvider(ctx, Config{Provider: "nope", APIKey: "k"})
	assert.Error(t, err)
}

type stubProvider struct {
	text   string
	tokens int
	err    error
	system string
	msgs   []Message
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-1" }

func (s *stubProvider) Complete(_ context.Context, system string, msgs []Message) (*Completion, error) {
	s.system, s.msgs = system, msgs
	if s.err != nil {
		return nil, s.err
	}
	return &Completion{Text: s.text, TokensUsed: s.tokens}, nil
}

type recordedRequest struct {
	taskID, stepID *uint
	prompt, resp   string
	model          string
	tokens         int
}

type memoryLogger struct {
	reqs []recordedRequest
}

func (m *memoryLogger) LogLLMRequest(_ context.Context, taskID *uint, stepID *uint, _, prompt, resp, model string, tokens int) error {
	m.reqs = append(m.reqs, recordedRequest{taskID, stepID, prompt, resp, model, tokens})
	return nil
}

func TestClient_GenerateLogsSanitizedRequest(t *testing.T) {
	p := &stubProvider{text: "ответ, пароль: hunter22", tokens: 42}
	store := &memoryLogger{}
	c := NewClient(p, ClientOptions{Logger: store}, zaptest.NewLogger(t))

	task, step := uint(7), uint(3)
	ctx := WithTrace(context.Background(), &task, &step)
	entries := append(transcript(), conversation.Entry{Role: conversation.RoleObservation, Content: "email: user@example.com"})

	text, err := c.Generate(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, "ответ, пароль: hunter22", text)
	assert.Equal(t, "инструкция", p.system)

	require.Len(t, store.reqs, 1)
	rec := store.reqs[0]
	assert.Equal(t, uint(7), *rec.taskID)
	assert.Equal(t, uint(3), *rec.stepID)
	assert.Equal(t, "stub-1", rec.model)
	assert.Equal(t, 42, rec.tokens)
	assert.NotContains(t, rec.prompt, "user@example.com")
	assert.NotContains(t, rec.resp, "hunter22")
}

func TestClient_GenerateErrors(t *testing.T) {
	c := NewClient(&stubProvider{err: errors.New("boom")}, ClientOptions{}, nil)
	_, err := c.Generate(context.Background(), transcript())
	assert.ErrorContains(t, err, "boom")

	c = NewClient(&stubProvider{}, ClientOptions{}, nil)
	_, err = c.Generate(context.Background(), transcript())
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = c.Generate(context.Background(), transcript()[:1])
	assert.Error(t, err)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, 100)

	require.NoError(t, rl.AllowRequest())
	require.NoError(t, rl.AllowRequest())
	assert.Error(t, rl.AllowRequest())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rl.Wait(ctx, 10))

	assert.Error(t, NewRateLimiter(10, 100).Wait(context.Background(), 101))

	fresh := NewRateLimiter(10, 100)
	require.NoError(t, fresh.Wait(context.Background(), 40))
	fresh.ConsumeTokens(20)
	reqs, tokens := fresh.GetStats()
	assert.Equal(t, 9, reqs)
	assert.InDelta(t, 40, tokens, 1)
}
