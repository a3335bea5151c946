package pagehost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"browserPilot/internal/action"
	"browserPilot/internal/dom"
	"browserPilot/internal/executor"
	"browserPilot/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const searchPage = `<html><head><title>Поиск</title></head><body>
<input type="text" name="q" placeholder="Запрос">
<button>Найти</button>
<p>Просто текст</p>
</body></html>`

type fakeBrowser struct {
	mu         sync.Mutex
	html       string
	captureErr error
	captures   int
	loads      []string
	highlights [][]dom.Overlay
	clicks     []string
	typed      string
}

func (b *fakeBrowser) Capture(context.Context) (*dom.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captures++
	if b.captureErr != nil {
		return nil, b.captureErr
	}
	return dom.ParseHTMLString(b.html, dom.Rect{Width: 1280, Height: 720})
}

func (b *fakeBrowser) WaitForLoadState(_ context.Context, state string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads = append(b.loads, state)
	return nil
}

func (b *fakeBrowser) captureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.captures
}

func (b *fakeBrowser) Highlight(_ context.Context, overlays []dom.Overlay) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.highlights = append(b.highlights, overlays)
	return nil
}

func (b *fakeBrowser) lastHighlight() []dom.Overlay {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.highlights) == 0 {
		return nil
	}
	return b.highlights[len(b.highlights)-1]
}

func (b *fakeBrowser) PressAt(context.Context, float64, float64) error { return nil }
func (b *fakeBrowser) ScrollBy(context.Context, float64) error         { return nil }
func (b *fakeBrowser) ViewportHeight(context.Context) (float64, error) { return 720, nil }

func (b *fakeBrowser) Resolver(snap *dom.Snapshot) executor.Resolver {
	return &fakeResolver{b: b, snap: snap}
}

type fakeResolver struct {
	b    *fakeBrowser
	snap *dom.Snapshot
}

func (r *fakeResolver) Resolve(_ context.Context, xpath string, index *int) (executor.Element, error) {
	var el *dom.ElementNode
	var ok bool
	if xpath != "" {
		el, ok = r.snap.Lookup(xpath)
	} else if index != nil {
		el, ok = r.snap.Element(*index)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", action.ErrElementNotFound, xpath)
	}
	return &fakeElement{b: r.b, locator: el.Locator}, nil
}

type fakeElement struct {
	b       *fakeBrowser
	locator string
}

func (e *fakeElement) ScrollIntoView(context.Context) error { return nil }
func (e *fakeElement) Click(context.Context) error {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	e.b.clicks = append(e.b.clicks, e.locator)
	return nil
}
func (e *fakeElement) DispatchClick(context.Context) error                  { return nil }
func (e *fakeElement) Center(context.Context) (float64, float64, error)     { return 0, 0, nil }
func (e *fakeElement) Focus(context.Context) error                          { return nil }
func (e *fakeElement) Clear(context.Context) error                          { return nil }
func (e *fakeElement) EmitChange(context.Context) error                     { return nil }
func (e *fakeElement) AppendText(_ context.Context, text string) error {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	e.b.typed += text
	return nil
}

type fakeSender struct {
	out chan transport.Envelope
}

func (s *fakeSender) Send(t transport.MessageType, payload any) error {
	env, err := transport.NewEnvelope(t, payload)
	if err != nil {
		return err
	}
	s.out <- env
	return nil
}

func (s *fakeSender) next(t *testing.T) transport.Envelope {
	t.Helper()
	select {
	case env := <-s.out:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("сообщение не отправлено")
		return transport.Envelope{}
	}
}

func (s *fakeSender) empty(t *testing.T) {
	t.Helper()
	select {
	case env := <-s.out:
		t.Fatalf("неожиданное сообщение %s", env.Type)
	default:
	}
}

func startHost(t *testing.T, b *fakeBrowser) (*Host, *fakeSender) {
	t.Helper()
	h := New(b, dom.NewBuilder(dom.DefaultOptions(), zaptest.NewLogger(t)), Config{
		Quiet:    10 * time.Millisecond,
		Executor: executor.Config{SettleDelay: time.Millisecond},
	}, zaptest.NewLogger(t))
	s := &fakeSender{out: make(chan transport.Envelope, 32)}
	h.Attach(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return h, s
}

func message(t *testing.T, typ transport.MessageType, payload any) transport.Envelope {
	t.Helper()
	env, err := transport.NewEnvelope(typ, payload)
	require.NoError(t, err)
	return env
}

func requestDOM(t *testing.T, h *Host, s *fakeSender) transport.DOMState {
	t.Helper()
	h.HandleMessage(transport.Envelope{Type: transport.TypeRequestDOM})
	env := s.next(t)
	require.Equal(t, transport.TypeDOMState, env.Type)
	var state transport.DOMState
	require.NoError(t, env.Decode(&state))
	return state
}

func TestHost_RequestDOM(t *testing.T) {
	b := &fakeBrowser{html: searchPage}
	h, s := startHost(t, b)

	state := requestDOM(t, h, s)
	assert.Equal(t, 2, state.Count)
	assert.Equal(t, "Поиск", state.Title)
	assert.Contains(t, state.Data, "Найти")
	assert.Len(t, b.lastHighlight(), 2)
	require.NotNil(t, h.Snapshot())
	assert.Equal(t, 2, h.Snapshot().Count)

	b.mu.Lock()
	assert.Equal(t, []string{"domcontentloaded"}, b.loads, "снятие ждёт загрузки документа")
	b.mu.Unlock()
}

func TestHost_CaptureError(t *testing.T) {
	b := &fakeBrowser{html: searchPage, captureErr: errors.New("target closed")}
	h, s := startHost(t, b)

	h.HandleMessage(transport.Envelope{Type: transport.TypeRequestDOM})
	env := s.next(t)
	require.Equal(t, transport.TypeError, env.Type)
	var msg transport.ErrorMessage
	require.NoError(t, env.Decode(&msg))
	assert.Contains(t, msg.Detail, "target closed")
	assert.Equal(t, transport.ErrorSourceObserve, msg.Source)
}

func actionResult(t *testing.T, s *fakeSender) transport.ActionResult {
	t.Helper()
	env := s.next(t)
	require.Equal(t, transport.TypeActionResult, env.Type)
	var res transport.ActionResult
	require.NoError(t, env.Decode(&res))
	return res
}

func TestHost_Actions(t *testing.T) {
	b := &fakeBrowser{html: searchPage}
	h, s := startHost(t, b)
	requestDOM(t, h, s)

	t.Run("клик по локатору", func(t *testing.T) {
		h.HandleMessage(message(t, transport.TypeAction, transport.ActionMessage{
			Action: action.Action{Type: action.Click, XPath: "html/body/button"},
		}))
		res := actionResult(t, s)
		assert.True(t, res.Success, res.Error)
		b.mu.Lock()
		assert.Equal(t, []string{"html[1]/body[1]/button[1]"}, b.clicks)
		b.mu.Unlock()
	})

	t.Run("ввод по номеру в старом формате", func(t *testing.T) {
		h.HandleMessage(message(t, transport.TypeAction, map[string]any{
			"action": map[string]any{"type": "type", "index": 0, "text": "котики"},
		}))
		res := actionResult(t, s)
		assert.True(t, res.Success, res.Error)
		b.mu.Lock()
		assert.Equal(t, "котики", b.typed)
		b.mu.Unlock()
	})

	t.Run("элемента нет", func(t *testing.T) {
		h.HandleMessage(message(t, transport.TypeAction, transport.ActionMessage{
			Action: action.Action{Type: action.Click, XPath: "html/body/a[5]"},
		}))
		res := actionResult(t, s)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, action.ErrElementNotFound.Error())
	})

	t.Run("некорректное действие", func(t *testing.T) {
		h.HandleMessage(message(t, transport.TypeAction, map[string]any{
			"action": map[string]any{"type": "teleport"},
		}))
		res := actionResult(t, s)
		assert.False(t, res.Success)
	})
}

func TestHost_UpdateConfig(t *testing.T) {
	b := &fakeBrowser{html: searchPage}
	h, s := startHost(t, b)

	bad := dom.DefaultOptions()
	bad.ViewportExpansion = -2
	h.HandleMessage(message(t, transport.TypeUpdateConfig, transport.UpdateConfig{Config: bad}))
	env := s.next(t)
	require.Equal(t, transport.TypeError, env.Type)
	var msg transport.ErrorMessage
	require.NoError(t, env.Decode(&msg))
	assert.Equal(t, transport.ErrorSourceConfig, msg.Source)

	opts := dom.DefaultOptions()
	opts.HighlightElements = false
	h.HandleMessage(message(t, transport.TypeUpdateConfig, transport.UpdateConfig{Config: opts}))

	state := requestDOM(t, h, s)
	assert.Equal(t, 2, state.Count)
	assert.Empty(t, b.lastHighlight(), "подсветка выключена")
}

func TestHost_MutationReobservesSilently(t *testing.T) {
	b := &fakeBrowser{html: searchPage}
	h, s := startHost(t, b)

	for i := 0; i < 5; i++ {
		h.Mutated()
	}
	require.Eventually(t, func() bool { return b.captureCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NotNil(t, h.Snapshot())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, b.captureCount(), "серия изменений даёт одно снятие")
	s.empty(t)
}

func TestHost_NavigationAndUnknown(t *testing.T) {
	b := &fakeBrowser{html: searchPage}
	h, s := startHost(t, b)

	h.Navigated("https://example.com/next")
	env := s.next(t)
	require.Equal(t, transport.TypePageUnload, env.Type)
	var msg transport.PageUnload
	require.NoError(t, env.Decode(&msg))
	assert.Equal(t, "https://example.com/next", msg.URL)

	h.HandleMessage(transport.Envelope{Type: "teleport"})
	h.HandleState(transport.StateConnected, nil)
	s.empty(t)
}
