package agent

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"browserPilot/internal/action"
	"browserPilot/internal/dom"
	"browserPilot/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memorySettings struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memorySettings) GetSetting(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memorySettings) SetSetting(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// fakePage отвечает на запросы так, как это делает страница.
type fakePage struct {
	t      *testing.T
	server *transport.Server
	snap   *dom.Snapshot

	mu      sync.Mutex
	actions []action.Action
	configs []dom.Options
	// dropResults - результат действия теряется, как при обрыве канала.
	dropResults bool
}

func (p *fakePage) HandleMessage(env transport.Envelope) {
	switch env.Type {
	case transport.TypeRequestDOM:
		_ = p.server.Send(transport.TypeDOMState, transport.NewDOMState(p.snap))
	case transport.TypeAction:
		var am transport.ActionMessage
		if err := env.Decode(&am); err != nil {
			return
		}
		p.mu.Lock()
		p.actions = append(p.actions, am.Action)
		drop := p.dropResults
		p.mu.Unlock()
		if drop {
			return
		}
		_ = p.server.Send(transport.TypeActionResult, transport.ActionResult{Result: action.Result{Success: true, Message: "Клик выполнен"}})
	case transport.TypeUpdateConfig:
		var uc transport.UpdateConfig
		if err := env.Decode(&uc); err != nil {
			return
		}
		p.mu.Lock()
		p.configs = append(p.configs, uc.Config)
		p.mu.Unlock()
	}
}

func (p *fakePage) HandleState(transport.ConnectionState, error) {}

func (p *fakePage) configCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.configs)
}

func startPage(t *testing.T) (*fakePage, *httptest.Server) {
	t.Helper()
	doc, err := dom.ParseHTMLString(loginPage, dom.Rect{Width: 1280, Height: 720})
	require.NoError(t, err)

	page := &fakePage{t: t, snap: dom.NewBuilder(dom.DefaultOptions(), zaptest.NewLogger(t)).Build(doc)}
	page.server = transport.NewServer(page, zaptest.NewLogger(t))
	srv := httptest.NewServer(page.server)
	t.Cleanup(func() {
		srv.Close()
		page.server.Close()
	})
	return page, srv
}

func TestController_RunsTaskOverChannel(t *testing.T) {
	page, srv := startPage(t)
	address := "ws" + strings.TrimPrefix(srv.URL, "http")

	gen := texts(
		`{"type": "click_element", "xpath": "`+loginLocator+`"}`,
		`{"type": "done", "success": true, "message": "Страница входа открыта"}`,
	)
	orch := NewOrchestrator(gen, nil, newFakeStore(), nil, Config{RetryDelay: time.Millisecond}, zaptest.NewLogger(t))
	settings := &memorySettings{data: map[string]string{}}
	ctrl := NewController(orch, settings, transport.ClientConfig{}, dom.DefaultOptions(), zaptest.NewLogger(t))

	_, err := ctrl.ExecuteTask("Open the login page")
	require.Error(t, err)
	assert.True(t, transport.IsChannelError(err))

	require.NoError(t, ctrl.Connect(context.Background(), address))
	assert.Equal(t, address, settings.data[SettingAddress])
	require.Eventually(t, func() bool { return page.configCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	s, err := ctrl.ExecuteTask("Open the login page")
	require.NoError(t, err)

	st := waitDone(t, s)
	assert.True(t, st.Success)
	assert.Equal(t, "Страница входа открыта", st.Message)
	assert.Equal(t, 2, st.Step)

	page.mu.Lock()
	require.Len(t, page.actions, 1)
	assert.Equal(t, loginLocator, page.actions[0].XPath)
	page.mu.Unlock()

	status := ctrl.Status()
	assert.Equal(t, transport.StateConnected, status.ConnectionStatus)
	assert.False(t, status.TaskInProgress)
	require.NotNil(t, status.Session)
	assert.True(t, status.Session.Success)

	require.NoError(t, ctrl.Close())
	assert.Equal(t, transport.StateDisconnected, ctrl.Status().ConnectionStatus)
}

func TestController_ResumesTaskAfterReconnect(t *testing.T) {
	page, srv := startPage(t)
	page.dropResults = true
	address := "ws" + strings.TrimPrefix(srv.URL, "http")

	gen := texts(
		`{"type": "click_element", "xpath": "`+loginLocator+`"}`,
		`{"type": "done", "success": true, "message": "Страница входа открыта"}`,
	)
	orch := NewOrchestrator(gen, nil, newFakeStore(), nil, Config{RetryDelay: time.Millisecond}, zaptest.NewLogger(t))
	ctrl := NewController(orch, nil, transport.ClientConfig{}, dom.DefaultOptions(), zaptest.NewLogger(t))
	defer ctrl.Close()

	require.NoError(t, ctrl.Connect(context.Background(), address))
	s, err := ctrl.ExecuteTask("Open the login page")
	require.NoError(t, err)
	waitState(t, s, StateAwaitingResult)
	require.Eventually(t, func() bool {
		page.mu.Lock()
		defer page.mu.Unlock()
		return len(page.actions) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// обрыв, который переподключение успело восстановить
	ctrl.HandleState(transport.StateConnecting, &transport.ChannelError{Op: "чтение", Err: transport.ErrNotConnected})
	assert.Equal(t, StateAwaitingResult, s.State())
	ctrl.HandleState(transport.StateConnected, nil)

	st := waitDone(t, s)
	assert.True(t, st.Success)
	assert.Equal(t, 2, st.Step)
	require.NotNil(t, st.LastResult)
	assert.False(t, st.LastResult.Success)
	assert.Contains(t, st.LastResult.Error, "переподключении")
}

func TestController_Settings(t *testing.T) {
	page, srv := startPage(t)

	saved := dom.DefaultOptions()
	saved.ViewportExpansion = -1
	raw, err := json.Marshal(saved)
	require.NoError(t, err)

	settings := &memorySettings{data: map[string]string{
		SettingAddress: "ws" + strings.TrimPrefix(srv.URL, "http"),
		SettingDOM:     string(raw),
	}}
	orch := NewOrchestrator(texts("{}"), nil, nil, nil, Config{}, zaptest.NewLogger(t))
	ctrl := NewController(orch, settings, transport.ClientConfig{}, dom.DefaultOptions(), zaptest.NewLogger(t))
	defer ctrl.Close()

	assert.Equal(t, -1, ctrl.Status().Settings.ViewportExpansion)

	// пустой адрес означает сохранённый
	require.NoError(t, ctrl.Connect(context.Background(), ""))
	require.Eventually(t, func() bool { return page.configCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	bad := dom.DefaultOptions()
	bad.ViewportExpansion = -5
	assert.Error(t, ctrl.UpdateSettings(bad))

	next := dom.DefaultOptions()
	next.HighlightElements = false
	require.NoError(t, ctrl.UpdateSettings(next))
	require.Eventually(t, func() bool { return page.configCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	var stored dom.Options
	require.NoError(t, json.Unmarshal([]byte(settings.data[SettingDOM]), &stored))
	assert.False(t, stored.HighlightElements)

	page.mu.Lock()
	assert.False(t, page.configs[1].HighlightElements)
	page.mu.Unlock()
}

func TestController_ConnectWithoutAddress(t *testing.T) {
	orch := NewOrchestrator(texts("{}"), nil, nil, nil, Config{}, zaptest.NewLogger(t))
	ctrl := NewController(orch, nil, transport.ClientConfig{}, dom.DefaultOptions(), zaptest.NewLogger(t))
	defer ctrl.Close()

	assert.ErrorIs(t, ctrl.Connect(context.Background(), "  "), ErrNoAddress)
}
