package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"browserPilot/internal/dom"
	"browserPilot/internal/transport"

	"go.uber.org/zap"
)

const (
	SettingAddress = "channel.address"
	SettingDOM     = "dom.options"
)

// SettingsStore хранит адрес канала и последние применённые настройки.
type SettingsStore interface {
	// GetSetting возвращает пустую строку, если ключа нет.
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

type Status struct {
	ConnectionStatus transport.ConnectionState `json:"connectionStatus"`
	TaskInProgress   bool                      `json:"taskInProgress"`
	Settings         dom.Options               `json:"settings"`
	Address          string                    `json:"address,omitempty"`
	LastError        string                    `json:"lastError,omitempty"`
	Session          *SessionStatus            `json:"session,omitempty"`
}

var ErrNoAddress = errors.New("не указан адрес канала")

// Controller - управляющая поверхность: подключение, задачи, статус и настройки.
type Controller struct {
	orch     *Orchestrator
	client   *transport.Client
	settings SettingsStore
	log      *zap.Logger

	mu      sync.Mutex
	options dom.Options
	address string
	lastErr error
}

func NewController(orch *Orchestrator, settings SettingsStore, tcfg transport.ClientConfig, defaults dom.Options, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		orch:     orch,
		settings: settings,
		log:      log.Named("controller"),
		options:  defaults,
	}
	c.client = transport.NewClient(tcfg, c, log)
	orch.SetChannel(c.client)
	c.load()
	return c
}

func (c *Controller) load() {
	if c.settings == nil {
		return
	}
	if addr, err := c.settings.GetSetting(SettingAddress); err != nil {
		c.log.Warn("Не удалось прочитать адрес канала", zap.Error(err))
	} else if addr != "" {
		c.address = addr
	}

	raw, err := c.settings.GetSetting(SettingDOM)
	if err != nil {
		c.log.Warn("Не удалось прочитать настройки", zap.Error(err))
		return
	}
	if raw == "" {
		return
	}
	var opts dom.Options
	if err := json.Unmarshal([]byte(raw), &opts); err != nil || opts.Validate() != nil {
		c.log.Warn("Сохранённые настройки повреждены, используются значения по умолчанию")
		return
	}
	c.options = opts
}

// Connect подключается к странице. Пустой адрес означает последний сохранённый.
func (c *Controller) Connect(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	c.mu.Lock()
	if address == "" {
		address = c.address
	}
	opts := c.options
	c.mu.Unlock()
	if address == "" {
		return ErrNoAddress
	}

	if err := c.client.Connect(ctx, address); err != nil {
		return err
	}

	c.mu.Lock()
	c.address = address
	c.mu.Unlock()
	c.persist(SettingAddress, address)

	if err := c.client.Send(transport.TypeUpdateConfig, transport.UpdateConfig{Config: opts}); err != nil {
		c.log.Warn("Не удалось отправить настройки странице", zap.Error(err))
	}
	return nil
}

// Disconnect закрывает канал и прерывает активную задачу.
func (c *Controller) Disconnect() error {
	c.orch.Cancel("Канал отключен оператором")
	return c.client.Close()
}

func (c *Controller) ExecuteTask(task string) (*Session, error) {
	if c.client.State() != transport.StateConnected {
		return nil, &transport.ChannelError{Op: "запуск задачи", Address: c.client.Address(), Err: transport.ErrNotConnected}
	}
	return c.orch.Start(task)
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		ConnectionStatus: c.client.State(),
		Settings:         c.options,
		Address:          c.address,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	c.mu.Unlock()

	if s := c.orch.Current(); s != nil {
		ss := s.Status()
		st.Session = &ss
		st.TaskInProgress = !ss.Complete
	}
	return st
}

// UpdateSettings проверяет, сохраняет и применяет настройки построения снимка.
func (c *Controller) UpdateSettings(opts dom.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.options = opts
	c.mu.Unlock()

	raw, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("ошибка сериализации настроек: %w", err)
	}
	c.persist(SettingDOM, string(raw))

	if c.client.State() == transport.StateConnected {
		if err := c.client.Send(transport.TypeUpdateConfig, transport.UpdateConfig{Config: opts}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) Orchestrator() *Orchestrator { return c.orch }

// Close отключает канал и дожидается фоновых запросов.
func (c *Controller) Close() error {
	err := c.Disconnect()
	c.orch.Wait()
	return err
}

func (c *Controller) HandleMessage(env transport.Envelope) {
	c.orch.HandleMessage(env)
}

func (c *Controller) HandleState(state transport.ConnectionState, err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	fields := []zap.Field{zap.String("state", string(state))}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	c.log.Info("Состояние канала", fields...)

	switch state {
	case transport.StateError:
		reason := "Канал потерян"
		if err != nil {
			reason += ": " + err.Error()
		}
		c.orch.Cancel(reason)
	case transport.StateConnected:
		c.orch.Resync()
	}
}

func (c *Controller) persist(key, value string) {
	if c.settings == nil {
		return
	}
	if err := c.settings.SetSetting(key, value); err != nil {
		c.log.Warn("Не удалось сохранить настройку", zap.String("key", key), zap.Error(err))
	}
}
