package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время на запись одного сообщения.
	writeWait = 10 * time.Second
	// Время ожидания pong от собеседника.
	pongWait = 60 * time.Second
	// Период ping, меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Снимки больших страниц бывают объёмными.
	maxMessageSize = 8 << 20
)

type ClientConfig struct {
	// ReconnectStep - шаг линейной задержки: попытка N ждёт N*ReconnectStep.
	ReconnectStep        time.Duration
	MaxReconnectAttempts int
	DialTimeout          time.Duration
}

// Client - сторона оркестратора. Подключается к странице и переподключается
// при неожиданном обрыве; после Close переподключения нет.
type Client struct {
	cfg     ClientConfig
	handler Handler
	dialer  *websocket.Dialer
	log     *zap.Logger

	mu      sync.Mutex
	state   ConnectionState
	address string
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}

	writeMu sync.Mutex
}

func NewClient(cfg ClientConfig, handler Handler, log *zap.Logger) *Client {
	if cfg.ReconnectStep <= 0 {
		cfg.ReconnectStep = time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		handler: handler,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		log:     log.Named("transport"),
		state:   StateDisconnected,
	}
}

func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// Connect открывает канал к адресу. Предыдущее соединение закрывается.
func (c *Client) Connect(ctx context.Context, address string) error {
	c.Close()

	c.mu.Lock()
	c.address = address
	c.mu.Unlock()
	c.setState(StateConnecting, nil)

	conn, err := c.dial(ctx, address)
	if err != nil {
		cerr := &ChannelError{Op: "подключение", Address: address, Err: err}
		c.setState(StateError, cerr)
		return cerr
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.log.Info("Канал подключен", zap.String("address", address))
	c.setState(StateConnected, nil)

	go c.run(runCtx, conn, address, done)
	return nil
}

// Close закрывает канал намеренно.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.cancel, c.done, c.conn = nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
	}
	cancel()
	<-done

	c.log.Info("Канал закрыт")
	c.setState(StateDisconnected, nil)
	return nil
}

func (c *Client) Send(t MessageType, payload any) error {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn, state, address := c.conn, c.state, c.address
	c.mu.Unlock()
	if conn == nil || state != StateConnected {
		return &ChannelError{Op: "отправка", Address: address, Err: ErrNotConnected}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		return &ChannelError{Op: "отправка", Address: address, Err: err}
	}
	return nil
}

func (c *Client) dial(ctx context.Context, address string) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return conn, nil
}

func (c *Client) run(ctx context.Context, conn *websocket.Conn, address string, done chan struct{}) {
	defer close(done)

	for {
		err := c.read(ctx, conn)
		if ctx.Err() != nil {
			return
		}

		c.log.Warn("Соединение потеряно, переподключение", zap.Error(err))
		c.setState(StateConnecting, &ChannelError{Op: "чтение", Address: address, Err: err})

		conn = c.reconnect(ctx, address)
		if conn == nil {
			if ctx.Err() != nil {
				return
			}
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			c.log.Error("Не удалось восстановить канал", zap.Int("attempts", c.cfg.MaxReconnectAttempts))
			c.setState(StateError, &ChannelError{Op: "переподключение", Address: address, Err: ErrAttemptsExhausted})
			return
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.log.Info("Канал восстановлен", zap.String("address", address))
		c.setState(StateConnected, nil)
	}
}

func (c *Client) reconnect(ctx context.Context, address string) *websocket.Conn {
	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		timer := time.NewTimer(time.Duration(attempt) * c.cfg.ReconnectStep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := c.dial(ctx, address)
		if err == nil {
			return conn
		}
		c.log.Debug("Попытка переподключения не удалась", zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn("Некорректное сообщение канала", zap.Error(err))
			continue
		}
		if c.handler != nil {
			c.handler.HandleMessage(env)
		}
	}
}

func (c *Client) setState(state ConnectionState, err error) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if !changed && err == nil {
		return
	}
	if c.handler != nil {
		c.handler.HandleState(state, err)
	}
}

// IsChannelError сообщает, относится ли ошибка к сбою канала.
func IsChannelError(err error) bool {
	var ce *ChannelError
	return errors.As(err, &ce)
}
