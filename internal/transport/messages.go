// Package transport - типизированный канал сообщений между страницей и оркестратором
// поверх WebSocket. Каждое сообщение - отдельный JSON-конверт {"type": ..., "data": ...}.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"browserPilot/internal/action"
	"browserPilot/internal/dom"
)

type MessageType string

// От страницы к оркестратору.
const (
	TypeDOMState     MessageType = "domState"
	TypeActionResult MessageType = "actionResult"
	TypePageUnload   MessageType = "pageUnload"
	TypeError        MessageType = "error"
)

// От оркестратора к странице.
const (
	TypeAction       MessageType = "action"
	TypeRequestDOM   MessageType = "requestDOM"
	TypeUpdateConfig MessageType = "updateConfig"
)

type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(t MessageType, payload any) (Envelope, error) {
	env := Envelope{Type: t}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("ошибка сериализации %s: %w", t, err)
	}
	env.Data = raw
	return env, nil
}

func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("сообщение %s без данных", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("ошибка разбора %s: %w", e.Type, err)
	}
	return nil
}

// DOMState несёт текстовое представление снимка, а не сам снимок.
type DOMState struct {
	Data      string `json:"data"`
	Count     int    `json:"count"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
}

func NewDOMState(snap *dom.Snapshot) DOMState {
	return DOMState{
		Data:      snap.Text,
		Count:     snap.Count,
		URL:       snap.URL,
		Title:     snap.Title,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Snapshot восстанавливает снимок в том виде, в каком он нужен контексту разговора.
func (s DOMState) Snapshot() *dom.Snapshot {
	return &dom.Snapshot{URL: s.URL, Title: s.Title, Text: s.Data, Count: s.Count}
}

type ActionResult struct {
	action.Result
	Timestamp int64 `json:"timestamp"`
}

type PageUnload struct {
	URL string `json:"url"`
}

// Источник ошибки страницы. Пустой источник - старый формат без привязки.
const (
	ErrorSourceObserve = "observe"
	ErrorSourceAction  = "action"
	ErrorSourceConfig  = "config"
)

type ErrorMessage struct {
	Detail string `json:"detail"`
	Source string `json:"source,omitempty"`
}

type ActionMessage struct {
	Action action.Action `json:"action"`
}

type UpdateConfig struct {
	Config dom.Options `json:"config"`
}

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// Handler получает входящие сообщения и смены состояния соединения.
// Вызовы идут из горутины чтения; Close из обработчика вызывать нельзя.
type Handler interface {
	HandleMessage(env Envelope)
	HandleState(state ConnectionState, err error)
}

var (
	ErrNotConnected      = errors.New("канал не подключен")
	ErrAttemptsExhausted = errors.New("исчерпаны попытки переподключения")
	ErrSendBufferFull    = errors.New("очередь отправки переполнена")
)

// ChannelError - сбой канала. Только такие ошибки меняют видимый статус подключения.
type ChannelError struct {
	Op      string
	Address string
	Err     error
}

func (e *ChannelError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("канал: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("канал %s: %s: %v", e.Address, e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }
