package agent

import (
	"context"
	"sync"
	"time"

	"browserPilot/internal/action"
	"browserPilot/internal/conversation"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle           State = "idle"
	StateObserving      State = "observing"
	StateDeciding       State = "deciding"
	StateActing         State = "acting"
	StateAwaitingResult State = "awaiting_result"
	StateComplete       State = "complete"
)

// Session - состояние одной задачи. Оркестратор передаёт её явно, глобального состояния нет.
type Session struct {
	ID        string
	Task      string
	TaskID    *uint
	StartedAt time.Time

	conv   *conversation.Manager
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	state      State
	step       int
	complete   bool
	success    bool
	message    string
	lastAction *action.Action
	lastResult *action.Result
	navigation []string
	deciding   bool

	// observeFailures - ошибки снимка подряд с последнего удачного наблюдения.
	observeFailures int
}

func newSession(task string, conv *conversation.Manager) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        uuid.NewString(),
		Task:      task,
		StartedAt: time.Now(),
		conv:      conv,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateIdle,
	}
}

// Done закрывается, когда задача переходит в StateComplete.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Conversation() *conversation.Manager { return s.conv }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionStatus - копия состояния сессии для внешних наблюдателей.
type SessionStatus struct {
	ID         string         `json:"id"`
	Task       string         `json:"task"`
	TaskID     *uint          `json:"taskId,omitempty"`
	State      State          `json:"state"`
	Step       int            `json:"step"`
	Complete   bool           `json:"complete"`
	Success    bool           `json:"success"`
	Message    string         `json:"message,omitempty"`
	LastAction *action.Action `json:"lastAction,omitempty"`
	LastResult *action.Result `json:"lastResult,omitempty"`
	Navigation []string       `json:"navigation,omitempty"`
	Tokens     int            `json:"tokens"`
	StartedAt  time.Time      `json:"startedAt"`
}

func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	st := SessionStatus{
		ID:         s.ID,
		Task:       s.Task,
		TaskID:     s.TaskID,
		State:      s.state,
		Step:       s.step,
		Complete:   s.complete,
		Success:    s.success,
		Message:    s.message,
		LastAction: s.lastAction,
		LastResult: s.lastResult,
		Navigation: append([]string(nil), s.navigation...),
		StartedAt:  s.StartedAt,
	}
	s.mu.Unlock()
	if s.conv != nil {
		st.Tokens = s.conv.TotalTokens()
	}
	return st
}

// finishLocked переводит сессию в StateComplete. Возвращает false, если она уже завершена.
// Вызывается под s.mu.
func (s *Session) finishLocked(success bool, message string) bool {
	if s.complete {
		return false
	}
	s.state = StateComplete
	s.complete = true
	s.success = success
	s.message = message
	s.deciding = false
	s.cancel()
	close(s.done)
	return true
}
