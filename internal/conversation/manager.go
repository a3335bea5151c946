package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"browserPilot/internal/action"
	"browserPilot/internal/dom"

	"go.uber.org/zap"
)

type Role string

const (
	RoleSystem      Role = "system"
	RoleTask        Role = "task"
	RoleObservation Role = "observation"
)

type Kind string

const (
	KindInstruction Kind = "instruction"
	KindTask        Kind = "task"
	KindSnapshot    Kind = "snapshot"
	KindResult      Kind = "result"
	KindNavigation  Kind = "navigation"
	KindSummary     Kind = "summary"
)

const (
	pinnedEntries    = 2
	truncatedMarker  = " ...[обрезано]"
	maxDataRunes     = 2000
	maxSummaryDetail = 200
)

type Entry struct {
	Role      Role      `json:"role"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"createdAt"`
}

type Config struct {
	// Budget - предельная суммарная стоимость записей в токенах.
	Budget int
	// SummarizeHistory - сворачивать результаты действий в одну запись «прошлые действия».
	SummarizeHistory bool
	MaxSummaryItems  int
	SystemPrompt     string
}

// Manager хранит упорядоченную историю для модели. Записи 0 и 1 (инструкция и задача)
// закреплены и не вытесняются.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	est     Estimator
	log     *zap.Logger
	now     func() time.Time
	entries []Entry
	history []string
}

func NewManager(cfg Config, est Estimator, log *zap.Logger) *Manager {
	if cfg.Budget <= 0 {
		cfg.Budget = 32000
	}
	if cfg.MaxSummaryItems <= 0 {
		cfg.MaxSummaryItems = 20
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt
	}
	if est == nil {
		est = CharEstimator{CharsPerToken: 4}
	}
	if log == nil {
		log = zap.NewNop()
	}

	m := &Manager{cfg: cfg, est: est, log: log, now: time.Now}
	m.entries = []Entry{m.entry(RoleSystem, KindInstruction, cfg.SystemPrompt)}
	return m
}

func (m *Manager) entry(role Role, kind Kind, content string) Entry {
	return Entry{
		Role:      role,
		Kind:      kind,
		Content:   content,
		Tokens:    m.est.Estimate(content),
		CreatedAt: m.now(),
	}
}

// AddTask записывает (или заменяет) формулировку задачи во вторую закреплённую запись.
func (m *Manager) AddTask(task string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(RoleTask, KindTask, "Задача: "+strings.TrimSpace(task))
	if len(m.entries) >= pinnedEntries {
		m.entries[1] = e
	} else {
		m.entries = append(m.entries, e)
	}
	m.history = nil
	m.evict()
}

func (m *Manager) AddObservation(snap *dom.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.SummarizeHistory && len(m.history) > 0 {
		m.removeKind(KindSummary)
		m.entries = append(m.entries, m.entry(RoleObservation, KindSummary, m.summary()))
	}
	m.entries = append(m.entries, m.entry(RoleObservation, KindSnapshot, formatSnapshot(snap)))
	m.evict()
}

func (m *Manager) AddActionResult(a action.Action, r action.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.SummarizeHistory {
		m.history = append(m.history, summaryLine(a, r))
		if over := len(m.history) - m.cfg.MaxSummaryItems; over > 0 {
			m.history = m.history[over:]
		}
		return
	}
	m.entries = append(m.entries, m.entry(RoleObservation, KindResult, formatResult(a, r)))
	m.evict()
}

// AddObservationFailure записывает неудачную попытку получить снимок страницы.
func (m *Manager) AddObservationFailure(detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, m.entry(RoleObservation, KindResult, "Снимок страницы не получен: "+detail))
	m.evict()
}

func (m *Manager) AddNavigation(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, m.entry(RoleObservation, KindNavigation, "Переход на адрес: "+address))
	m.evict()
}

func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

func (m *Manager) TotalTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total()
}

func (m *Manager) Budget() int { return m.cfg.Budget }

func (m *Manager) total() int {
	t := 0
	for _, e := range m.entries {
		t += e.Tokens
	}
	return t
}

// evict удаляет самые старые незакреплённые записи, пока история не уложится в бюджет.
// Последняя добавленная запись не удаляется, а при необходимости обрезается.
func (m *Manager) evict() {
	evicted := 0
	for m.total() > m.cfg.Budget {
		last := len(m.entries) - 1
		if last < pinnedEntries+1 {
			break
		}
		m.entries = append(m.entries[:pinnedEntries], m.entries[pinnedEntries+1:]...)
		evicted++
	}

	if last := len(m.entries) - 1; last >= pinnedEntries && m.total() > m.cfg.Budget {
		allowed := m.cfg.Budget - (m.total() - m.entries[last].Tokens)
		m.truncate(last, allowed)
	}

	if evicted > 0 {
		m.log.Debug("Вытеснены старые записи контекста",
			zap.Int("evicted", evicted),
			zap.Int("tokens", m.total()),
			zap.Int("budget", m.cfg.Budget),
		)
	}
}

func (m *Manager) truncate(i, allowed int) {
	e := &m.entries[i]
	if allowed <= 0 || m.est.Estimate(truncatedMarker) > allowed {
		e.Content = ""
		e.Tokens = 0
		return
	}

	runes := []rune(e.Content)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if m.est.Estimate(string(runes[:mid])+truncatedMarker) <= allowed {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	e.Content = string(runes[:lo]) + truncatedMarker
	e.Tokens = m.est.Estimate(e.Content)
}

func (m *Manager) removeKind(kind Kind) {
	out := m.entries[:0]
	for i, e := range m.entries {
		if i >= pinnedEntries && e.Kind == kind {
			continue
		}
		out = append(out, e)
	}
	m.entries = out
}

func (m *Manager) summary() string {
	var sb strings.Builder
	sb.WriteString("Прошлые действия:\n")
	for i, line := range m.history {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, line)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSnapshot(snap *dom.Snapshot) string {
	if snap == nil {
		return "Снимок страницы недоступен"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Текущая страница: %s\n", snap.URL)
	if snap.Title != "" {
		fmt.Fprintf(&sb, "Заголовок: %s\n", snap.Title)
	}
	fmt.Fprintf(&sb, "Интерактивных элементов: %d\n", snap.Count)
	if snap.Text == "" {
		sb.WriteString("(нет интерактивных элементов)")
	} else {
		sb.WriteString(snap.Text)
	}
	return sb.String()
}

func formatResult(a action.Action, r action.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Действие: %s\n", a)
	if r.Success {
		sb.WriteString("Результат: успешно")
	} else {
		sb.WriteString("Результат: ошибка")
	}
	if r.Message != "" {
		fmt.Fprintf(&sb, "\nСообщение: %s", r.Message)
	}
	if r.Error != "" {
		fmt.Fprintf(&sb, "\nОшибка: %s", r.Error)
	}
	if d := formatData(r.Data, maxDataRunes); d != "" {
		fmt.Fprintf(&sb, "\nДанные: %s", d)
	}
	return sb.String()
}

func summaryLine(a action.Action, r action.Result) string {
	status := "успешно"
	detail := r.Message
	if !r.Success {
		status = "ошибка"
		detail = r.Error
	}
	if d := formatData(r.Data, maxSummaryDetail); d != "" {
		detail = strings.TrimSpace(detail + " " + d)
	}
	if utf8.RuneCountInString(detail) > maxSummaryDetail {
		detail = string([]rune(detail)[:maxSummaryDetail]) + "..."
	}
	if detail == "" {
		return fmt.Sprintf("%s: %s", a, status)
	}
	return fmt.Sprintf("%s: %s (%s)", a, status, detail)
}

func formatData(data any, limit int) string {
	if data == nil {
		return ""
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	s := string(raw)
	if utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit]) + "..."
	}
	return s
}
