package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"browserPilot/internal/action"
	"browserPilot/internal/conversation"
	"browserPilot/internal/database"
	"browserPilot/internal/llm"
	"browserPilot/internal/sanitizer"
	"browserPilot/internal/transport"

	"go.uber.org/zap"
)

// Channel - исходящая сторона канала к странице.
type Channel interface {
	Send(t transport.MessageType, payload any) error
}

// Store сохраняет задачи и шаги. Реализуется database.TaskRepository.
type Store interface {
	CreateTask(t *database.Task) error
	CreateStep(s *database.AgentStep) error
	UpdateTaskStatus(id uint, status, summary string) error
}

// Config содержит конфигурацию оркестратора.
type Config struct {
	MaxSteps        int           // Максимальное количество решений на задачу
	Retries         int           // Количество попыток запроса к модели
	RetryDelay      time.Duration // Базовая задержка между попытками
	DecisionTimeout time.Duration // Ограничение на один запрос решения
	ObserveRetries  int           // Повторные запросы снимка после ошибки страницы
	Conversation    conversation.Config
	Domains         *DomainPolicy // nil - без проверки адресов
}

var ErrEmptyTask = errors.New("пустая задача")

// Orchestrator проводит задачу по циклу наблюдение → решение → действие → результат.
// Сообщения канала обрабатываются последовательно из одной горутины, запрос решения
// выполняется в отдельной горутине под флагом сессии.
type Orchestrator struct {
	cfg       Config
	gen       llm.Generator
	store     Store
	est       conversation.Estimator
	breaker   *CircuitBreaker
	sanitizer *sanitizer.DataSanitizer
	log       *zap.Logger

	mu        sync.Mutex
	ch        Channel
	session   *Session
	listeners []func(SessionStatus)

	wg sync.WaitGroup
}

func NewOrchestrator(gen llm.Generator, ch Channel, store Store, est conversation.Estimator, cfg Config, log *zap.Logger) *Orchestrator {
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = 50
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.DecisionTimeout == 0 {
		cfg.DecisionTimeout = 2 * time.Minute
	}
	if cfg.ObserveRetries == 0 {
		cfg.ObserveRetries = 3
	}
	if est == nil {
		est = conversation.CharEstimator{CharsPerToken: 4}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Orchestrator{
		cfg:       cfg,
		gen:       gen,
		ch:        ch,
		store:     store,
		est:       est,
		breaker:   NewCircuitBreaker(5, 30*time.Second),
		sanitizer: sanitizer.New(),
		log:       log.Named("orchestrator"),
	}
}

func (o *Orchestrator) SetChannel(ch Channel) {
	o.mu.Lock()
	o.ch = ch
	o.mu.Unlock()
}

// OnComplete регистрирует обработчик завершения задачи.
func (o *Orchestrator) OnComplete(fn func(SessionStatus)) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

func (o *Orchestrator) Current() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

func (o *Orchestrator) InProgress() bool {
	s := o.Current()
	return s != nil && s.State() != StateComplete
}

// Wait дожидается завершения запущенных запросов решения.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Start запускает задачу. Активная задача при этом прерывается.
func (o *Orchestrator) Start(task string) (*Session, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrEmptyTask
	}

	o.Cancel("Задача прервана новой задачей")

	conv := conversation.NewManager(o.cfg.Conversation, o.est, o.log)
	conv.AddTask(task)
	s := newSession(task, conv)

	if o.store != nil {
		rec := &database.Task{UserInput: o.sanitizer.Sanitize(task), Status: database.TaskRunning}
		if err := o.store.CreateTask(rec); err != nil {
			o.log.Error("Ошибка сохранения задачи", zap.Error(err))
		} else {
			s.TaskID = &rec.ID
		}
	}

	o.mu.Lock()
	o.session = s
	o.mu.Unlock()

	o.log.Info("Задача запущена", o.fields(s, zap.String("task", o.sanitizer.Sanitize(task)))...)

	o.transition(s, StateIdle, StateObserving)
	if err := o.deliver(s, transport.TypeRequestDOM, struct{}{}, "Не удалось запросить снимок страницы"); err != nil {
		return s, err
	}
	return s, nil
}

// Resync возобновляет задачу после восстановления канала: запрос снимка или результат
// действия могли потеряться во время обрыва.
func (o *Orchestrator) Resync() {
	s := o.Current()
	if s == nil {
		return
	}
	s.mu.Lock()
	state, deciding := s.state, s.deciding
	s.mu.Unlock()

	switch {
	case state == StateObserving && !deciding:
		o.log.Info("Повторный запрос снимка после переподключения", o.fields(s)...)
		_ = o.deliver(s, transport.TypeRequestDOM, struct{}{}, "Не удалось запросить снимок страницы")
	case state == StateAwaitingResult:
		o.log.Info("Результат действия потерян при переподключении", o.fields(s)...)
		o.onResult(s, action.Result{Success: false, Error: "результат действия потерян при переподключении канала"})
	}
}

// Cancel завершает активную задачу с неуспехом.
func (o *Orchestrator) Cancel(reason string) {
	if s := o.Current(); s != nil {
		o.complete(s, false, reason)
	}
}

// HandleMessage принимает сообщение от страницы.
func (o *Orchestrator) HandleMessage(env transport.Envelope) {
	s := o.Current()
	if s == nil {
		o.log.Debug("Сообщение вне задачи", zap.String("type", string(env.Type)))
		return
	}

	switch env.Type {
	case transport.TypeDOMState:
		var ds transport.DOMState
		if err := env.Decode(&ds); err != nil {
			o.log.Warn("Некорректный снимок", zap.Error(err))
			return
		}
		o.onSnapshot(s, ds)

	case transport.TypeActionResult:
		var ar transport.ActionResult
		if err := env.Decode(&ar); err != nil {
			o.onResult(s, action.Failed(fmt.Errorf("некорректный результат действия: %w", err)))
			return
		}
		o.onResult(s, ar.Result)

	case transport.TypePageUnload:
		var pu transport.PageUnload
		if err := env.Decode(&pu); err != nil {
			o.log.Warn("Некорректное уведомление о переходе", zap.Error(err))
			return
		}
		o.onNavigation(s, pu.URL)

	case transport.TypeError:
		var em transport.ErrorMessage
		_ = env.Decode(&em)
		o.onPageError(s, em)

	default:
		o.log.Warn("Неизвестный тип сообщения", zap.String("type", string(env.Type)))
	}
}

func (o *Orchestrator) onSnapshot(s *Session, ds transport.DOMState) {
	verdict := o.cfg.Domains.Check(ds.URL)
	s.mu.Lock()
	if s.state != StateObserving || s.deciding {
		state := s.state
		s.mu.Unlock()
		o.log.Debug("Снимок пропущен", o.fields(s, zap.String("state", string(state)))...)
		return
	}
	if s.step >= o.cfg.MaxSteps {
		s.mu.Unlock()
		o.complete(s, false, fmt.Sprintf("Достигнут лимит шагов (%d)", o.cfg.MaxSteps))
		return
	}
	if verdict.Level == DomainBlocked {
		s.mu.Unlock()
		o.complete(s, false, fmt.Sprintf("Адрес %s заблокирован: %s", ds.URL, verdict.Reason))
		return
	}
	s.step++
	step := s.step
	s.deciding = true
	s.observeFailures = 0
	s.mu.Unlock()

	if verdict.Level == DomainCritical {
		o.log.Warn("Агент работает на критичном адресе", o.fields(s, zap.String("url", ds.URL), zap.String("reason", verdict.Reason))...)
	}
	s.conv.AddObservation(ds.Snapshot())
	o.transition(s, StateObserving, StateDeciding)

	o.wg.Add(1)
	go o.decide(s, step)
}

func (o *Orchestrator) decide(s *Session, step int) {
	defer o.wg.Done()

	ctx, cancel := context.WithTimeout(llm.WithTrace(s.ctx, s.TaskID, nil), o.cfg.DecisionTimeout)
	defer cancel()

	var raw string
	err := retryAction(ctx, o.cfg.Retries, o.cfg.RetryDelay, func() error {
		return o.breaker.Call(func() error {
			text, err := o.gen.Generate(ctx, s.conv.Entries())
			if err != nil {
				return err
			}
			raw = text
			return nil
		})
	})
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		o.log.Error("Ошибка запроса решения", o.fields(s, zap.Int("step", step), zap.Error(err))...)
		o.complete(s, false, "Модель не ответила: "+err.Error())
		return
	}

	d := ParseDecision(raw)
	switch d.Source {
	case SourceFallback:
		o.log.Warn("Не удалось разобрать ответ модели", o.fields(s, zap.Int("step", step), zap.Error(d.Err))...)
	case SourceHeuristic:
		o.log.Info("Действие восстановлено эвристикой", o.fields(s, zap.Int("step", step), zap.Stringer("action", d.Action))...)
	}
	o.dispatch(s, step, d.Action)
}

func (o *Orchestrator) dispatch(s *Session, step int, a action.Action) {
	s.mu.Lock()
	if s.complete || s.state != StateDeciding {
		s.mu.Unlock()
		return
	}
	s.deciding = false
	s.lastAction = &a
	s.mu.Unlock()

	o.log.Info("Решение модели", o.fields(s, zap.Int("step", step), zap.Stringer("action", a))...)

	if a.Terminal() {
		o.saveStep(s, step, a, action.Result{Success: true, Message: a.Message, IsDone: true, TaskSuccess: a.Success})
		o.complete(s, a.Success, a.Message)
		return
	}

	o.transition(s, StateDeciding, StateActing)
	o.transition(s, StateActing, StateAwaitingResult)
	_ = o.deliver(s, transport.TypeAction, transport.ActionMessage{Action: a}, "Не удалось отправить действие")
}

func (o *Orchestrator) onResult(s *Session, r action.Result) {
	s.mu.Lock()
	if s.state != StateAwaitingResult || s.lastAction == nil {
		state := s.state
		s.mu.Unlock()
		o.log.Debug("Результат вне ожидания", o.fields(s, zap.String("state", string(state)))...)
		return
	}
	s.lastResult = &r
	a := *s.lastAction
	step := s.step
	s.mu.Unlock()

	s.conv.AddActionResult(a, r)
	o.saveStep(s, step, a, r)

	if !r.Success {
		o.log.Warn("Действие не выполнено", o.fields(s, zap.Int("step", step), zap.Stringer("action", a), zap.String("error", r.Error))...)
	}

	if r.IsDone {
		o.complete(s, r.TaskSuccess, r.Message)
		return
	}

	o.transition(s, StateAwaitingResult, StateObserving)
	_ = o.deliver(s, transport.TypeRequestDOM, struct{}{}, "Не удалось запросить снимок страницы")
}

func (o *Orchestrator) onNavigation(s *Session, url string) {
	s.mu.Lock()
	if s.complete {
		s.mu.Unlock()
		return
	}
	s.navigation = append(s.navigation, url)
	s.mu.Unlock()

	s.conv.AddNavigation(url)
	o.log.Debug("Переход страницы", o.fields(s, zap.String("url", url))...)
}

// onPageError сопоставляет ошибку страницы с ожидаемым ответом. Ошибка настроек
// результатом действия не считается; ошибка без источника относится к текущему ожиданию.
func (o *Orchestrator) onPageError(s *Session, em transport.ErrorMessage) {
	detail := em.Detail
	if detail == "" {
		detail = "неизвестная ошибка"
	}
	state := s.State()
	switch {
	case state == StateAwaitingResult && (em.Source == "" || em.Source == transport.ErrorSourceAction):
		o.onResult(s, action.Result{Success: false, Error: detail})
	case state == StateObserving && (em.Source == "" || em.Source == transport.ErrorSourceObserve):
		o.onObserveFailed(s, detail)
	default:
		o.log.Warn("Ошибка на странице", o.fields(s, zap.String("detail", detail), zap.String("source", em.Source))...)
	}
}

// onObserveFailed записывает сбой снимка в контекст и запрашивает снимок снова,
// пока не исчерпан лимит ObserveRetries.
func (o *Orchestrator) onObserveFailed(s *Session, detail string) {
	s.mu.Lock()
	if s.state != StateObserving || s.deciding {
		s.mu.Unlock()
		return
	}
	s.observeFailures++
	attempt := s.observeFailures
	s.mu.Unlock()

	s.conv.AddObservationFailure(detail)
	if attempt > o.cfg.ObserveRetries {
		o.complete(s, false, "Страница не смогла построить снимок: "+detail)
		return
	}

	o.log.Warn("Снимок не построен, повторный запрос", o.fields(s, zap.Int("attempt", attempt), zap.String("detail", detail))...)
	_ = o.deliver(s, transport.TypeRequestDOM, struct{}{}, "Не удалось запросить снимок страницы")
}

func (o *Orchestrator) transition(s *Session, from, to State) {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()
	o.log.Debug("Смена состояния", o.fields(s, zap.String("from", string(from)), zap.String("to", string(to)))...)
}

func (o *Orchestrator) complete(s *Session, success bool, message string) {
	s.mu.Lock()
	ok := s.finishLocked(success, message)
	steps := s.step
	s.mu.Unlock()
	if !ok {
		return
	}

	o.log.Info("Задача завершена", o.fields(s,
		zap.Bool("success", success),
		zap.Int("steps", steps),
		zap.String("message", o.sanitizer.Sanitize(message)))...)

	if o.store != nil && s.TaskID != nil {
		status := database.TaskCompleted
		if !success {
			status = database.TaskFailed
		}
		if err := o.store.UpdateTaskStatus(*s.TaskID, status, o.sanitizer.Sanitize(message)); err != nil {
			o.log.Error("Ошибка обновления статуса", o.fields(s, zap.Error(err))...)
		}
	}

	o.mu.Lock()
	listeners := append([]func(SessionStatus)(nil), o.listeners...)
	o.mu.Unlock()
	status := s.Status()
	for _, fn := range listeners {
		fn(status)
	}
}

func (o *Orchestrator) saveStep(s *Session, step int, a action.Action, r action.Result) {
	if o.store == nil || s.TaskID == nil {
		return
	}

	if a.Type == action.Input {
		a.Text = o.sanitizer.SanitizeValue(a.Text)
	}
	result := r.Message
	if !r.Success {
		result = "Ошибка: " + r.Error
	}

	rec := &database.AgentStep{
		TaskID:         *s.TaskID,
		StepNo:         step,
		ActionType:     string(a.Type),
		TargetSelector: o.sanitizer.Sanitize(a.XPath),
		Reasoning:      o.sanitizer.Sanitize(a.String()),
		Result:         o.sanitizer.Sanitize(result),
	}
	if err := o.store.CreateStep(rec); err != nil {
		o.log.Error("Ошибка сохранения шага", o.fields(s, zap.Int("step", step), zap.Error(err))...)
	}
}

func (o *Orchestrator) send(t transport.MessageType, payload any) error {
	o.mu.Lock()
	ch := o.ch
	o.mu.Unlock()
	if ch == nil {
		return &transport.ChannelError{Op: "отправка", Err: transport.ErrNotConnected}
	}
	return ch.Send(t, payload)
}

// deliver отправляет сообщение задачи. Сбой канала, который ещё переподключается,
// задачу не завершает: её продолжит Resync. Остальные ошибки завершают задачу.
func (o *Orchestrator) deliver(s *Session, t transport.MessageType, payload any, failure string) error {
	err := o.send(t, payload)
	if err == nil {
		return nil
	}
	if o.recoverable(err) {
		o.log.Warn("Канал недоступен, задача ждёт переподключения",
			o.fields(s, zap.String("type", string(t)), zap.Error(err))...)
		return nil
	}
	o.complete(s, false, failure+": "+err.Error())
	return err
}

// stateReporter - канал, сообщающий состояние подключения (transport.Client).
type stateReporter interface {
	State() transport.ConnectionState
}

func (o *Orchestrator) recoverable(err error) bool {
	if !transport.IsChannelError(err) {
		return false
	}
	o.mu.Lock()
	ch := o.ch
	o.mu.Unlock()
	sr, ok := ch.(stateReporter)
	if !ok {
		return false
	}
	switch sr.State() {
	case transport.StateConnecting, transport.StateConnected:
		return true
	}
	return false
}

// fields создаёт набор контекстных полей для логирования
func (o *Orchestrator) fields(s *Session, fields ...zap.Field) []zap.Field {
	result := make([]zap.Field, 0, len(fields)+2)
	result = append(result, zap.String("session_id", s.ID))
	if s.TaskID != nil {
		result = append(result, zap.Uint("task_id", *s.TaskID))
	}
	return append(result, fields...)
}
