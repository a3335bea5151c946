package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"browserPilot/internal/action"
	"browserPilot/internal/dom"

	"go.uber.org/zap"
)

// Element - живой элемент страницы, найденный по локатору.
type Element interface {
	ScrollIntoView(ctx context.Context) error
	Click(ctx context.Context) error
	DispatchClick(ctx context.Context) error
	Center(ctx context.Context) (float64, float64, error)
	Focus(ctx context.Context) error
	Clear(ctx context.Context) error
	// AppendText дописывает фрагмент и генерирует событие input.
	AppendText(ctx context.Context, text string) error
	EmitChange(ctx context.Context) error
}

// Page - операции уровня страницы.
type Page interface {
	PressAt(ctx context.Context, x, y float64) error
	ScrollBy(ctx context.Context, dy float64) error
	ViewportHeight(ctx context.Context) (float64, error)
	Capture(ctx context.Context) (*dom.Document, error)
}

// Resolver находит живой элемент по локатору (или по номеру в старом формате).
// Если элемента нет, возвращает ошибку, оборачивающую action.ErrElementNotFound.
type Resolver interface {
	Resolve(ctx context.Context, xpath string, index *int) (Element, error)
}

type Config struct {
	SettleDelay time.Duration
	MinWait     time.Duration
	MaxWait     time.Duration
}

type Executor struct {
	page  Page
	cfg   Config
	log   *zap.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

func New(page Page, cfg Config, log *zap.Logger) *Executor {
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 300 * time.Millisecond
	}
	if cfg.MinWait == 0 {
		cfg.MinWait = 500 * time.Millisecond
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		page:  page,
		cfg:   cfg,
		log:   log,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute выполняет одно действие. Ошибки не выходят наружу, а превращаются в результат.
func (e *Executor) Execute(ctx context.Context, a action.Action, r Resolver) action.Result {
	if err := a.Validate(); err != nil {
		e.log.Warn("Отклонено некорректное действие", zap.String("action", a.String()), zap.Error(err))
		return action.Failed(err)
	}

	e.log.Info("Выполнение действия", zap.String("action", a.String()))

	var res action.Result
	switch a.Type {
	case action.Click:
		res = e.click(ctx, a, r)
	case action.Input:
		res = e.input(ctx, a, r)
	case action.Extract:
		res = e.extract(ctx, a)
	case action.Scroll:
		res = e.scroll(ctx, a)
	case action.Wait:
		res = e.wait(ctx, a)
	case action.Done:
		res = action.Result{
			Success:     true,
			Message:     a.Message,
			IsDone:      true,
			TaskSuccess: a.Success,
		}
	}

	if !res.Success {
		e.log.Warn("Действие завершилось неудачей", zap.String("action", a.String()), zap.String("error", res.Error))
	}
	return res
}

func (e *Executor) resolve(ctx context.Context, a action.Action, r Resolver) (Element, *action.Result) {
	if r == nil {
		res := action.Failed(fmt.Errorf("%w: нет резолвера", action.ErrElementNotFound))
		return nil, &res
	}
	el, err := r.Resolve(ctx, a.XPath, a.Index)
	if err != nil {
		if !errors.Is(err, action.ErrElementNotFound) {
			err = fmt.Errorf("%w: %v", action.ErrElementNotFound, err)
		}
		res := action.Failed(err)
		return nil, &res
	}
	return el, nil
}

func (e *Executor) click(ctx context.Context, a action.Action, r Resolver) action.Result {
	el, fail := e.resolve(ctx, a, r)
	if fail != nil {
		return *fail
	}

	if err := el.ScrollIntoView(ctx); err != nil {
		e.log.Debug("Не удалось прокрутить к элементу", zap.Error(err))
	}
	if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
		return action.Failed(err)
	}

	method := "direct"
	err := el.Click(ctx)
	if err != nil {
		e.log.Debug("Прямая активация не удалась, пробуем событие click", zap.Error(err))
		method = "event"
		err = el.DispatchClick(ctx)
	}
	if err != nil {
		e.log.Debug("Событие click не удалось, пробуем нажатие в центре", zap.Error(err))
		method = "pointer"
		err = e.pressCenter(ctx, el)
	}
	if err != nil {
		return action.Failed(&action.ExecutionError{Action: action.Click, Step: "pointer", Err: err})
	}

	return action.Result{
		Success: true,
		Message: fmt.Sprintf("Клик по %s выполнен", target(a)),
		Data:    map[string]any{"method": method},
	}
}

func (e *Executor) pressCenter(ctx context.Context, el Element) error {
	if e.page == nil {
		return fmt.Errorf("страница недоступна")
	}
	x, y, err := el.Center(ctx)
	if err != nil {
		return err
	}
	return e.page.PressAt(ctx, x, y)
}

func (e *Executor) input(ctx context.Context, a action.Action, r Resolver) action.Result {
	el, fail := e.resolve(ctx, a, r)
	if fail != nil {
		return *fail
	}

	failAt := func(step string, err error) action.Result {
		return action.Failed(&action.ExecutionError{Action: action.Input, Step: step, Err: err})
	}

	if err := el.ScrollIntoView(ctx); err != nil {
		e.log.Debug("Не удалось прокрутить к полю", zap.Error(err))
	}
	if err := el.Focus(ctx); err != nil {
		return failAt("focus", err)
	}
	if err := el.Clear(ctx); err != nil {
		return failAt("clear", err)
	}
	for _, ch := range a.Text {
		if err := el.AppendText(ctx, string(ch)); err != nil {
			return failAt("type", err)
		}
	}
	if err := el.EmitChange(ctx); err != nil {
		return failAt("change", err)
	}

	return action.Result{
		Success: true,
		Message: fmt.Sprintf("Текст введён в %s", target(a)),
	}
}

func (e *Executor) extract(ctx context.Context, a action.Action) action.Result {
	if e.page == nil {
		return action.Failed(fmt.Errorf("страница недоступна"))
	}
	doc, err := e.page.Capture(ctx)
	if err != nil {
		return action.Failed(&action.ExecutionError{Action: action.Extract, Step: "capture", Err: err})
	}
	data, summary := extractContent(doc, a.Goal)
	return action.Result{
		Success: true,
		Message: summary,
		Data:    data,
	}
}

func (e *Executor) scroll(ctx context.Context, a action.Action) action.Result {
	if e.page == nil {
		return action.Failed(fmt.Errorf("страница недоступна"))
	}
	amount := float64(a.Amount)
	if amount == 0 {
		h, err := e.page.ViewportHeight(ctx)
		if err != nil {
			return action.Failed(&action.ExecutionError{Action: action.Scroll, Step: "viewport", Err: err})
		}
		amount = h / 2
	}
	dy := amount
	if a.Direction == action.DirectionUp {
		dy = -amount
	}
	if err := e.page.ScrollBy(ctx, dy); err != nil {
		return action.Failed(&action.ExecutionError{Action: action.Scroll, Step: "scroll", Err: err})
	}
	if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
		return action.Failed(err)
	}
	return action.Result{
		Success: true,
		Message: fmt.Sprintf("Прокрутка %s на %.0fpx", a.Direction, amount),
		Data:    map[string]any{"dy": dy},
	}
}

// ClampWait ограничивает паузу безопасным диапазоном.
func (e *Executor) ClampWait(seconds float64) time.Duration {
	d := time.Duration(seconds * float64(time.Second))
	if d < e.cfg.MinWait {
		return e.cfg.MinWait
	}
	if d > e.cfg.MaxWait {
		return e.cfg.MaxWait
	}
	return d
}

func (e *Executor) wait(ctx context.Context, a action.Action) action.Result {
	d := e.ClampWait(a.Seconds)
	if err := e.sleep(ctx, d); err != nil {
		return action.Failed(err)
	}
	return action.Result{
		Success: true,
		Message: fmt.Sprintf("Ожидание %s", d),
	}
}

func target(a action.Action) string {
	if a.XPath != "" {
		return a.XPath
	}
	if a.Index != nil {
		return fmt.Sprintf("элемент #%d", *a.Index)
	}
	return "элемент"
}
