// Package pagehost - сторона страницы: снимает документ, строит снимок,
// выполняет действия и отвечает оркестратору через канал.
package pagehost

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"browserPilot/internal/action"
	"browserPilot/internal/dom"
	"browserPilot/internal/executor"
	"browserPilot/internal/transport"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Browser - живая страница, которой управляет хост.
type Browser interface {
	executor.Page
	Resolver(snap *dom.Snapshot) executor.Resolver
	Highlight(ctx context.Context, overlays []dom.Overlay) error
	WaitForLoadState(ctx context.Context, state string) error
}

// Sender отправляет сообщения оркестратору.
type Sender interface {
	Send(t transport.MessageType, payload any) error
}

type Config struct {
	// Quiet - тишина после последнего изменения документа до повторного снятия.
	Quiet    time.Duration
	Executor executor.Config
}

// Host обрабатывает сообщения канала вне горутины чтения: тяжёлая работа идёт в Run.
type Host struct {
	browser Browser
	builder *dom.Builder
	exec    *executor.Executor
	queue   *executor.Queue
	log     *zap.Logger

	debounce *Debouncer
	work     chan func(ctx context.Context)

	mu     sync.Mutex
	sender Sender
	snap   *dom.Snapshot
}

func New(browser Browser, builder *dom.Builder, cfg Config, log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Quiet == 0 {
		cfg.Quiet = 500 * time.Millisecond
	}
	h := &Host{
		browser: browser,
		builder: builder,
		log:     log.Named("pagehost"),
		work:    make(chan func(ctx context.Context), 16),
	}
	h.exec = executor.New(browser, cfg.Executor, h.log)
	h.queue = executor.NewQueue(h.exec, h.resolver, func(ctx context.Context) {
		h.observe(ctx, false)
	}, h.log)
	h.debounce = NewDebouncer(cfg.Quiet, h.mutationSettled)
	return h
}

// Attach задаёт канал для ответов. До вызова сообщения никуда не отправляются.
func (h *Host) Attach(sender Sender) {
	h.mu.Lock()
	h.sender = sender
	h.mu.Unlock()
}

// Snapshot - последний построенный снимок.
func (h *Host) Snapshot() *dom.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

func (h *Host) resolver() executor.Resolver {
	return h.browser.Resolver(h.Snapshot())
}

// Run обслуживает очередь действий и фоновую работу до отмены ctx.
func (h *Host) Run(ctx context.Context) error {
	defer h.debounce.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.queue.Run(ctx)
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case job := <-h.work:
				job(ctx)
			}
		}
	})
	return g.Wait()
}

func (h *Host) schedule(job func(ctx context.Context)) {
	select {
	case h.work <- job:
	default:
		h.log.Warn("Очередь фоновой работы переполнена, задача отброшена")
	}
}

func (h *Host) send(t transport.MessageType, payload any) {
	h.mu.Lock()
	sender := h.sender
	h.mu.Unlock()
	if sender == nil {
		return
	}
	if err := sender.Send(t, payload); err != nil {
		h.log.Warn("Не удалось отправить сообщение", zap.String("type", string(t)), zap.Error(err))
	}
}

// observe снимает документ, строит снимок и обновляет подсветку.
// С reply=true снимок (или ошибка) уходит оркестратору.
// После клика с переходом документ ещё загружается, снятие ждёт DOMContentLoaded.
func (h *Host) observe(ctx context.Context, reply bool) {
	if err := h.browser.WaitForLoadState(ctx, "domcontentloaded"); err != nil {
		h.log.Debug("Страница не дождалась загрузки", zap.Error(err))
	}

	doc, err := h.browser.Capture(ctx)
	if err != nil {
		h.log.Error("Ошибка снятия документа", zap.Error(err))
		if reply {
			h.send(transport.TypeError, transport.ErrorMessage{Detail: err.Error(), Source: transport.ErrorSourceObserve})
		}
		return
	}

	snap := h.builder.Build(doc)
	h.mu.Lock()
	h.snap = snap
	h.mu.Unlock()

	if err := h.browser.Highlight(ctx, snap.Overlays); err != nil {
		h.log.Debug("Не удалось обновить подсветку", zap.Error(err))
	}

	h.log.Debug("Снимок построен",
		zap.String("url", snap.URL),
		zap.Int("elements", snap.Count),
		zap.Bool("reply", reply))

	if reply {
		h.send(transport.TypeDOMState, transport.NewDOMState(snap))
	}
}

// Mutated вызывается при изменении документа.
func (h *Host) Mutated() {
	h.debounce.Trigger()
}

func (h *Host) mutationSettled() {
	if h.queue.Busy() {
		h.log.Debug("Изменения во время действия пропущены")
		return
	}
	h.schedule(func(ctx context.Context) {
		h.observe(ctx, false)
	})
}

// Navigated вызывается при переходе главного фрейма.
func (h *Host) Navigated(url string) {
	h.send(transport.TypePageUnload, transport.PageUnload{URL: url})
}

func (h *Host) HandleState(state transport.ConnectionState, err error) {
	if err != nil {
		h.log.Warn("Состояние канала", zap.String("state", string(state)), zap.Error(err))
		return
	}
	h.log.Info("Состояние канала", zap.String("state", string(state)))
}

func (h *Host) HandleMessage(env transport.Envelope) {
	switch env.Type {
	case transport.TypeRequestDOM:
		h.schedule(func(ctx context.Context) {
			h.observe(ctx, true)
		})

	case transport.TypeAction:
		a, err := decodeAction(env)
		if err != nil {
			h.log.Warn("Некорректное действие", zap.Error(err))
			h.reply(action.Failed(err))
			return
		}
		h.queue.Submit(a, h.reply)

	case transport.TypeUpdateConfig:
		var msg transport.UpdateConfig
		if err := env.Decode(&msg); err != nil {
			h.send(transport.TypeError, transport.ErrorMessage{Detail: err.Error(), Source: transport.ErrorSourceConfig})
			return
		}
		if err := h.builder.SetOptions(msg.Config); err != nil {
			h.log.Warn("Настройки отклонены", zap.Error(err))
			h.send(transport.TypeError, transport.ErrorMessage{Detail: err.Error(), Source: transport.ErrorSourceConfig})
			return
		}
		h.log.Info("Настройки построения обновлены",
			zap.Bool("highlight", msg.Config.HighlightElements),
			zap.Int("viewport_expansion", msg.Config.ViewportExpansion))

	default:
		h.log.Warn("Неизвестный тип сообщения", zap.String("type", string(env.Type)))
	}
}

func (h *Host) reply(res action.Result) {
	h.send(transport.TypeActionResult, transport.ActionResult{
		Result:    res,
		Timestamp: time.Now().UnixMilli(),
	})
}

// decodeAction принимает и канонический формат, и старый, с номером элемента.
func decodeAction(env transport.Envelope) (action.Action, error) {
	var msg struct {
		Action json.RawMessage `json:"action"`
	}
	if err := env.Decode(&msg); err != nil {
		return action.Action{}, err
	}
	if len(msg.Action) == 0 {
		return action.Action{}, errors.New("в сообщении нет действия")
	}
	return action.Decode(msg.Action)
}
