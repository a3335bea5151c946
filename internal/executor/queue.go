package executor

import (
	"context"
	"sync"

	"browserPilot/internal/action"

	"go.uber.org/zap"
)

type request struct {
	action action.Action
	reply  func(action.Result)
}

// Queue выполняет действия строго по одному. Запрос, пришедший во время выполнения,
// ждёт завершения текущего действия и повторного снятия документа.
type Queue struct {
	exec      *Executor
	resolver  func() Resolver
	reobserve func(ctx context.Context)
	log       *zap.Logger

	mu      sync.Mutex
	pending []request
	busy    bool
	wake    chan struct{}
}

// NewQueue создаёт очередь. resolver вызывается перед каждым действием, чтобы
// локаторы разрешались по самому свежему снимку.
func NewQueue(exec *Executor, resolver func() Resolver, reobserve func(ctx context.Context), log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	if reobserve == nil {
		reobserve = func(context.Context) {}
	}
	return &Queue{
		exec:      exec,
		resolver:  resolver,
		reobserve: reobserve,
		log:       log,
		wake:      make(chan struct{}, 1),
	}
}

func (q *Queue) Submit(a action.Action, reply func(action.Result)) {
	q.mu.Lock()
	q.pending = append(q.pending, request{action: a, reply: reply})
	queued := q.busy || len(q.pending) > 1
	q.mu.Unlock()

	if queued {
		q.log.Debug("Действие поставлено в очередь", zap.String("action", a.String()))
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Busy - выполняется действие или есть ожидающие.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy || len(q.pending) > 0
}

// Run обрабатывает очередь до отмены контекста.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}

		for {
			req, ok := q.next()
			if !ok {
				break
			}

			var r Resolver
			if q.resolver != nil {
				r = q.resolver()
			}
			res := q.exec.Execute(ctx, req.action, r)
			if req.reply != nil {
				req.reply(res)
			}

			q.mu.Lock()
			more := len(q.pending) > 0
			if !more {
				q.busy = false
			}
			q.mu.Unlock()
			if more {
				q.reobserve(ctx)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (q *Queue) next() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return request{}, false
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	q.busy = true
	return req, true
}
