package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"browserPilot/internal/action"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestQueue_RunsOneActionAtATime(t *testing.T) {
	e, _ := newTestExecutor(t, &fakePage{})
	el := &fakeElement{block: make(chan struct{})}
	resolver := &fakeResolver{el: el}

	var mu sync.Mutex
	var order []string
	note := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	q := NewQueue(e, func() Resolver { return resolver }, func(context.Context) { note("reobserve") }, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	results := make(chan action.Result, 2)
	q.Submit(clickAction(), func(r action.Result) { note("result-1"); results <- r })
	require.Eventually(t, q.Busy, time.Second, 5*time.Millisecond)
	q.Submit(action.Action{Type: action.Done, Message: "ok", Success: true}, func(r action.Result) { note("result-2"); results <- r })

	assert.True(t, q.Busy())
	close(el.block)

	first := <-results
	second := <-results
	assert.True(t, first.Success)
	assert.True(t, second.IsDone)

	mu.Lock()
	assert.Equal(t, []string{"result-1", "reobserve", "result-2"}, order)
	mu.Unlock()

	require.Eventually(t, func() bool { return !q.Busy() }, time.Second, 5*time.Millisecond)
}

func TestQueue_StopsOnCancel(t *testing.T) {
	e, _ := newTestExecutor(t, &fakePage{})
	q := NewQueue(e, nil, nil, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("очередь не остановилась")
	}
}
