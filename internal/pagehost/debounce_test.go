package pagehost

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncer_StaleTimerDoesNotFire(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(time.Hour, func() { calls.Add(1) })
	defer d.Stop()

	d.Trigger()
	d.mu.Lock()
	stale := d.gen
	d.mu.Unlock()
	d.Trigger()

	// старый таймер уже успел запуститься, когда его заменили
	d.fire(stale)
	assert.Zero(t, calls.Load())

	d.mu.Lock()
	current := d.gen
	pending := d.timer != nil
	d.mu.Unlock()
	assert.True(t, pending, "новый таймер не сброшен")

	d.fire(current)
	assert.Equal(t, int32(1), calls.Load())

	d.Trigger()
	d.Stop()
	d.mu.Lock()
	last := d.gen
	d.mu.Unlock()
	d.fire(last)
	assert.Equal(t, int32(1), calls.Load(), "после Stop вызовов нет")
}
