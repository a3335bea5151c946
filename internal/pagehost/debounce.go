package pagehost

import (
	"sync"
	"time"
)

// Debouncer вызывает fn один раз после серии Trigger, когда наступает тишина длиной interval.
type Debouncer struct {
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64 // номер последнего Trigger, срабатывает только его таймер
	stopped bool
}

func NewDebouncer(interval time.Duration, fn func()) *Debouncer {
	return &Debouncer{interval: interval, fn: fn}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.interval, func() { d.fire(gen) })
}

// fire от уже заменённого таймера ничего не делает.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Stop отменяет ожидающий вызов. Повторные Trigger игнорируются.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
