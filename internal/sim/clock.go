package sim

import (
	"sync"
	"time"
)

// Clock registers a fixed-interval callback. The returned func cancels it
// and is safe to call more than once.
type Clock interface {
	Every(d time.Duration, fn func()) (cancel func())
}

// TickerClock runs fn on its own goroutine from a time.Ticker.
type TickerClock struct{}

func (TickerClock) Every(d time.Duration, fn func()) func() {
	t := time.NewTicker(d)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				fn()
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(stop)
		})
	}
}

// ManualClock fires only when Advance is called. For tests and headless
// runs.
type ManualClock struct {
	fn       func()
	Interval time.Duration
}

func (c *ManualClock) Every(d time.Duration, fn func()) func() {
	c.fn, c.Interval = fn, d
	return func() { c.fn = nil }
}

// Advance fires the callback up to n times, stopping early once cancelled.
func (c *ManualClock) Advance(n int) int {
	fired := 0
	for i := 0; i < n && c.fn != nil; i++ {
		c.fn()
		fired++
	}
	return fired
}

// Active reports whether a callback is registered.
func (c *ManualClock) Active() bool { return c.fn != nil }
