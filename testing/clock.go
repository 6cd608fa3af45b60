package testing

import (
	"sync"
	"time"

	"github.com/opd-ai/rtcevent/clock"
)

// ManualClock is a clock.TimeProvider whose time only moves on Advance.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*ManualTicker
}

// NewManualClock creates a clock set to start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTicker creates a ticker driven by Advance.
func (c *ManualClock) NewTicker(d time.Duration) clock.Ticker {
	if d <= 0 {
		panic("non-positive interval for ManualClock.NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &ManualTicker{
		period: d,
		next:   c.now.Add(d),
		ch:     make(chan time.Time),
		stop:   make(chan struct{}),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Tickers returns the number of tickers that have not been stopped.
func (c *ManualClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.tickers {
		if !t.stopped() {
			n++
		}
	}
	return n
}

// Advance moves time forward by d and fires every tick that falls due, in
// time order. Each tick blocks until its receiver takes it or the ticker is
// stopped.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *ManualTicker
		for _, t := range c.tickers {
			if t.stopped() || t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		at := due.next
		c.now = at
		due.next = at.Add(due.period)
		c.mu.Unlock()

		select {
		case due.ch <- at:
		case <-due.stop:
		}
	}
}

// ManualTicker is a clock.Ticker created by ManualClock.
type ManualTicker struct {
	period   time.Duration
	next     time.Time
	ch       chan time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// C returns the tick channel.
func (t *ManualTicker) C() <-chan time.Time { return t.ch }

// Stop stops the ticker. Pending and future Advance calls skip it.
func (t *ManualTicker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *ManualTicker) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}
