package refresh

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock calls a tick function periodically at an adjustable rate. At most
// one ticker goroutine runs at any time.
type Clock struct {
	tick func()

	mu      sync.Mutex
	rate    int
	stop    chan struct{}
	done    chan struct{}
	stopped bool

	// running counts live ticker goroutines.
	running atomic.Int32
}

// NewClock returns a stopped clock that will call tick on every period.
// tick runs on the clock's goroutine; it must not block for long and must
// not call back into the clock.
func NewClock(tick func()) *Clock {
	return &Clock{tick: tick}
}

// SetRate (re)starts the clock at hz ticks per second. The previous ticker
// goroutine has exited by the time SetRate returns. A non-positive rate
// pauses the clock. Calls after Stop are ignored.
func (c *Clock) SetRate(hz int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	if hz == c.rate && (c.stop != nil || hz <= 0) {
		return
	}

	c.halt()
	c.rate = hz
	if hz <= 0 {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done
	c.running.Add(1)
	go c.run(time.Second/time.Duration(hz), stop, done)
}

// Rate returns the current rate in Hz, or zero when paused or stopped.
func (c *Clock) Rate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return 0
	}
	return c.rate
}

// Stop halts the clock permanently. It is safe to call more than once. No
// tick starts after Stop returns.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.halt()
	c.stopped = true
	c.rate = 0
}

// Running reports the number of live ticker goroutines (zero or one).
func (c *Clock) Running() int {
	return int(c.running.Load())
}

// halt stops the current ticker goroutine and waits for it. c.mu is held.
func (c *Clock) halt() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop, c.done = nil, nil
}

func (c *Clock) run(period time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer c.running.Add(-1)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			c.tick()
		}
	}
}
