package timewarp

import (
	"sync"
	"time"
)

// FrameRateWindow is the number of frames FrameRateCounter averages over.
const FrameRateWindow = 20

// FrameRateCounter measures a cadence over the last FrameRateWindow events.
//
// Thread safety: FrameRateCounter is safe for concurrent use.
type FrameRateCounter struct {
	mu    sync.Mutex
	times [FrameRateWindow]time.Time
	count int
	next  int
}

// Tick records an event at t.
func (c *FrameRateCounter) Tick(t time.Time) {
	c.mu.Lock()
	c.times[c.next] = t
	c.next = (c.next + 1) % FrameRateWindow
	if c.count < FrameRateWindow {
		c.count++
	}
	c.mu.Unlock()
}

// Rate returns events per second across the window, or 0 with fewer than
// two events recorded.
func (c *FrameRateCounter) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count < 2 {
		return 0
	}
	newest := c.times[(c.next+FrameRateWindow-1)%FrameRateWindow]
	oldest := c.times[(c.next+FrameRateWindow-c.count)%FrameRateWindow]
	span := newest.Sub(oldest)
	if span <= 0 {
		return 0
	}
	return float64(c.count-1) / span.Seconds()
}

// Reset forgets all recorded events.
func (c *FrameRateCounter) Reset() {
	c.mu.Lock()
	c.count = 0
	c.next = 0
	c.mu.Unlock()
}
