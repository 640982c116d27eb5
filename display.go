package timewarp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Display is the scan-out side of the warp loop.
type Display interface {
	// WaitForVsync blocks until the next vertical blank and returns its
	// time.
	WaitForVsync(ctx context.Context) (time.Time, error)

	// FramePeriod returns the refresh period.
	FramePeriod() time.Duration

	// Present queues the last warped image for scan-out.
	Present() error
}

// SimulatedDisplay is a Display driven by the wall clock. Vsyncs fall on
// multiples of the frame period after the epoch.
type SimulatedDisplay struct {
	period time.Duration
	epoch  time.Time
	now    func() time.Time

	mu   sync.Mutex
	last time.Time

	presents atomic.Uint64
}

// NewSimulatedDisplay creates a display refreshing at hz.
func NewSimulatedDisplay(hz float64) (*SimulatedDisplay, error) {
	if hz <= 0 {
		return nil, fmt.Errorf("%w: refresh rate %g", ErrInvalidConfig, hz)
	}
	return &SimulatedDisplay{
		period: time.Duration(float64(time.Second) / hz),
		epoch:  time.Now(),
		now:    time.Now,
	}, nil
}

// FramePeriod returns the refresh period.
func (d *SimulatedDisplay) FramePeriod() time.Duration { return d.period }

// NextVsync returns the first vsync strictly after t.
func (d *SimulatedDisplay) NextVsync(t time.Time) time.Time {
	if t.Before(d.epoch) {
		return d.epoch
	}
	n := t.Sub(d.epoch)/d.period + 1
	return d.epoch.Add(n * d.period)
}

// WaitForVsync sleeps until the next vsync that has not been returned
// yet.
func (d *SimulatedDisplay) WaitForVsync(ctx context.Context) (time.Time, error) {
	d.mu.Lock()
	from := d.now()
	if from.Before(d.last) {
		from = d.last
	}
	next := d.NextVsync(from)
	d.last = next
	d.mu.Unlock()

	timer := time.NewTimer(next.Sub(d.now()))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case <-timer.C:
		return next, nil
	}
}

// Present counts a presented image.
func (d *SimulatedDisplay) Present() error {
	d.presents.Add(1)
	return nil
}

// Presents returns how many images were presented.
func (d *SimulatedDisplay) Presents() uint64 { return d.presents.Load() }
