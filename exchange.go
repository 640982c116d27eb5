package timewarp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ExchangeStats counts what happened to frames passing through an
// Exchange. Counters are cumulative.
type ExchangeStats struct {
	Submitted      uint64 // frames written by SubmitFrame
	Accepted       uint64 // frames handed to the scheduler
	NoNewFrame     uint64 // polls that found nothing newer than the last accepted frame
	RejectedFuture uint64 // polls where the newest frame was meant for a later scanout
	RejectedFence  uint64 // polls where the newest frame's GPU work was unfinished
	FenceTimeouts  uint64 // frames dropped after waiting longer than the fence timeout
	LockContended  uint64 // polls that could not take the mailbox lock
}

// ExchangeOption configures an Exchange.
type ExchangeOption func(*Exchange)

// WithFenceTimeout drops a frame whose fences stay unsignalled for longer
// than d after the scheduler first sees it. The producer is released as if
// the frame were consumed, but the frame is never displayed. Zero disables
// the timeout.
func WithFenceTimeout(d time.Duration) ExchangeOption {
	return func(e *Exchange) {
		e.fenceTimeout = d
	}
}

// Exchange is a single-slot, latest-wins mailbox carrying eye frames from
// one scene goroutine to one warp goroutine.
//
// The scene calls SubmitFrame, which blocks until the previous frame was
// consumed and again until the next vsync after writing. The warp scheduler
// calls TryConsumeLatest once per vsync; it never blocks and falls back to
// the last accepted frame when nothing better is ready.
//
// SubmitFrame and TryConsumeLatest/Current/NotifyVsync must each be called
// from a single goroutine. Close and Stats may be called from anywhere.
type Exchange struct {
	mu    sync.Mutex
	frame EyeFrame
	index uint64

	consumed *Signal // auto-reset, raised when a frame is taken
	vsync    *Signal // manual-reset, raised after each present

	closed atomic.Bool

	// displayed holds the texture refs of current for the producer.
	displayed atomic.Pointer[[NumEyes]TextureRef]

	// Consumer-side state.
	current      EyeFrame
	lastIndex    uint64
	pendingIndex uint64
	pendingSince time.Time
	fenceTimeout time.Duration
	now          func() time.Time

	submitted      atomic.Uint64
	accepted       atomic.Uint64
	noNewFrame     atomic.Uint64
	rejectedFuture atomic.Uint64
	rejectedFence  atomic.Uint64
	fenceTimeouts  atomic.Uint64
	lockContended  atomic.Uint64
}

// NewExchange creates an empty exchange. The first SubmitFrame does not
// wait for consumption.
func NewExchange(opts ...ExchangeOption) *Exchange {
	e := &Exchange{
		consumed: NewSignal(true),
		vsync:    NewSignal(false),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.consumed.Raise()
	return e
}

// SubmitFrame publishes f as the newest frame. It waits for the previous
// frame to be consumed, stores f with the next exchange index, and then
// waits for the next vsync so the scene never runs more than one frame
// ahead of the display.
//
// It returns ErrExchangeClosed if the exchange is closed before or while
// waiting, or ctx.Err() if ctx ends first.
func (e *Exchange) SubmitFrame(ctx context.Context, f EyeFrame) error {
	if e.closed.Load() {
		return ErrExchangeClosed
	}
	if err := e.consumed.Wait(ctx); err != nil {
		return err
	}
	if e.closed.Load() {
		return ErrExchangeClosed
	}

	e.mu.Lock()
	e.index++
	f.Index = e.index
	e.frame = f
	e.mu.Unlock()
	e.submitted.Add(1)

	if err := e.vsync.Wait(ctx); err != nil {
		return err
	}
	if e.closed.Load() {
		return ErrExchangeClosed
	}
	return nil
}

// TryConsumeLatest takes the newest frame if it is ready for the scanout
// ending at scanoutEnd. A frame is ready when it is newer than the last
// accepted frame, its display time is not after scanoutEnd, and both of its
// fences are signalled.
//
// On success it returns the frame and true, releases the producer and
// clears the vsync signal. Otherwise it returns the last accepted frame and
// false. It never blocks: if the producer holds the mailbox lock the poll
// is simply skipped.
func (e *Exchange) TryConsumeLatest(scanoutEnd time.Time) (EyeFrame, bool) {
	if !e.mu.TryLock() {
		e.lockContended.Add(1)
		return e.current, false
	}
	f := e.frame
	e.mu.Unlock()

	if f.Index <= e.lastIndex {
		e.noNewFrame.Add(1)
		return e.current, false
	}
	if f.DisplayTime.After(scanoutEnd) {
		e.rejectedFuture.Add(1)
		Logger().Debug("timewarp: frame is for a later scanout",
			"index", f.Index, "displayTime", f.DisplayTime, "scanoutEnd", scanoutEnd)
		return e.current, false
	}
	if !f.Completed() {
		e.rejectedFence.Add(1)
		if e.fenceTimedOut(f.Index) {
			e.fenceTimeouts.Add(1)
			e.lastIndex = f.Index
			e.consumed.Raise()
			e.vsync.Clear()
			Logger().Warn("timewarp: dropping frame with unsignalled fences",
				"index", f.Index, "timeout", e.fenceTimeout)
		}
		return e.current, false
	}

	e.lastIndex = f.Index
	e.current = f
	refs := f.Textures
	e.displayed.Store(&refs)
	e.accepted.Add(1)
	e.consumed.Raise()
	e.vsync.Clear()
	return f, true
}

func (e *Exchange) fenceTimedOut(index uint64) bool {
	if e.fenceTimeout <= 0 {
		return false
	}
	now := e.now()
	if e.pendingIndex != index {
		e.pendingIndex = index
		e.pendingSince = now
		return false
	}
	return now.Sub(e.pendingSince) > e.fenceTimeout
}

// Current returns the last accepted frame. Its Index is zero until a frame
// has been accepted.
func (e *Exchange) Current() EyeFrame {
	return e.current
}

// Displayed returns the texture refs of the frame on display, or nil
// before the first accept. Scenes pass them to EyeRing.NextExcept so they
// never render into a texture the warp still samples. Safe to call from
// the producer goroutine.
func (e *Exchange) Displayed() []TextureRef {
	refs := e.displayed.Load()
	if refs == nil {
		return nil
	}
	return refs[:]
}

// NotifyVsync releases a producer waiting for the next display refresh.
// The scheduler calls it after presenting.
func (e *Exchange) NotifyVsync() {
	e.vsync.Raise()
}

// Close force-raises both signals so a blocked SubmitFrame returns
// ErrExchangeClosed. Close is idempotent.
func (e *Exchange) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.consumed.ForceRaise()
	e.vsync.ForceRaise()
}

// Closed reports whether Close has been called.
func (e *Exchange) Closed() bool {
	return e.closed.Load()
}

// Stats returns a snapshot of the exchange counters.
func (e *Exchange) Stats() ExchangeStats {
	return ExchangeStats{
		Submitted:      e.submitted.Load(),
		Accepted:       e.accepted.Load(),
		NoNewFrame:     e.noNewFrame.Load(),
		RejectedFuture: e.rejectedFuture.Load(),
		RejectedFence:  e.rejectedFence.Load(),
		FenceTimeouts:  e.fenceTimeouts.Load(),
		LockContended:  e.lockContended.Load(),
	}
}
