package timewarp

import (
	"sync"
	"time"
)

// FrameTiming is the display timing snapshot published once per vsync by
// the warp scheduler.
type FrameTiming struct {
	// FrameIndex is the index of the frame that scans out at VsyncTime.
	FrameIndex int64

	// VsyncTime is the start of scanout for FrameIndex.
	VsyncTime time.Time

	// FrameTime is the display refresh period.
	FrameTime time.Duration
}

// Predictor answers "when will frame N be displayed" from the most recent
// FrameTiming. It is written by the warp goroutine and read by the scene
// goroutine.
//
// Thread safety: Predictor is safe for concurrent use. Updates replace the
// snapshot wholesale; the last writer wins.
type Predictor struct {
	mu     sync.Mutex
	timing FrameTiming
}

// NewPredictor creates a predictor seeded with an initial snapshot.
func NewPredictor(initial FrameTiming) *Predictor {
	return &Predictor{timing: initial}
}

// PredictedDisplayTime returns
// VsyncTime + (frameIndex - FrameIndex) * FrameTime
// using the current snapshot. Frame indices in the past yield times in the
// past. It never blocks beyond the snapshot lock and never fails.
func (p *Predictor) PredictedDisplayTime(frameIndex int64) time.Time {
	p.mu.Lock()
	t := p.timing
	p.mu.Unlock()
	return t.VsyncTime.Add(time.Duration(frameIndex-t.FrameIndex) * t.FrameTime)
}

// Update replaces the snapshot.
func (p *Predictor) Update(t FrameTiming) {
	p.mu.Lock()
	p.timing = t
	p.mu.Unlock()
}

// Timing returns a copy of the current snapshot.
func (p *Predictor) Timing() FrameTiming {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timing
}
