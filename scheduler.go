package timewarp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// SchedulerState is the phase of the warp loop.
type SchedulerState int32

const (
	// SchedulerIdle means Run has not started or has returned.
	SchedulerIdle SchedulerState = iota

	// SchedulerWaitingForVsync means the loop is blocked on the display or
	// sleeping until the warp start time.
	SchedulerWaitingForVsync

	// SchedulerWarping means a warp and present are in progress.
	SchedulerWarping
)

// String returns the state name.
func (s SchedulerState) String() string {
	switch s {
	case SchedulerIdle:
		return "Idle"
	case SchedulerWaitingForVsync:
		return "WaitingForVsync"
	case SchedulerWarping:
		return "Warping"
	default:
		return "Unknown"
	}
}

// WarpInput is everything a Warper needs for one refresh.
type WarpInput struct {
	// Frame is the eye frame to reproject.
	Frame EyeFrame

	// Fresh is true when Frame was accepted on this refresh, false when the
	// previous frame is shown again.
	Fresh bool

	// FrameIndex is the display frame being produced and ScanoutStart the
	// vsync at which it starts scanning out.
	FrameIndex   int64
	ScanoutStart time.Time

	// Transforms holds the start and end of scanout reprojection for each
	// eye.
	Transforms [NumEyes]WarpTransform

	Toggles ToggleState
}

// Warper reprojects eye textures into the display image.
type Warper interface {
	Warp(in WarpInput) error
	Name() string
}

// SchedulerStats is a snapshot of the warp loop.
type SchedulerStats struct {
	State      SchedulerState
	RenderMode RenderMode // mode used by the last warp

	SourceFPS float64 // rate at which fresh scene frames arrive
	WarpFPS   float64 // rate at which warps are issued

	Ticks         uint64 // refreshes handled
	Warps         uint64 // warps issued
	Skipped       uint64 // refreshes before the first frame arrived
	WarpErrors    uint64
	PresentErrors uint64

	Exchange ExchangeStats
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler) error

// WithWarper installs the warp implementation for a render mode, which must
// be RenderModeGraphics or RenderModeCompute.
func WithWarper(mode RenderMode, w Warper) SchedulerOption {
	return func(s *Scheduler) error {
		if w == nil {
			return fmt.Errorf("%w: nil %v warper", ErrInvalidConfig, mode)
		}
		switch mode {
		case RenderModeGraphics:
			s.graphics = w
		case RenderModeCompute:
			s.compute = w
		default:
			return fmt.Errorf("%w: warper for render mode %v", ErrInvalidConfig, mode)
		}
		return nil
	}
}

// WithHeadTracker sets the head pose source. The default is a
// SimulatedHeadTracker started when the scheduler is created.
func WithHeadTracker(h HeadTracker) SchedulerOption {
	return func(s *Scheduler) error {
		s.tracker = h
		return nil
	}
}

// WithToggles shares runtime toggles with the scheduler. The default
// toggles come from DefaultConfig.
func WithToggles(t *Toggles) SchedulerOption {
	return func(s *Scheduler) error {
		s.toggles = t
		return nil
	}
}

// Scheduler is the per-vsync warp loop. Once per refresh it wakes half a
// frame before the next vsync, takes the newest ready eye frame from the
// exchange, computes the reprojection for the coming scanout, warps with
// the selected implementation and presents.
//
// Run must be called once, from the goroutine that owns the warp GPU
// context. Stats and Predictor may be used from anywhere.
type Scheduler struct {
	exchange  *Exchange
	display   Display
	predictor *Predictor
	tracker   HeadTracker
	toggles   *Toggles

	graphics Warper
	compute  Warper

	frameIndex int64

	sourceRate FrameRateCounter
	warpRate   FrameRateCounter

	state         atomic.Int32
	lastMode      atomic.Int32
	ticks         atomic.Uint64
	warps         atomic.Uint64
	skipped       atomic.Uint64
	warpErrors    atomic.Uint64
	presentErrors atomic.Uint64
}

// NewScheduler creates a scheduler consuming from ex and presenting to
// display. At least one warper must be installed with WithWarper,
// otherwise ErrNoWarper is returned.
func NewScheduler(ex *Exchange, display Display, opts ...SchedulerOption) (*Scheduler, error) {
	if ex == nil || display == nil {
		return nil, fmt.Errorf("%w: scheduler needs an exchange and a display", ErrInvalidConfig)
	}
	if display.FramePeriod() <= 0 {
		return nil, fmt.Errorf("%w: display frame period %v", ErrInvalidConfig, display.FramePeriod())
	}

	now := time.Now()
	s := &Scheduler{
		exchange: ex,
		display:  display,
		predictor: NewPredictor(FrameTiming{
			VsyncTime: now,
			FrameTime: display.FramePeriod(),
		}),
		tracker: NewSimulatedHeadTracker(now),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.graphics == nil && s.compute == nil {
		return nil, ErrNoWarper
	}
	if s.toggles == nil {
		s.toggles = NewToggles(DefaultConfig())
	}
	if s.graphics != nil {
		propagateLogger(s.graphics)
	}
	if s.compute != nil {
		propagateLogger(s.compute)
	}
	return s, nil
}

// Predictor returns the display timing predictor the scheduler updates
// every vsync. The scene uses it to pick each frame's display time.
func (s *Scheduler) Predictor() *Predictor { return s.predictor }

// Exchange returns the exchange the scheduler consumes from.
func (s *Scheduler) Exchange() *Exchange { return s.exchange }

// Toggles returns the runtime toggles the scheduler reads.
func (s *Scheduler) Toggles() *Toggles { return s.toggles }

// Run drives the warp loop until ctx is cancelled. It closes the exchange
// on return so a producer blocked in SubmitFrame is released. Warp and
// present failures are logged and counted; only a display failure ends
// the loop early. Cancellation returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	defer func() {
		s.exchange.Close()
		s.state.Store(int32(SchedulerIdle))
	}()

	log := Logger()
	log.Info("timewarp: scheduler started",
		"period", s.display.FramePeriod(),
		"graphics", warperName(s.graphics),
		"compute", warperName(s.compute))

	for {
		s.state.Store(int32(SchedulerWaitingForVsync))
		vsync, err := s.display.WaitForVsync(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for vsync: %w", err)
		}

		period := s.display.FramePeriod()
		s.frameIndex++
		s.predictor.Update(FrameTiming{
			FrameIndex: s.frameIndex,
			VsyncTime:  vsync,
			FrameTime:  period,
		})
		// The previous refresh presented before this vsync, so releasing
		// the producer here follows that present.
		s.exchange.NotifyVsync()

		// Start late enough to show the freshest pose, early enough to
		// finish before scanout.
		scanoutStart := vsync.Add(period)
		if err := sleepUntil(ctx, scanoutStart.Add(-period/2)); err != nil {
			return nil
		}

		s.state.Store(int32(SchedulerWarping))
		s.tick(scanoutStart, period)
	}
}

func (s *Scheduler) tick(scanoutStart time.Time, period time.Duration) {
	s.ticks.Add(1)
	log := Logger()
	scanoutEnd := scanoutStart.Add(period)

	frame, fresh := s.exchange.TryConsumeLatest(scanoutEnd)
	now := time.Now()
	if fresh {
		s.sourceRate.Tick(now)
	}

	if frame.Index == 0 {
		s.skipped.Add(1)
	} else {
		in := WarpInput{
			Frame:        frame,
			Fresh:        fresh,
			FrameIndex:   s.frameIndex + 1,
			ScanoutStart: scanoutStart,
			Toggles:      s.toggles.Snapshot(),
		}

		vc := s.toggles.ViewContext()
		in.Transforms = s.transforms(frame, vc, scanoutStart, scanoutEnd)

		mode := SelectRenderMode(in.Toggles.RenderMode, s.graphics != nil, s.compute != nil)
		in.Toggles.RenderMode = mode
		w := s.graphics
		if mode == RenderModeCompute {
			w = s.compute
		}
		s.lastMode.Store(int32(mode))

		s.warps.Add(1)
		s.warpRate.Tick(now)
		if err := w.Warp(in); err != nil {
			s.warpErrors.Add(1)
			log.Warn("timewarp: warp failed", "warper", w.Name(), "frame", frame.Index, "err", err)
		}
	}

	if err := s.display.Present(); err != nil {
		s.presentErrors.Add(1)
		log.Warn("timewarp: present failed", "err", err)
	}
}

func (s *Scheduler) transforms(frame EyeFrame, vc ViewContext, start, end time.Time) [NumEyes]WarpTransform {
	startView := s.tracker.ViewMatrixForTime(vc, start)
	endView := s.tracker.ViewMatrixForTime(vc, end)

	renderView := frame.View
	if renderView == (mgl32.Mat4{}) {
		renderView = mgl32.Ident4()
	}

	// Both eyes were rendered with the same head pose, so the reprojection
	// is shared.
	t := CalculateWarpTransforms(frame.Projection, renderView, startView, endView)
	var out [NumEyes]WarpTransform
	for eye := range out {
		out[eye] = t
	}
	return out
}

// Stats returns a snapshot of the warp loop counters.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		State:         SchedulerState(s.state.Load()),
		RenderMode:    RenderMode(s.lastMode.Load()),
		SourceFPS:     s.sourceRate.Rate(),
		WarpFPS:       s.warpRate.Rate(),
		Ticks:         s.ticks.Load(),
		Warps:         s.warps.Load(),
		Skipped:       s.skipped.Load(),
		WarpErrors:    s.warpErrors.Load(),
		PresentErrors: s.presentErrors.Load(),
		Exchange:      s.exchange.Stats(),
	}
}

func warperName(w Warper) string {
	if w == nil {
		return "none"
	}
	return w.Name()
}

func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isShutdown reports whether err is the normal result of stopping a
// producer or the warp loop.
func isShutdown(err error) bool {
	return errors.Is(err, ErrExchangeClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
