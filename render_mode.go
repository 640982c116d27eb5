package timewarp

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// RenderMode selects the warp implementation.
type RenderMode int

const (
	// RenderModeAuto picks graphics when available, compute otherwise.
	RenderModeAuto RenderMode = iota

	// RenderModeGraphics draws the distortion mesh with a render pipeline.
	RenderModeGraphics

	// RenderModeCompute transforms the mesh and resamples the eye images
	// with compute pipelines.
	RenderModeCompute
)

// String returns the render mode name.
func (m RenderMode) String() string {
	switch m {
	case RenderModeAuto:
		return "Auto"
	case RenderModeGraphics:
		return "Graphics"
	case RenderModeCompute:
		return "Compute"
	default:
		return "Unknown"
	}
}

// ParseRenderMode parses a mode name, case-insensitively.
func ParseRenderMode(s string) (RenderMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return RenderModeAuto, nil
	case "graphics":
		return RenderModeGraphics, nil
	case "compute":
		return RenderModeCompute, nil
	default:
		return RenderModeAuto, fmt.Errorf("%w: unknown render mode %q", ErrInvalidConfig, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RenderMode) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(m.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RenderMode) UnmarshalText(text []byte) error {
	v, err := ParseRenderMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// SelectRenderMode resolves requested against the implementations that
// exist. Auto prefers graphics. An explicit mode that is unavailable falls
// back to the other one; RenderModeAuto is returned only when neither
// exists.
func SelectRenderMode(requested RenderMode, hasGraphics, hasCompute bool) RenderMode {
	switch {
	case requested == RenderModeCompute && hasCompute:
		return RenderModeCompute
	case requested == RenderModeGraphics && hasGraphics:
		return RenderModeGraphics
	case hasGraphics:
		return RenderModeGraphics
	case hasCompute:
		return RenderModeCompute
	default:
		return RenderModeAuto
	}
}

// Toggles are the runtime switches the warp scheduler reads every vsync.
// They can be flipped from any goroutine, typically a key handler.
type Toggles struct {
	mode                 atomic.Int32
	chromatic            atomic.Bool
	multiView            atomic.Bool
	barGraphs            atomic.Bool
	headRotationDisabled atomic.Bool
}

// NewToggles creates toggles from a config.
func NewToggles(cfg Config) *Toggles {
	t := &Toggles{}
	t.mode.Store(int32(cfg.RenderMode))
	t.chromatic.Store(cfg.Chromatic)
	t.multiView.Store(cfg.MultiView)
	t.barGraphs.Store(cfg.BarGraphs)
	t.headRotationDisabled.Store(cfg.HeadRotationDisabled)
	return t
}

// RenderMode returns the selected warp implementation.
func (t *Toggles) RenderMode() RenderMode { return RenderMode(t.mode.Load()) }

// SetRenderMode selects the warp implementation.
func (t *Toggles) SetRenderMode(m RenderMode) { t.mode.Store(int32(m)) }

// Chromatic reports whether per-channel chromatic correction is on.
func (t *Toggles) Chromatic() bool { return t.chromatic.Load() }

// SetChromatic turns chromatic correction on or off.
func (t *Toggles) SetChromatic(v bool) { t.chromatic.Store(v) }

// MultiView reports whether the scene renders both eyes into one layered
// texture.
func (t *Toggles) MultiView() bool { return t.multiView.Load() }

// SetMultiView switches multi-view rendering.
func (t *Toggles) SetMultiView(v bool) { t.multiView.Store(v) }

// BarGraphs reports whether timing bar graphs are drawn.
func (t *Toggles) BarGraphs() bool { return t.barGraphs.Load() }

// SetBarGraphs shows or hides the timing bar graphs.
func (t *Toggles) SetBarGraphs(v bool) { t.barGraphs.Store(v) }

// HeadRotationDisabled reports whether head tracking is frozen.
func (t *Toggles) HeadRotationDisabled() bool { return t.headRotationDisabled.Load() }

// SetHeadRotationDisabled freezes or resumes head tracking.
func (t *Toggles) SetHeadRotationDisabled(v bool) { t.headRotationDisabled.Store(v) }

// ToggleRenderMode switches between graphics and compute and returns the
// new mode. Auto switches to compute.
func (t *Toggles) ToggleRenderMode() RenderMode {
	for {
		old := t.mode.Load()
		next := RenderModeCompute
		if RenderMode(old) == RenderModeCompute {
			next = RenderModeGraphics
		}
		if t.mode.CompareAndSwap(old, int32(next)) {
			return next
		}
	}
}

// ViewContext returns the head pose options the toggles imply.
func (t *Toggles) ViewContext() ViewContext {
	return ViewContext{HeadRotationDisabled: t.HeadRotationDisabled()}
}

// ToggleState is a copy of the toggles taken once per warp.
type ToggleState struct {
	RenderMode RenderMode
	Chromatic  bool
	MultiView  bool
	BarGraphs  bool
}

// Snapshot returns the current toggle values.
func (t *Toggles) Snapshot() ToggleState {
	return ToggleState{
		RenderMode: t.RenderMode(),
		Chromatic:  t.Chromatic(),
		MultiView:  t.MultiView(),
		BarGraphs:  t.BarGraphs(),
	}
}
