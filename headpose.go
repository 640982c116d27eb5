package timewarp

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// ViewContext carries per-call options for head pose queries.
type ViewContext struct {
	// HeadRotationDisabled makes trackers report the identity view.
	HeadRotationDisabled bool
}

// HeadTracker predicts the head view matrix at a point in time.
type HeadTracker interface {
	ViewMatrixForTime(vc ViewContext, at time.Time) mgl32.Mat4
}

// SimulatedHeadTracker swings the head in a slow circle, ten degrees in
// pitch and yaw with a two second period. It stands in for a real sensor
// in headless runs and tests.
type SimulatedHeadTracker struct {
	epoch time.Time
}

// NewSimulatedHeadTracker creates a tracker whose motion starts at epoch.
func NewSimulatedHeadTracker(epoch time.Time) *SimulatedHeadTracker {
	return &SimulatedHeadTracker{epoch: epoch}
}

// ViewMatrixForTime implements HeadTracker.
func (s *SimulatedHeadTracker) ViewMatrixForTime(vc ViewContext, at time.Time) mgl32.Mat4 {
	if vc.HeadRotationDisabled {
		return mgl32.Ident4()
	}

	us := float64(at.Sub(s.epoch).Microseconds())
	offset := us * (math.Pi / 1e6)
	degreesX := float32(math.Sin(offset) * 10)
	degreesY := float32(math.Cos(offset) * 10)

	return mgl32.HomogRotate3DY(mgl32.DegToRad(degreesY)).Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(degreesX)))
}

// StaticHeadTracker always reports the same view.
type StaticHeadTracker struct {
	View mgl32.Mat4
}

// ViewMatrixForTime implements HeadTracker.
func (s StaticHeadTracker) ViewMatrixForTime(vc ViewContext, _ time.Time) mgl32.Mat4 {
	if vc.HeadRotationDisabled {
		return mgl32.Ident4()
	}
	return s.View
}
