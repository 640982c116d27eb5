// Package timewarp provides asynchronous time-warp for stereo head-mounted
// displays.
//
// # Overview
//
// A scene goroutine renders a pair of eye images at whatever rate it can
// sustain. A separate warp goroutine wakes once per display refresh, picks
// the newest completed eye images and reprojects them with the latest head
// orientation just before scanout. The display always receives an image,
// even when the scene misses its budget.
//
// # Quick Start
//
//	rig, err := gpu.Open(timewarp.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer rig.Close()
//
//	display, _ := timewarp.NewSimulatedDisplay(60)
//	ex := timewarp.NewExchange()
//	sched, err := timewarp.NewScheduler(ex, display, rig.SchedulerOptions()...)
//
//	// Scene goroutine:
//	frameIndex++
//	at := sched.Predictor().PredictedDisplayTime(frameIndex)
//	// ... render both eyes into a ring slot, then:
//	err = ex.SubmitFrame(ctx, timewarp.EyeFrame{FrameIndex: frameIndex, DisplayTime: at, ...})
//
//	// Run both goroutines until ctx ends:
//	err = timewarp.RunPair(ctx, sched, scene)
//
// # Architecture
//
// The package is organized into:
//   - Handoff: Exchange, Signal, EyeFrame (single-slot latest-wins mailbox)
//   - Timing: Predictor, FrameTiming, FrameRateCounter
//   - Reprojection math: CalculateTimeWarpTransform, BuildDistortionMeshes
//   - Scheduling: Scheduler, Warper, Display, RenderMode, Toggles
//   - GPU implementations of Warper live in the gpu/ sub-package.
//
// # Matrices
//
// All matrices are [mgl32.Mat4] values in column-major order. View matrices
// are rigid transforms (rotation plus translation). Distortion mesh
// coordinates are tangent angles on the z = -1 plane.
package timewarp

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"
)
