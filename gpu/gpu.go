//go:build !nogpu

// Package gpu wires the time-warp GPU implementation to a HAL device.
//
// A Rig owns everything both goroutines need: the shared device, one
// command context per goroutine, the scene's eye texture ring, the display
// image and both warpers. Hand Rig.SchedulerOptions to timewarp.NewScheduler
// and render eye textures with Rig.RenderScene (or your own renderer using
// the same ring slots).
//
// Usage:
//
//	import _ "github.com/gogpu/wgpu/hal/allbackends"
//
//	rig, err := gpu.Open(cfg)
//	if err != nil { ... }
//	defer rig.Close()
//	s, err := timewarp.NewScheduler(ex, display, rig.SchedulerOptions()...)
package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/timewarp"
	gpuimpl "github.com/gogpu/timewarp/internal/gpu"
)

// Errors re-exported from the implementation.
var (
	ErrNilDevice      = gpuimpl.ErrNilDevice
	ErrMeshTooLarge   = gpuimpl.ErrMeshTooLarge
	ErrUnknownBackend = gpuimpl.ErrUnknownBackend
	ErrBadTexture     = gpuimpl.ErrBadTexture
)

// Rig is a complete GPU time-warp setup on one device.
type Rig struct {
	device   *gpuimpl.Device
	scene    *gpuimpl.Context
	warp     *gpuimpl.Context
	targets  *gpuimpl.EyeTargets
	display  *gpuimpl.DisplayTarget
	graphics *gpuimpl.GraphicsWarper
	compute  *gpuimpl.ComputeWarper
	renderer *gpuimpl.SceneRenderer
	ringSize int
}

// Open opens the backend cfg.Backend names and builds a rig for cfg. The
// backend's package must be linked in, usually through
// github.com/gogpu/wgpu/hal/allbackends.
func Open(cfg timewarp.Config) (*Rig, error) {
	backend, err := gpuimpl.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	dev, err := gpuimpl.Open(backend)
	if err != nil {
		return nil, err
	}
	r, err := newRig(dev, cfg)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return r, nil
}

// OpenWithProvider builds a rig on a device shared by an external
// provider, such as a gogpu application. The provider must expose
// HalDevice() and HalQueue(). Close leaves the provider's device open.
func OpenWithProvider(cfg timewarp.Config, provider any) (*Rig, error) {
	dev, err := gpuimpl.NewDeviceFromProvider(provider)
	if err != nil {
		return nil, err
	}
	return newRig(dev, cfg)
}

func newRig(dev *gpuimpl.Device, cfg timewarp.Config) (_ *Rig, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	info := cfg.HMDInfo()
	meshes, err := timewarp.BuildDistortionMeshes(info)
	if err != nil {
		return nil, err
	}

	r := &Rig{device: dev, ringSize: timewarp.NewEyeRing(cfg.EyeRingSize).Size()}
	defer func() {
		if err != nil {
			r.release()
		}
	}()

	if r.scene, err = gpuimpl.NewContext(dev, "scene"); err != nil {
		return nil, err
	}
	if r.warp, err = gpuimpl.NewContext(dev, "warp"); err != nil {
		return nil, err
	}
	eyeW, eyeH := info.EyePixelsWide(), info.EyePixelsHigh()
	if r.targets, err = gpuimpl.NewEyeTargets(dev, r.ringSize, eyeW, eyeH); err != nil {
		return nil, err
	}
	if r.display, err = gpuimpl.NewDisplayTarget(dev, eyeW*timewarp.NumEyes, eyeH); err != nil {
		return nil, err
	}
	if r.renderer, err = gpuimpl.NewSceneRenderer(r.scene, r.targets); err != nil {
		return nil, err
	}

	// Either warper is enough; the scheduler falls back to the other.
	var gErr, cErr error
	r.graphics, gErr = gpuimpl.NewGraphicsWarper(r.warp, meshes, r.targets, r.display)
	if gErr != nil {
		timewarp.Logger().Warn("gpu: graphics warper unavailable", "err", gErr)
	}
	r.compute, cErr = gpuimpl.NewComputeWarper(r.warp, meshes, r.targets, r.display)
	if cErr != nil {
		timewarp.Logger().Warn("gpu: compute warper unavailable", "err", cErr)
	}
	if r.graphics == nil && r.compute == nil {
		err = fmt.Errorf("gpu: no warper: %w", errors.Join(gErr, cErr))
		return nil, err
	}

	timewarp.Logger().Info("gpu: rig ready",
		"adapter", dev.AdapterInfo().Name,
		"eye", fmt.Sprintf("%dx%d", eyeW, eyeH),
		"slots", r.ringSize,
		"graphics", r.graphics != nil,
		"compute", r.compute != nil)
	return r, nil
}

// SchedulerOptions returns the options installing the rig's warpers.
func (r *Rig) SchedulerOptions() []timewarp.SchedulerOption {
	var opts []timewarp.SchedulerOption
	if r.graphics != nil {
		opts = append(opts, timewarp.WithWarper(timewarp.RenderModeGraphics, r.graphics))
	}
	if r.compute != nil {
		opts = append(opts, timewarp.WithWarper(timewarp.RenderModeCompute, r.compute))
	}
	return opts
}

// EyeRingSize returns the number of eye texture slots. Scenes should draw
// slots from a timewarp.EyeRing of this size.
func (r *Rig) EyeRingSize() int { return r.ringSize }

// RenderScene renders the built-in test scene for frameIndex into the slot
// ref names and returns the fence of that work. Call it from the scene
// goroutine only.
func (r *Rig) RenderScene(ref timewarp.TextureRef, frameIndex int64) (timewarp.Fence, error) {
	f, err := r.renderer.Render(ref, frameIndex)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DeviceProvider returns the rig's device for sharing with other gogpu
// consumers.
func (r *Rig) DeviceProvider() gpucontext.DeviceProvider { return r.device }

// Close waits for the GPU and releases every resource.
func (r *Rig) Close() {
	r.release()
	r.device.Close()
}

func (r *Rig) release() {
	if r.graphics != nil {
		r.graphics.Destroy()
		r.graphics = nil
	}
	if r.compute != nil {
		r.compute.Destroy()
		r.compute = nil
	}
	if r.display != nil {
		r.display.Destroy()
		r.display = nil
	}
	if r.targets != nil {
		r.targets.Destroy()
		r.targets = nil
	}
	if r.warp != nil {
		r.warp.Destroy()
		r.warp = nil
	}
	if r.scene != nil {
		r.scene.Destroy()
		r.scene = nil
	}
}
