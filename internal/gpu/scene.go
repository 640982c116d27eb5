//go:build !nogpu

package gpu

import (
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/timewarp"
)

// SceneRenderer is a stand-in scene: it clears each eye texture to a color
// that cycles with the frame index, left and right eyes a third of a cycle
// apart. It exists to drive the warpers headless.
type SceneRenderer struct {
	ctx     *Context
	targets *EyeTargets
}

// NewSceneRenderer creates a scene rendering into targets. ctx must be the
// scene goroutine's context.
func NewSceneRenderer(ctx *Context, targets *EyeTargets) (*SceneRenderer, error) {
	if ctx == nil || targets == nil {
		return nil, ErrNilDevice
	}
	return &SceneRenderer{ctx: ctx, targets: targets}, nil
}

// SceneColor returns the clear color for eye on frame frameIndex.
func SceneColor(frameIndex int64, eye timewarp.Eye) gputypes.Color {
	phase := float64(frameIndex)/90*2*math.Pi + float64(eye)*2*math.Pi/3
	return gputypes.Color{
		R: 0.5 + 0.5*math.Sin(phase),
		G: 0.5 + 0.5*math.Sin(phase+2*math.Pi/3),
		B: 0.5 + 0.5*math.Sin(phase+4*math.Pi/3),
		A: 1,
	}
}

// Render draws both eyes of frame frameIndex into the slot ref names and
// submits. The returned fence signals when both eyes are complete.
func (r *SceneRenderer) Render(ref timewarp.TextureRef, frameIndex int64) (Fence, error) {
	var views [timewarp.NumEyes]hal.TextureView
	for eye := range timewarp.NumEyes {
		v, err := r.targets.RenderView(ref, timewarp.Eye(eye))
		if err != nil {
			return Fence{}, err
		}
		views[eye] = v
	}

	encoder, err := r.ctx.Begin()
	if err != nil {
		return Fence{}, err
	}
	for eye, view := range views {
		pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "scene_" + timewarp.Eye(eye).String(),
			ColorAttachments: []hal.RenderPassColorAttachment{
				{
					View:       view,
					LoadOp:     gputypes.LoadOpClear,
					StoreOp:    gputypes.StoreOpStore,
					ClearValue: SceneColor(frameIndex, timewarp.Eye(eye)),
				},
			},
		})
		pass.End()
	}
	return r.ctx.Submit()
}
