//go:build !nogpu

package gpu

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/timewarp"
)

// meshVertexStride is the byte stride of one distortion mesh vertex:
//
//	position    (vec2<f32>) = 8 bytes (location 0)
//	coord_red   (vec2<f32>) = 8 bytes (location 1)
//	coord_green (vec2<f32>) = 8 bytes (location 2)
//	coord_blue  (vec2<f32>) = 8 bytes (location 3)
const meshVertexStride = 32

// GraphicsWarper draws each eye's distortion mesh into its half of the
// display with a render pipeline. The vertex shader reprojects the mesh
// coordinates; the fragment shader samples the eye texture once per color
// channel, or once through the green coordinate when chromatic correction
// is off.
type GraphicsWarper struct {
	ctx     *Context
	targets *EyeTargets
	display *DisplayTarget

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	chromatic  hal.RenderPipeline
	spatial    hal.RenderPipeline
	sampler    hal.Sampler

	vertexBufs [timewarp.NumEyes]hal.Buffer
	uniforms   [timewarp.NumEyes]hal.Buffer
	indexBuf   hal.Buffer
	indexCount uint32

	bindGroups map[bindKey]hal.BindGroup
	last       Fence
}

var _ timewarp.Warper = (*GraphicsWarper)(nil)

// NewGraphicsWarper uploads meshes and builds the warp pipelines. ctx must
// be the warp goroutine's context.
func NewGraphicsWarper(ctx *Context, meshes *timewarp.DistortionMeshes, targets *EyeTargets, display *DisplayTarget) (*GraphicsWarper, error) {
	if ctx == nil || targets == nil || display == nil || meshes == nil {
		return nil, ErrNilDevice
	}
	w := &GraphicsWarper{
		ctx:        ctx,
		targets:    targets,
		display:    display,
		bindGroups: make(map[bindKey]hal.BindGroup),
	}
	if err := w.createPipelines(); err != nil {
		w.Destroy()
		return nil, err
	}
	if err := w.uploadMeshes(meshes); err != nil {
		w.Destroy()
		return nil, err
	}
	slogger().Debug("gpu: graphics warper created",
		"tiles", fmt.Sprintf("%dx%d", meshes.TilesWide, meshes.TilesHigh),
		"indices", w.indexCount)
	return w, nil
}

// Name implements timewarp.Warper.
func (w *GraphicsWarper) Name() string { return "graphics" }

// SetLogger sets the logger for the GPU package.
func (w *GraphicsWarper) SetLogger(l *slog.Logger) { setLogger(l) }

// LastFence returns the fence of the most recent warp submission.
func (w *GraphicsWarper) LastFence() Fence { return w.last }

func (w *GraphicsWarper) createPipelines() error {
	device := w.ctx.dev.device

	shader, err := createShaderModule(device, "warp_graphics", warpGraphicsShaderSource)
	if err != nil {
		return err
	}
	w.shader = shader

	w.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "warp_graphics_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2DArray,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}

	w.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "warp_graphics_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{w.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	if w.chromatic, err = w.createPipeline("fs_chromatic"); err != nil {
		return err
	}
	if w.spatial, err = w.createPipeline("fs_spatial"); err != nil {
		return err
	}

	w.sampler, err = createEyeSampler(device)
	return err
}

func (w *GraphicsWarper) createPipeline(fragmentEntry string) (hal.RenderPipeline, error) {
	p, err := w.ctx.dev.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "warp_graphics_" + fragmentEntry,
		Layout: w.pipeLayout,
		Vertex: hal.VertexState{
			Module:     w.shader,
			EntryPoint: "vs_main",
			Buffers:    meshVertexLayout(),
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     w.shader,
			EntryPoint: fragmentEntry,
			Targets: []gputypes.ColorTargetState{
				{Format: DisplayFormat, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create render pipeline %s: %w", fragmentEntry, err)
	}
	return p, nil
}

// meshVertexLayout returns the vertex buffer layout of the distortion mesh.
func meshVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: meshVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},  // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},  // red
				{Format: gputypes.VertexFormatFloat32x2, Offset: 16, ShaderLocation: 2}, // green
				{Format: gputypes.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 3}, // blue
			},
		},
	}
}

// meshVertices interleaves one eye's grids with the clip-space position of
// each vertex on the whole display. The left eye covers x in [-1, 0] and
// the right eye [0, 1].
func meshVertices(m *timewarp.DistortionMeshes, eye timewarp.Eye) []float32 {
	out := make([]float32, 0, m.VertexCount()*meshVertexStride/4)
	for y := 0; y <= m.TilesHigh; y++ {
		for x := 0; x <= m.TilesWide; x++ {
			px := -1 + 2*scanFraction(eye, x, m.TilesWide)
			py := 1 - 2*float32(y)/float32(m.TilesHigh)
			out = append(out, px, py)
			for ch := range timewarp.NumColorChannels {
				c := m.Vertex(eye, timewarp.ColorChannel(ch), x, y)
				out = append(out, c[0], c[1])
			}
		}
	}
	return out
}

func (w *GraphicsWarper) uploadMeshes(m *timewarp.DistortionMeshes) error {
	dev := w.ctx.dev
	limits := gputypes.DefaultLimits()
	vertexBytes := uint64(m.VertexCount()) * meshVertexStride //nolint:gosec // mesh sizes are small
	indices := m.Indices()
	if vertexBytes > limits.MaxBufferSize || uint64(len(indices))*4 > limits.MaxBufferSize {
		return fmt.Errorf("%w: %dx%d tiles", ErrMeshTooLarge, m.TilesWide, m.TilesHigh)
	}

	var err error
	for eye := range timewarp.NumEyes {
		w.vertexBufs[eye], err = createBuffer(dev.device, fmt.Sprintf("warp_mesh_%s", timewarp.Eye(eye)), vertexBytes,
			gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		if err = dev.WriteBuffer(w.vertexBufs[eye], 0, float32Bytes(meshVertices(m, timewarp.Eye(eye)))); err != nil {
			return err
		}
		w.uniforms[eye], err = createBuffer(dev.device, fmt.Sprintf("warp_params_%s", timewarp.Eye(eye)), graphicsParamsSize,
			gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
		if err != nil {
			return err
		}
	}

	w.indexBuf, err = createBuffer(dev.device, "warp_mesh_indices", uint64(len(indices))*4,
		gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	if err = dev.WriteBuffer(w.indexBuf, 0, uint32Bytes(indices)); err != nil {
		return err
	}
	w.indexCount = uint32(len(indices)) //nolint:gosec // bounded by MaxBufferSize
	return nil
}

// bindGroup returns the cached bind group sampling the eye texture ref
// names, creating it on first use.
func (w *GraphicsWarper) bindGroup(ref timewarp.TextureRef, eye timewarp.Eye) (hal.BindGroup, error) {
	key := keyFor(ref, eye)
	if bg, ok := w.bindGroups[key]; ok {
		return bg, nil
	}
	view, err := w.targets.SampleView(ref, eye)
	if err != nil {
		return nil, err
	}
	bg, err := w.ctx.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  fmt.Sprintf("warp_graphics_%d_%s", ref.Slot, eye),
		Layout: w.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: w.uniforms[eye].NativeHandle(), Size: graphicsParamsSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: w.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	w.bindGroups[key] = bg
	return bg, nil
}

// Warp implements timewarp.Warper. It records one render pass over the
// whole display, one indexed draw per eye viewport, and submits it.
func (w *GraphicsWarper) Warp(in timewarp.WarpInput) error {
	var groups [timewarp.NumEyes]hal.BindGroup
	for eye := range timewarp.NumEyes {
		e := timewarp.Eye(eye)
		bg, err := w.bindGroup(in.Frame.Textures[eye], e)
		if err != nil {
			return err
		}
		groups[eye] = bg
		params := packGraphicsParams(in.Transforms[eye], eyeLayer(&in.Frame, e))
		if err := w.ctx.dev.WriteBuffer(w.uniforms[eye], 0, params); err != nil {
			return err
		}
	}

	encoder, err := w.ctx.Begin()
	if err != nil {
		return err
	}
	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "warp_graphics",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       w.display.View(),
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	if in.Toggles.Chromatic {
		pass.SetPipeline(w.chromatic)
	} else {
		pass.SetPipeline(w.spatial)
	}
	pass.SetIndexBuffer(w.indexBuf, gputypes.IndexFormatUint32, 0)

	width, height := w.display.Size()
	pass.SetViewport(0, 0, float32(width), float32(height), 0, 1)
	for eye := range timewarp.NumEyes {
		pass.SetBindGroup(0, groups[eye], nil)
		pass.SetVertexBuffer(0, w.vertexBufs[eye], 0)
		pass.DrawIndexed(w.indexCount, 1, 0, 0, 0)
	}
	pass.End()

	fence, err := w.ctx.Submit()
	if err != nil {
		return err
	}
	w.last = fence
	return nil
}

// Destroy releases all GPU resources held by the warper. Safe to call on a
// partially constructed warper.
func (w *GraphicsWarper) Destroy() {
	if w.ctx == nil || w.ctx.dev.device == nil {
		return
	}
	device := w.ctx.dev.device
	if w.ctx.InFlight() > 0 {
		if err := w.ctx.dev.WaitIdle(); err != nil {
			slogger().Warn("gpu: wait idle failed", "warper", w.Name(), "err", err)
		}
	}
	for k, bg := range w.bindGroups {
		device.DestroyBindGroup(bg)
		delete(w.bindGroups, k)
	}
	for eye := range timewarp.NumEyes {
		if w.vertexBufs[eye] != nil {
			device.DestroyBuffer(w.vertexBufs[eye])
			w.vertexBufs[eye] = nil
		}
		if w.uniforms[eye] != nil {
			device.DestroyBuffer(w.uniforms[eye])
			w.uniforms[eye] = nil
		}
	}
	if w.indexBuf != nil {
		device.DestroyBuffer(w.indexBuf)
		w.indexBuf = nil
	}
	if w.sampler != nil {
		device.DestroySampler(w.sampler)
		w.sampler = nil
	}
	for _, p := range []*hal.RenderPipeline{&w.chromatic, &w.spatial} {
		if *p != nil {
			device.DestroyRenderPipeline(*p)
			*p = nil
		}
	}
	if w.pipeLayout != nil {
		device.DestroyPipelineLayout(w.pipeLayout)
		w.pipeLayout = nil
	}
	if w.bindLayout != nil {
		device.DestroyBindGroupLayout(w.bindLayout)
		w.bindLayout = nil
	}
	if w.shader != nil {
		device.DestroyShaderModule(w.shader)
		w.shader = nil
	}
}
