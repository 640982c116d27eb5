//go:build !nogpu

package gpu

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/timewarp"
)

// ComputeWarper warps with two compute passes per eye: the first
// reprojects every mesh vertex into a storage buffer, the second writes
// each display pixel by interpolating the reprojected coordinates of its
// tile and sampling the eye texture.
type ComputeWarper struct {
	ctx     *Context
	targets *EyeTargets
	display *DisplayTarget

	tilesWide, tilesHigh uint32

	transformShader hal.ShaderModule
	resampleShader  hal.ShaderModule
	transformLayout hal.BindGroupLayout
	resampleLayout  hal.BindGroupLayout
	transformPipe   hal.PipelineLayout
	resamplePipe    hal.PipelineLayout
	transform       hal.ComputePipeline
	chromatic       hal.ComputePipeline
	spatial         hal.ComputePipeline
	sampler         hal.Sampler

	meshBufs    [timewarp.NumEyes]hal.Buffer
	warpedBufs  [timewarp.NumEyes]hal.Buffer
	uniforms    [timewarp.NumEyes]hal.Buffer
	transformBG [timewarp.NumEyes]hal.BindGroup
	meshBytes   uint64

	resampleBG map[bindKey]hal.BindGroup
	last       Fence
}

var _ timewarp.Warper = (*ComputeWarper)(nil)

// NewComputeWarper uploads meshes and builds the compute pipelines. ctx
// must be the warp goroutine's context.
func NewComputeWarper(ctx *Context, meshes *timewarp.DistortionMeshes, targets *EyeTargets, display *DisplayTarget) (*ComputeWarper, error) {
	if ctx == nil || targets == nil || display == nil || meshes == nil {
		return nil, ErrNilDevice
	}
	limits := gputypes.DefaultLimits()
	cols, rows := uint32(meshes.TilesWide+1), uint32(meshes.TilesHigh+1) //nolint:gosec // validated mesh sizes
	eyeW, eyeH := display.EyeSize()
	if workgroups(cols) > limits.MaxComputeWorkgroupsPerDimension ||
		workgroups(rows) > limits.MaxComputeWorkgroupsPerDimension ||
		workgroups(eyeW) > limits.MaxComputeWorkgroupsPerDimension ||
		workgroups(eyeH) > limits.MaxComputeWorkgroupsPerDimension {
		return nil, fmt.Errorf("%w: %dx%d tiles on %dx%d eye", ErrMeshTooLarge, meshes.TilesWide, meshes.TilesHigh, eyeW, eyeH)
	}

	w := &ComputeWarper{
		ctx:        ctx,
		targets:    targets,
		display:    display,
		tilesWide:  uint32(meshes.TilesWide), //nolint:gosec // validated mesh sizes
		tilesHigh:  uint32(meshes.TilesHigh), //nolint:gosec // validated mesh sizes
		meshBytes:  uint64(meshes.VertexCount()) * timewarp.NumColorChannels * 8,
		resampleBG: make(map[bindKey]hal.BindGroup),
	}
	if w.meshBytes > limits.MaxStorageBufferBindingSize {
		return nil, fmt.Errorf("%w: %d byte mesh", ErrMeshTooLarge, w.meshBytes)
	}
	if err := w.createPipelines(); err != nil {
		w.Destroy()
		return nil, err
	}
	if err := w.uploadMeshes(meshes); err != nil {
		w.Destroy()
		return nil, err
	}
	slogger().Debug("gpu: compute warper created",
		"tiles", fmt.Sprintf("%dx%d", meshes.TilesWide, meshes.TilesHigh))
	return w, nil
}

// Name implements timewarp.Warper.
func (w *ComputeWarper) Name() string { return "compute" }

// SetLogger sets the logger for the GPU package.
func (w *ComputeWarper) SetLogger(l *slog.Logger) { setLogger(l) }

// LastFence returns the fence of the most recent warp submission.
func (w *ComputeWarper) LastFence() Fence { return w.last }

func (w *ComputeWarper) createPipelines() error {
	device := w.ctx.dev.device
	var err error

	if w.transformShader, err = createShaderModule(device, "warp_transform", warpTransformShaderSource); err != nil {
		return err
	}
	if w.resampleShader, err = createShaderModule(device, "warp_resample", warpResampleShaderSource); err != nil {
		return err
	}

	w.transformLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "warp_transform_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create transform bind group layout: %w", err)
	}

	w.resampleLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "warp_resample_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageCompute,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2DArray,
				},
			},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Sampler: &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}},
			{
				Binding:    4,
				Visibility: gputypes.ShaderStageCompute,
				StorageTexture: &gputypes.StorageTextureBindingLayout{
					Access:        gputypes.StorageTextureAccessWriteOnly,
					Format:        DisplayFormat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create resample bind group layout: %w", err)
	}

	if w.transformPipe, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "warp_transform_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{w.transformLayout},
	}); err != nil {
		return fmt.Errorf("create transform pipeline layout: %w", err)
	}
	if w.resamplePipe, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "warp_resample_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{w.resampleLayout},
	}); err != nil {
		return fmt.Errorf("create resample pipeline layout: %w", err)
	}

	if w.transform, err = w.createPipeline("warp_transform", w.transformPipe, w.transformShader, "main"); err != nil {
		return err
	}
	if w.chromatic, err = w.createPipeline("warp_resample_chromatic", w.resamplePipe, w.resampleShader, "main_chromatic"); err != nil {
		return err
	}
	if w.spatial, err = w.createPipeline("warp_resample_spatial", w.resamplePipe, w.resampleShader, "main_spatial"); err != nil {
		return err
	}

	w.sampler, err = createEyeSampler(device)
	return err
}

func (w *ComputeWarper) createPipeline(label string, layout hal.PipelineLayout, module hal.ShaderModule, entry string) (hal.ComputePipeline, error) {
	p, err := w.ctx.dev.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   label,
		Layout:  layout,
		Compute: hal.ComputeState{Module: module, EntryPoint: entry},
	})
	if err != nil {
		return nil, fmt.Errorf("create compute pipeline %s: %w", label, err)
	}
	return p, nil
}

// meshCoords packs one eye's red, green and blue grids back to back.
func meshCoords(m *timewarp.DistortionMeshes, eye timewarp.Eye) []float32 {
	out := make([]float32, 0, m.VertexCount()*timewarp.NumColorChannels*2)
	for ch := range timewarp.NumColorChannels {
		for _, c := range m.Coords[eye][ch] {
			out = append(out, c[0], c[1])
		}
	}
	return out
}

func (w *ComputeWarper) uploadMeshes(m *timewarp.DistortionMeshes) error {
	dev := w.ctx.dev
	var err error
	for eye := range timewarp.NumEyes {
		name := timewarp.Eye(eye).String()
		if w.meshBufs[eye], err = createBuffer(dev.device, "warp_mesh_"+name, w.meshBytes,
			gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst); err != nil {
			return err
		}
		if err = dev.WriteBuffer(w.meshBufs[eye], 0, float32Bytes(meshCoords(m, timewarp.Eye(eye)))); err != nil {
			return err
		}
		if w.warpedBufs[eye], err = createBuffer(dev.device, "warp_warped_"+name, w.meshBytes,
			gputypes.BufferUsageStorage); err != nil {
			return err
		}
		if w.uniforms[eye], err = createBuffer(dev.device, "warp_params_"+name, computeParamsSize,
			gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst); err != nil {
			return err
		}
		w.transformBG[eye], err = dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "warp_transform_" + name,
			Layout: w.transformLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{Buffer: w.uniforms[eye].NativeHandle(), Size: computeParamsSize}},
				{Binding: 1, Resource: gputypes.BufferBinding{Buffer: w.meshBufs[eye].NativeHandle(), Size: w.meshBytes}},
				{Binding: 2, Resource: gputypes.BufferBinding{Buffer: w.warpedBufs[eye].NativeHandle(), Size: w.meshBytes}},
			},
		})
		if err != nil {
			return fmt.Errorf("create transform bind group: %w", err)
		}
	}
	return nil
}

// resampleBindGroup returns the cached bind group sampling the eye texture
// ref names, creating it on first use.
func (w *ComputeWarper) resampleBindGroup(ref timewarp.TextureRef, eye timewarp.Eye) (hal.BindGroup, error) {
	key := keyFor(ref, eye)
	if bg, ok := w.resampleBG[key]; ok {
		return bg, nil
	}
	view, err := w.targets.SampleView(ref, eye)
	if err != nil {
		return nil, err
	}
	bg, err := w.ctx.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  fmt.Sprintf("warp_resample_%d_%s", ref.Slot, eye),
		Layout: w.resampleLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: w.uniforms[eye].NativeHandle(), Size: computeParamsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: w.warpedBufs[eye].NativeHandle(), Size: w.meshBytes}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 3, Resource: gputypes.SamplerBinding{Sampler: w.sampler.NativeHandle()}},
			{Binding: 4, Resource: gputypes.TextureViewBinding{TextureView: w.display.View().NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create resample bind group: %w", err)
	}
	w.resampleBG[key] = bg
	return bg, nil
}

// Warp implements timewarp.Warper. Each eye gets a transform pass over its
// mesh vertices followed by a resample pass over its half of the display.
func (w *ComputeWarper) Warp(in timewarp.WarpInput) error {
	eyeW, eyeH := w.display.EyeSize()
	var groups [timewarp.NumEyes]hal.BindGroup
	for eye := range timewarp.NumEyes {
		e := timewarp.Eye(eye)
		bg, err := w.resampleBindGroup(in.Frame.Textures[eye], e)
		if err != nil {
			return err
		}
		groups[eye] = bg
		grid := computeGrid{
			tilesWide: w.tilesWide,
			tilesHigh: w.tilesHigh,
			eye:       uint32(eye), //nolint:gosec // eye is 0 or 1
			destX:     uint32(eye) * eyeW, //nolint:gosec // eye is 0 or 1
			destY:     0,
			width:     eyeW,
			height:    eyeH,
		}
		params := packComputeParams(in.Transforms[eye], grid, eyeLayer(&in.Frame, e))
		if err := w.ctx.dev.WriteBuffer(w.uniforms[eye], 0, params); err != nil {
			return err
		}
	}

	encoder, err := w.ctx.Begin()
	if err != nil {
		return err
	}
	resample := w.spatial
	if in.Toggles.Chromatic {
		resample = w.chromatic
	}
	for eye := range timewarp.NumEyes {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "warp_transform"})
		pass.SetPipeline(w.transform)
		pass.SetBindGroup(0, w.transformBG[eye], nil)
		pass.Dispatch(workgroups(w.tilesWide+1), workgroups(w.tilesHigh+1), timewarp.NumColorChannels)
		pass.End()

		pass = encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "warp_resample"})
		pass.SetPipeline(resample)
		pass.SetBindGroup(0, groups[eye], nil)
		pass.Dispatch(workgroups(eyeW), workgroups(eyeH), 1)
		pass.End()
	}

	fence, err := w.ctx.Submit()
	if err != nil {
		return err
	}
	w.last = fence
	return nil
}

// Destroy releases all GPU resources held by the warper. Safe to call on a
// partially constructed warper.
func (w *ComputeWarper) Destroy() {
	if w.ctx == nil || w.ctx.dev.device == nil {
		return
	}
	device := w.ctx.dev.device
	if w.ctx.InFlight() > 0 {
		if err := w.ctx.dev.WaitIdle(); err != nil {
			slogger().Warn("gpu: wait idle failed", "warper", w.Name(), "err", err)
		}
	}
	for k, bg := range w.resampleBG {
		device.DestroyBindGroup(bg)
		delete(w.resampleBG, k)
	}
	for eye := range timewarp.NumEyes {
		if w.transformBG[eye] != nil {
			device.DestroyBindGroup(w.transformBG[eye])
			w.transformBG[eye] = nil
		}
		for _, b := range []*hal.Buffer{&w.meshBufs[eye], &w.warpedBufs[eye], &w.uniforms[eye]} {
			if *b != nil {
				device.DestroyBuffer(*b)
				*b = nil
			}
		}
	}
	if w.sampler != nil {
		device.DestroySampler(w.sampler)
		w.sampler = nil
	}
	for _, p := range []*hal.ComputePipeline{&w.transform, &w.chromatic, &w.spatial} {
		if *p != nil {
			device.DestroyComputePipeline(*p)
			*p = nil
		}
	}
	for _, l := range []*hal.PipelineLayout{&w.transformPipe, &w.resamplePipe} {
		if *l != nil {
			device.DestroyPipelineLayout(*l)
			*l = nil
		}
	}
	for _, l := range []*hal.BindGroupLayout{&w.transformLayout, &w.resampleLayout} {
		if *l != nil {
			device.DestroyBindGroupLayout(*l)
			*l = nil
		}
	}
	for _, m := range []*hal.ShaderModule{&w.transformShader, &w.resampleShader} {
		if *m != nil {
			device.DestroyShaderModule(*m)
			*m = nil
		}
	}
}
