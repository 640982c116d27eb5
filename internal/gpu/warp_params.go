//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/timewarp"
)

// Uniform block sizes. Layouts match the WarpParams structs in the shaders:
//
//	start mat4x4<f32>  64 bytes
//	end   mat4x4<f32>  64 bytes
//	graphics: layer u32 + 3 pad        16 bytes
//	compute:  grid vec4<u32> + dest vec4<u32>  32 bytes
//
// grid is tiles wide, tiles high, array layer, eye.
const (
	graphicsParamsSize = 144
	computeParamsSize  = 160
)

// bindKey identifies the eye texture a cached bind group samples.
type bindKey struct {
	slot    int
	layered bool
	eye     timewarp.Eye
}

func keyFor(ref timewarp.TextureRef, eye timewarp.Eye) bindKey {
	return bindKey{slot: ref.Slot, layered: ref.Layered, eye: eye}
}

// eyeLayer returns the array layer eye is sampled from.
func eyeLayer(frame *timewarp.EyeFrame, eye timewarp.Eye) uint32 {
	if !frame.Textures[eye].Layered {
		return 0
	}
	layer := frame.ArrayLayers[eye]
	if layer < 0 || layer >= timewarp.NumEyes {
		return 0
	}
	return uint32(layer) //nolint:gosec // range checked above
}

// putMat4 writes m in column-major order, which is both mgl32's storage
// order and WGSL's.
func putMat4(buf []byte, m mgl32.Mat4) {
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}

func packGraphicsParams(t timewarp.WarpTransform, layer uint32) []byte {
	buf := make([]byte, graphicsParamsSize)
	putMat4(buf[0:64], t.Start)
	putMat4(buf[64:128], t.End)
	binary.LittleEndian.PutUint32(buf[128:132], layer)
	return buf
}

// computeGrid is the per-eye dispatch geometry of the compute warp.
type computeGrid struct {
	tilesWide, tilesHigh uint32
	eye                  uint32
	destX, destY         uint32
	width, height        uint32
}

func packComputeParams(t timewarp.WarpTransform, g computeGrid, layer uint32) []byte {
	buf := make([]byte, computeParamsSize)
	putMat4(buf[0:64], t.Start)
	putMat4(buf[64:128], t.End)
	words := [8]uint32{
		g.tilesWide, g.tilesHigh, layer, g.eye,
		g.destX, g.destY, g.width, g.height,
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[128+i*4:], w)
	}
	return buf
}

// scanFraction is how far through display scanout grid column x of eye
// is, from 0 at the left edge of the left eye to 1 at the right edge of the
// right eye. Both warp shaders blend the start and end transforms by it.
func scanFraction(eye timewarp.Eye, x, tilesWide int) float32 {
	return float32(int(eye)*tilesWide+x) / float32(timewarp.NumEyes*tilesWide)
}

// workgroups returns how many 8-wide workgroups cover n invocations.
func workgroups(n uint32) uint32 { return (n + 7) / 8 }

// createEyeSampler creates the bilinear clamp-to-edge sampler both warpers
// read eye textures with.
func createEyeSampler(device hal.Device) (hal.Sampler, error) {
	s, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "eye_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
		LodMinClamp:  0,
		LodMaxClamp:  32,
	})
	if err != nil {
		return nil, fmt.Errorf("create eye sampler: %w", err)
	}
	return s, nil
}

func createBuffer(device hal.Device, label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %s: %w", label, err)
	}
	return buf, nil
}

func float32Bytes(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func uint32Bytes(values []uint32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}
