//go:build !nogpu

// Package gpu implements the time-warp GPU side on gogpu/wgpu HAL devices.
//
// This is an internal package used by timewarp. It runs on any hal.Device:
// Vulkan, Metal, DX12 and GLES through the platform backends, the software
// rasterizer, or the noop backend in tests.
//
// # Architecture Overview
//
//	scene goroutine                       warp goroutine
//	  Context ──► EyeTargets ──► Fence ──► Exchange ──► Warper ──► DisplayTarget
//
// Key components:
//
//   - Device: shared hal.Device and hal.Queue with a submission lock
//   - Context: per-goroutine command encoder and in-flight command buffers
//   - Fence: a queue submission index, polled without blocking
//   - EyeTargets: the scene's ring of eye textures, per-eye or layered
//   - GraphicsWarper: distortion mesh drawn with a render pipeline
//   - ComputeWarper: mesh transformed and resampled with compute pipelines
//   - SceneRenderer: a minimal clear-color scene used by the demo
//
// # Warp Shaders
//
// Both warpers interpolate between the start and end of scanout transforms
// by horizontal position within the eye and divide the projected
// coordinate by its z before sampling. Chromatic correction samples red,
// green and blue through separate distortion meshes.
//
// Shaders are WGSL, compiled to SPIR-V with gogpu/naga when the warpers are
// created.
package gpu
