//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/timewarp"
)

// EyeTargets is the scene's ring of eye textures. Every slot holds one
// texture per eye and one two-layer array texture for multi-view scenes,
// so a frame can be rendered either way without reallocating.
//
// The scene renders through RenderView and the warpers sample through
// SampleView. Sample views are always 2D arrays so both layouts share one
// bind group layout.
type EyeTargets struct {
	dev           *Device
	width, height uint32
	slots         []eyeSlot
}

type eyeSlot struct {
	eye        [timewarp.NumEyes]hal.Texture
	eyeRender  [timewarp.NumEyes]hal.TextureView
	eyeSample  [timewarp.NumEyes]hal.TextureView
	layered    hal.Texture
	layerViews [timewarp.NumEyes]hal.TextureView
	layerArray hal.TextureView
}

// NewEyeTargets allocates slots texture sets of width x height pixels per
// eye.
func NewEyeTargets(dev *Device, slots, width, height int) (*EyeTargets, error) {
	if dev == nil || dev.device == nil {
		return nil, ErrNilDevice
	}
	if slots <= 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %d slots of %dx%d", ErrBadTexture, slots, width, height)
	}

	t := &EyeTargets{
		dev:    dev,
		width:  uint32(width),  //nolint:gosec // checked positive above
		height: uint32(height), //nolint:gosec // checked positive above
		slots:  make([]eyeSlot, slots),
	}
	for i := range t.slots {
		if err := t.createSlot(i); err != nil {
			t.Destroy()
			return nil, fmt.Errorf("eye slot %d: %w", i, err)
		}
	}
	slogger().Debug("gpu: eye targets created", "slots", slots, "width", width, "height", height)
	return t, nil
}

func (t *EyeTargets) createSlot(i int) error {
	device := t.dev.device
	s := &t.slots[i]
	for eye := range timewarp.NumEyes {
		tex, err := device.CreateTexture(t.textureDesc(fmt.Sprintf("eye_%d_%s", i, timewarp.Eye(eye)), 1))
		if err != nil {
			return fmt.Errorf("create eye texture: %w", err)
		}
		s.eye[eye] = tex
		if s.eyeRender[eye], err = device.CreateTextureView(tex, viewDesc(gputypes.TextureViewDimension2D, 0, 1)); err != nil {
			return fmt.Errorf("create eye render view: %w", err)
		}
		if s.eyeSample[eye], err = device.CreateTextureView(tex, viewDesc(gputypes.TextureViewDimension2DArray, 0, 1)); err != nil {
			return fmt.Errorf("create eye sample view: %w", err)
		}
	}

	tex, err := device.CreateTexture(t.textureDesc(fmt.Sprintf("eye_%d_layered", i), timewarp.NumEyes))
	if err != nil {
		return fmt.Errorf("create layered texture: %w", err)
	}
	s.layered = tex
	for eye := range timewarp.NumEyes {
		if s.layerViews[eye], err = device.CreateTextureView(tex, viewDesc(gputypes.TextureViewDimension2D, uint32(eye), 1)); err != nil {
			return fmt.Errorf("create layer view: %w", err)
		}
	}
	if s.layerArray, err = device.CreateTextureView(tex, viewDesc(gputypes.TextureViewDimension2DArray, 0, timewarp.NumEyes)); err != nil {
		return fmt.Errorf("create layered sample view: %w", err)
	}
	return nil
}

func (t *EyeTargets) textureDesc(label string, layers uint32) *hal.TextureDescriptor {
	return &hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              t.width,
			Height:             t.height,
			DepthOrArrayLayers: layers,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        DisplayFormat,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment,
	}
}

func viewDesc(dim gputypes.TextureViewDimension, baseLayer, layers uint32) *hal.TextureViewDescriptor {
	return &hal.TextureViewDescriptor{
		Format:          DisplayFormat,
		Dimension:       dim,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  baseLayer,
		ArrayLayerCount: layers,
	}
}

// Slots returns the number of texture sets.
func (t *EyeTargets) Slots() int { return len(t.slots) }

// Size returns the per-eye texture size in pixels.
func (t *EyeTargets) Size() (width, height int) { return int(t.width), int(t.height) }

func (t *EyeTargets) slot(ref timewarp.TextureRef, eye timewarp.Eye) (*eyeSlot, error) {
	if ref.Slot < 0 || ref.Slot >= len(t.slots) || eye < 0 || int(eye) >= timewarp.NumEyes {
		return nil, fmt.Errorf("%w: slot %d eye %s", ErrBadTexture, ref.Slot, eye)
	}
	return &t.slots[ref.Slot], nil
}

// RenderView returns the 2D view the scene renders eye into. For a layered
// reference it is the eye's layer of the array texture.
func (t *EyeTargets) RenderView(ref timewarp.TextureRef, eye timewarp.Eye) (hal.TextureView, error) {
	s, err := t.slot(ref, eye)
	if err != nil {
		return nil, err
	}
	if ref.Layered {
		return s.layerViews[eye], nil
	}
	return s.eyeRender[eye], nil
}

// SampleView returns the 2D array view the warpers sample eye from. A
// per-eye texture is a one-layer array; a layered reference returns the
// whole array and the frame's ArrayLayers select the eye.
func (t *EyeTargets) SampleView(ref timewarp.TextureRef, eye timewarp.Eye) (hal.TextureView, error) {
	s, err := t.slot(ref, eye)
	if err != nil {
		return nil, err
	}
	if ref.Layered {
		return s.layerArray, nil
	}
	return s.eyeSample[eye], nil
}

// Destroy releases every texture and view.
func (t *EyeTargets) Destroy() {
	if t.dev == nil || t.dev.device == nil {
		return
	}
	device := t.dev.device
	for i := range t.slots {
		s := &t.slots[i]
		for eye := range timewarp.NumEyes {
			destroyView(device, s.eyeRender[eye])
			destroyView(device, s.eyeSample[eye])
			destroyView(device, s.layerViews[eye])
			if s.eye[eye] != nil {
				device.DestroyTexture(s.eye[eye])
			}
		}
		destroyView(device, s.layerArray)
		if s.layered != nil {
			device.DestroyTexture(s.layered)
		}
		*s = eyeSlot{}
	}
	t.slots = nil
}

func destroyView(device hal.Device, v hal.TextureView) {
	if v != nil {
		device.DestroyTextureView(v)
	}
}
