//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DisplayTarget is the offscreen image the warpers write. The left eye
// covers the left half and the right eye the right half. The graphics
// warper renders into it and the compute warper stores into it, so it is
// created with both usages.
type DisplayTarget struct {
	dev           *Device
	width, height uint32
	texture       hal.Texture
	view          hal.TextureView
}

// NewDisplayTarget creates a width x height display image. Width must be
// even so both eyes get the same number of columns.
func NewDisplayTarget(dev *Device, width, height int) (*DisplayTarget, error) {
	if dev == nil || dev.device == nil {
		return nil, ErrNilDevice
	}
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("%w: display %dx%d", ErrBadTexture, width, height)
	}
	d := &DisplayTarget{
		dev:    dev,
		width:  uint32(width),  //nolint:gosec // checked positive above
		height: uint32(height), //nolint:gosec // checked positive above
	}
	tex, err := dev.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "display",
		Size:          hal.Extent3D{Width: d.width, Height: d.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        DisplayFormat,
		Usage: gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageStorageBinding |
			gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create display texture: %w", err)
	}
	d.texture = tex
	view, err := dev.device.CreateTextureView(tex, viewDesc(gputypes.TextureViewDimension2D, 0, 1))
	if err != nil {
		dev.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create display view: %w", err)
	}
	d.view = view
	return d, nil
}

// Size returns the display size in pixels.
func (d *DisplayTarget) Size() (width, height int) { return int(d.width), int(d.height) }

// EyeSize returns the size of one eye's half of the display.
func (d *DisplayTarget) EyeSize() (width, height uint32) { return d.width / 2, d.height }

// Texture returns the display texture, for copying out or presenting.
func (d *DisplayTarget) Texture() hal.Texture { return d.texture }

// View returns the view used both as render attachment and storage image.
func (d *DisplayTarget) View() hal.TextureView { return d.view }

// Destroy releases the texture.
func (d *DisplayTarget) Destroy() {
	if d.dev == nil || d.dev.device == nil {
		return
	}
	destroyView(d.dev.device, d.view)
	if d.texture != nil {
		d.dev.device.DestroyTexture(d.texture)
	}
	d.view, d.texture = nil, nil
}
