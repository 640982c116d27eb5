//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// Context is one goroutine's view of a shared Device: its own command
// encoder plus the command buffers it submitted that the GPU may still be
// reading. The scene and the warp scheduler each own one.
//
// A Context must only be used from the goroutine that owns it.
type Context struct {
	dev     *Device
	label   string
	encoder hal.CommandEncoder

	encoding bool
	inFlight []inFlightCmd
}

type inFlightCmd struct {
	cmd   hal.CommandBuffer
	fence Fence
}

// NewContext creates a context with its own command encoder.
func NewContext(dev *Device, label string) (*Context, error) {
	if dev == nil || dev.device == nil {
		return nil, ErrNilDevice
	}
	encoder, err := dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	return &Context{dev: dev, label: label, encoder: encoder}, nil
}

// Device returns the shared device.
func (c *Context) Device() *Device { return c.dev }

// Begin starts recording and returns the encoder. Every Begin must be
// followed by Submit or Discard.
func (c *Context) Begin() (hal.CommandEncoder, error) {
	if c.encoding {
		return nil, fmt.Errorf("gpu: %s context already recording", c.label)
	}
	c.reclaim()
	if err := c.encoder.BeginEncoding(c.label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	c.encoding = true
	return c.encoder, nil
}

// Submit finishes recording, submits the commands and returns their fence.
func (c *Context) Submit() (Fence, error) {
	if !c.encoding {
		return Fence{}, fmt.Errorf("gpu: %s context not recording", c.label)
	}
	c.encoding = false
	cmd, err := c.encoder.EndEncoding()
	if err != nil {
		return Fence{}, fmt.Errorf("end encoding: %w", err)
	}
	fence, err := c.dev.Submit(cmd)
	if err != nil {
		c.dev.device.FreeCommandBuffer(cmd)
		return Fence{}, err
	}
	c.inFlight = append(c.inFlight, inFlightCmd{cmd: cmd, fence: fence})
	return fence, nil
}

// Discard abandons the current recording.
func (c *Context) Discard() {
	if c.encoding {
		c.encoder.DiscardEncoding()
		c.encoding = false
	}
}

// InFlight returns the number of submitted command buffers not yet known
// to be complete.
func (c *Context) InFlight() int { return len(c.inFlight) }

// reclaim frees command buffers whose submissions have completed.
func (c *Context) reclaim() {
	if len(c.inFlight) == 0 {
		return
	}
	done := c.dev.Completed()
	n := 0
	for _, f := range c.inFlight {
		if f.fence.index <= done {
			c.dev.device.FreeCommandBuffer(f.cmd)
			continue
		}
		c.inFlight[n] = f
		n++
	}
	clear(c.inFlight[n:])
	c.inFlight = c.inFlight[:n]
}

// Destroy waits for the GPU to go idle and releases the encoder and every
// in-flight command buffer.
func (c *Context) Destroy() {
	if c.dev == nil || c.dev.device == nil {
		return
	}
	c.Discard()
	if len(c.inFlight) > 0 {
		if err := c.dev.WaitIdle(); err != nil {
			slogger().Warn("gpu: wait idle failed", "context", c.label, "err", err)
		}
		for _, f := range c.inFlight {
			c.dev.device.FreeCommandBuffer(f.cmd)
		}
		c.inFlight = nil
	}
	if c.encoder != nil {
		c.encoder.Destroy()
		c.encoder = nil
	}
}
