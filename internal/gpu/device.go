//go:build !nogpu

package gpu

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DisplayFormat is the pixel format of eye textures and the display target.
// It is RGBA8 so the compute warper can write it as a storage texture.
const DisplayFormat = gputypes.TextureFormatRGBA8Unorm

// Device is a hal.Device and its queue shared by the scene and warp
// goroutines. Resource creation goes straight to the device; queue access
// is serialized.
//
// Device implements gpucontext.DeviceProvider and exposes HalDevice and
// HalQueue so it can be handed to other gogpu consumers.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	info     gputypes.AdapterInfo

	external bool // true when the device came from a provider (don't destroy on Close)
}

var _ gpucontext.DeviceProvider = (*Device)(nil)

// ParseBackend maps a backend name to its HAL variant. "software" and
// "noop" both map to gputypes.BackendEmpty; whichever of the two packages
// is linked in serves it.
func ParseBackend(name string) (gputypes.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vulkan", "vk":
		return gputypes.BackendVulkan, nil
	case "metal", "mtl":
		return gputypes.BackendMetal, nil
	case "dx12", "d3d12":
		return gputypes.BackendDX12, nil
	case "gles", "gl", "opengl":
		return gputypes.BackendGL, nil
	case "software", "noop", "empty":
		return gputypes.BackendEmpty, nil
	default:
		return gputypes.BackendEmpty, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// Open creates an instance of a registered backend and opens its best
// adapter, preferring discrete and integrated GPUs.
func Open(backend gputypes.Backend) (*Device, error) {
	b, ok := hal.GetBackend(backend)
	if !ok {
		return nil, fmt.Errorf("%w: %s backend not available", ErrUnknownBackend, backend)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	slogger().Info("gpu: device opened", "adapter", selected.Info.Name, "backend", backend)
	return &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		info:     selected.Info,
	}, nil
}

// NewDevice wraps an existing device and queue. Close does not destroy
// them.
func NewDevice(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	return &Device{device: device, queue: queue, external: true}, nil
}

// NewDeviceFromProvider wraps the HAL device of an external provider. The
// provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func NewDeviceFromProvider(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device: %w", ErrNilDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue: %w", ErrNilDevice)
	}
	d, err := NewDevice(device, queue)
	if err != nil {
		return nil, err
	}
	if dp, ok := provider.(gpucontext.DeviceProvider); ok {
		info := dp.AdapterInfo()
		d.info.Name = info.Name
	}
	return d, nil
}

// HalDevice returns the hal.Device.
func (d *Device) HalDevice() any { return d.device }

// HalQueue returns the hal.Queue.
func (d *Device) HalQueue() any { return d.queue }

// Device implements gpucontext.DeviceProvider.
func (d *Device) Device() gpucontext.Device { return d.device }

// Queue implements gpucontext.DeviceProvider.
func (d *Device) Queue() gpucontext.Queue { return d.queue }

// SurfaceFormat implements gpucontext.DeviceProvider.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return DisplayFormat }

// Adapter implements gpucontext.DeviceProvider. The adapter is not kept
// after the device is opened.
func (d *Device) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo implements gpucontext.DeviceProvider.
func (d *Device) AdapterInfo() gpucontext.AdapterInfo {
	t := gpucontext.AdapterTypeUnknown
	switch d.info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		t = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		t = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		t = gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterInfo{Name: d.info.Name, Type: t}
}

// Submit queues command buffers and returns a fence for their completion.
func (d *Device) Submit(cmds ...hal.CommandBuffer) (Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	index, err := d.queue.Submit(cmds)
	if err != nil {
		return Fence{}, fmt.Errorf("submit: %w", err)
	}
	return Fence{dev: d, index: index}, nil
}

// Completed returns the highest submission index the GPU has finished.
// After Close every submission counts as finished.
func (d *Device) Completed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue == nil {
		return math.MaxUint64
	}
	return d.queue.PollCompleted()
}

// WriteBuffer uploads data through the queue.
func (d *Device) WriteBuffer(buf hal.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.queue.WriteBuffer(buf, offset, data); err != nil {
		return fmt.Errorf("write buffer: %w", err)
	}
	return nil
}

// WaitIdle blocks until all submitted work has finished. Only used on
// shutdown.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device.WaitIdle()
}

// Close destroys the device and instance if Open created them.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.external {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
}

// Fence is the completion point of one queue submission. The zero Fence
// is always signalled.
type Fence struct {
	dev   *Device
	index uint64
}

// Signalled reports whether the submission has finished. It polls the
// queue and never blocks on the GPU.
func (f Fence) Signalled() bool {
	return f.dev == nil || f.dev.Completed() >= f.index
}

// Index returns the submission index.
func (f Fence) Index() uint64 { return f.index }
