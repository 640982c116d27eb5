package timewarp

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultEyeRingSize is the number of eye texture sets a scene needs: one
// on display, one waiting in the exchange and one being rendered.
const DefaultEyeRingSize = 3

// Fence reports GPU completion of the work that produced an eye texture.
// Signalled must not block.
type Fence interface {
	Signalled() bool
}

// TextureRef names an eye texture by its slot in the scene's texture ring.
// It does not own the texture; the slot stays valid until the scene reuses
// it, which the exchange backpressure keeps from happening while the frame
// can still be displayed.
type TextureRef struct {
	Slot int

	// Layered selects the slot's two-layer array texture instead of the
	// per-eye texture. Multi-view scenes render both eyes into it.
	Layered bool
}

// EyeFrame is one completed stereo frame handed from the scene to the
// warp scheduler.
type EyeFrame struct {
	// Index is assigned by the exchange, strictly increasing from 1.
	Index uint64

	// FrameIndex is the scene's frame counter the frame was predicted for.
	FrameIndex int64

	// DisplayTime is when the scene expected this frame to be on screen.
	DisplayTime time.Time

	// View and Projection are the matrices the eyes were rendered with.
	View       mgl32.Mat4
	Projection mgl32.Mat4

	Textures    [NumEyes]TextureRef
	ArrayLayers [NumEyes]int
	Fences      [NumEyes]Fence

	// CPUTime and GPUTime are how long the scene spent on the frame.
	CPUTime time.Duration
	GPUTime time.Duration
}

// Completed reports whether both eye fences are signalled. A nil fence
// counts as signalled.
func (f *EyeFrame) Completed() bool {
	for _, fence := range f.Fences {
		if fence != nil && !fence.Signalled() {
			return false
		}
	}
	return true
}

// EyeRing hands out texture ring slots round-robin. It is owned by the
// scene goroutine.
type EyeRing struct {
	size int
	next int
}

// NewEyeRing creates a ring of size slots. Sizes below DefaultEyeRingSize
// are raised to it.
func NewEyeRing(size int) *EyeRing {
	return &EyeRing{size: max(size, DefaultEyeRingSize)}
}

// Next returns the slot to render the next frame into.
func (r *EyeRing) Next() TextureRef {
	ref := TextureRef{Slot: r.next}
	r.next = (r.next + 1) % r.size
	return ref
}

// NextExcept returns the next slot that none of busy names, skipping busy
// slots. Pass Exchange.Displayed. If every slot is busy it behaves like
// Next.
func (r *EyeRing) NextExcept(busy ...TextureRef) TextureRef {
	for range r.size {
		ref := r.Next()
		if !slotIn(ref.Slot, busy) {
			return ref
		}
	}
	return r.Next()
}

func slotIn(slot int, refs []TextureRef) bool {
	for _, ref := range refs {
		if ref.Slot == slot {
			return true
		}
	}
	return false
}

// Size returns the number of slots.
func (r *EyeRing) Size() int { return r.size }
