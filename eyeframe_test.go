package timewarp

import "testing"

func TestEyeRingNext(t *testing.T) {
	r := NewEyeRing(1)
	if r.Size() != DefaultEyeRingSize {
		t.Fatalf("Size = %d, want %d", r.Size(), DefaultEyeRingSize)
	}
	for i := range 2 * r.Size() {
		if got := r.Next().Slot; got != i%r.Size() {
			t.Errorf("Next %d = %d, want %d", i, got, i%r.Size())
		}
	}
}

func TestEyeRingNextExcept(t *testing.T) {
	tests := []struct {
		name string
		busy []TextureRef
		want []int
	}{
		{"nothing busy", nil, []int{0, 1, 2, 0}},
		{"skips busy slot", []TextureRef{{Slot: 1}}, []int{0, 2, 0, 2}},
		{"both eyes same slot", []TextureRef{{Slot: 0}, {Slot: 0, Layered: true}}, []int{1, 2, 1, 2}},
		{"all busy", []TextureRef{{Slot: 0}, {Slot: 1}, {Slot: 2}}, []int{0, 1, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewEyeRing(3)
			for i, want := range tt.want {
				if got := r.NextExcept(tt.busy...).Slot; got != want {
					t.Errorf("call %d = %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestEyeFrameCompleted(t *testing.T) {
	pending := &testFence{}
	f := EyeFrame{Fences: [NumEyes]Fence{signalledFences()[0], pending}}
	if f.Completed() {
		t.Error("Completed with an unsignalled fence")
	}
	pending.done.Store(true)
	if !f.Completed() {
		t.Error("not Completed with both fences signalled")
	}
	if !(&EyeFrame{}).Completed() {
		t.Error("nil fences should count as signalled")
	}
}
