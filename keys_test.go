package timewarp

import (
	"testing"

	"github.com/gogpu/gpucontext"
)

type fakeKeySource struct {
	press func(gpucontext.Key, gpucontext.Modifiers)
}

func (f *fakeKeySource) OnKeyPress(fn func(gpucontext.Key, gpucontext.Modifiers)) {
	f.press = fn
}

func TestBindKeys(t *testing.T) {
	src := &fakeKeySource{}
	tg := NewToggles(DefaultConfig())
	BindKeys(src, tg)
	if src.press == nil {
		t.Fatal("BindKeys did not register a key handler")
	}

	src.press(gpucontext.KeyC, 0)
	if tg.Chromatic() {
		t.Error("C did not turn chromatic correction off")
	}

	src.press(gpucontext.KeyG, 0)
	if got := tg.RenderMode(); got != RenderModeCompute {
		t.Errorf("after G RenderMode = %v, want Compute", got)
	}

	src.press(gpucontext.KeyM, 0)
	src.press(gpucontext.KeyB, 0)
	src.press(gpucontext.KeyH, 0)
	if !tg.MultiView() || !tg.BarGraphs() || !tg.HeadRotationDisabled() {
		t.Errorf("M/B/H toggles = %v/%v/%v, want all true", tg.MultiView(), tg.BarGraphs(), tg.HeadRotationDisabled())
	}

	// Unbound keys and modified presses change nothing.
	before := tg.Snapshot()
	src.press(gpucontext.KeyA, 0)
	src.press(gpucontext.KeyC, gpucontext.ModShift)
	if got := tg.Snapshot(); got != before {
		t.Errorf("Snapshot() = %+v, want %+v", got, before)
	}
}

func TestBindKeysAcceptsEventSource(t *testing.T) {
	var src gpucontext.EventSource = gpucontext.NullEventSource{}
	BindKeys(src, NewToggles(DefaultConfig()))
}
