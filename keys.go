package timewarp

import "github.com/gogpu/gpucontext"

// KeySource delivers key presses. gpucontext.EventSource satisfies it.
type KeySource interface {
	OnKeyPress(func(key gpucontext.Key, mods gpucontext.Modifiers))
}

// Key bindings for the runtime toggles.
const (
	KeyToggleRenderMode   = gpucontext.KeyG
	KeyToggleChromatic    = gpucontext.KeyC
	KeyToggleMultiView    = gpucontext.KeyM
	KeyToggleBarGraphs    = gpucontext.KeyB
	KeyToggleHeadRotation = gpucontext.KeyH
)

// BindKeys flips toggles on key presses from src:
//
//	G  graphics / compute warp
//	C  chromatic correction
//	M  multi-view
//	B  bar graphs
//	H  head rotation
//
// Presses with modifiers held are ignored.
func BindKeys(src KeySource, t *Toggles) {
	src.OnKeyPress(func(key gpucontext.Key, mods gpucontext.Modifiers) {
		if mods != 0 {
			return
		}
		switch key {
		case KeyToggleRenderMode:
			m := t.ToggleRenderMode()
			Logger().Info("timewarp: render mode", "mode", m)
		case KeyToggleChromatic:
			v := !t.Chromatic()
			t.SetChromatic(v)
			Logger().Info("timewarp: chromatic correction", "enabled", v)
		case KeyToggleMultiView:
			v := !t.MultiView()
			t.SetMultiView(v)
			Logger().Info("timewarp: multi-view", "enabled", v)
		case KeyToggleBarGraphs:
			v := !t.BarGraphs()
			t.SetBarGraphs(v)
			Logger().Info("timewarp: bar graphs", "enabled", v)
		case KeyToggleHeadRotation:
			v := !t.HeadRotationDisabled()
			t.SetHeadRotationDisabled(v)
			Logger().Info("timewarp: head rotation", "disabled", v)
		}
	})
}
