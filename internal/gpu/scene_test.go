//go:build !nogpu

package gpu

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/timewarp"
)

func TestSceneRendererRender(t *testing.T) {
	r := newWarpRig(t)
	sceneCtx, err := NewContext(r.dev, "scene")
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	defer sceneCtx.Destroy()

	scene, err := NewSceneRenderer(sceneCtx, r.targets)
	if err != nil {
		t.Fatalf("NewSceneRenderer failed: %v", err)
	}

	ring := timewarp.NewEyeRing(r.targets.Slots())
	var prev uint64
	for i := range 6 {
		ref := ring.Next()
		ref.Layered = i%2 == 1
		f, err := scene.Render(ref, int64(i))
		if err != nil {
			t.Fatalf("Render %d failed: %v", i, err)
		}
		if f.Index() <= prev {
			t.Errorf("render %d fence %d not after %d", i, f.Index(), prev)
		}
		prev = f.Index()
	}

	if _, err := scene.Render(timewarp.TextureRef{Slot: 99}, 0); !errors.Is(err, ErrBadTexture) {
		t.Errorf("bad slot error = %v, want ErrBadTexture", err)
	}
}

func TestNewSceneRendererNil(t *testing.T) {
	if _, err := NewSceneRenderer(nil, nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("error = %v, want ErrNilDevice", err)
	}
}

func TestSceneColor(t *testing.T) {
	for i := range int64(180) {
		for _, eye := range []timewarp.Eye{timewarp.EyeLeft, timewarp.EyeRight} {
			c := SceneColor(i, eye)
			for _, v := range []float64{c.R, c.G, c.B} {
				if v < 0 || v > 1 {
					t.Fatalf("SceneColor(%d, %s) component %v out of [0, 1]", i, eye, v)
				}
			}
			if c.A != 1 {
				t.Fatalf("SceneColor alpha = %v, want 1", c.A)
			}
		}
	}
	// The color cycles every 90 frames.
	a, b := SceneColor(7, timewarp.EyeLeft), SceneColor(97, timewarp.EyeLeft)
	if math.Abs(a.R-b.R) > 1e-9 || math.Abs(a.G-b.G) > 1e-9 {
		t.Errorf("SceneColor not periodic: %+v vs %+v", a, b)
	}
	if SceneColor(0, timewarp.EyeLeft) == SceneColor(0, timewarp.EyeRight) {
		t.Error("eyes should differ")
	}
}
