//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	_ "github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/timewarp"
)

func testConfig() timewarp.Config {
	cfg := timewarp.DefaultConfig()
	cfg.DisplayWidth = 256
	cfg.DisplayHeight = 128
	cfg.RefreshRate = 500
	cfg.Backend = "noop"
	return cfg
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		want    error
	}{
		{"unknown name", "glide", ErrUnknownBackend},
		{"not linked", "dx12", ErrUnknownBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Backend = tt.backend
			if _, err := Open(cfg); !errors.Is(err, tt.want) {
				t.Errorf("Open error = %v, want %v", err, tt.want)
			}
		})
	}

	cfg := testConfig()
	cfg.DisplayWidth = 16 // too small for a single tile
	if _, err := Open(cfg); !errors.Is(err, timewarp.ErrInvalidHMDInfo) {
		t.Errorf("tiny display error = %v, want ErrInvalidHMDInfo", err)
	}
}

func TestOpenRig(t *testing.T) {
	rig, err := Open(testConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rig.Close()

	if got := len(rig.SchedulerOptions()); got != 2 {
		t.Errorf("SchedulerOptions = %d, want graphics and compute", got)
	}
	if rig.EyeRingSize() != timewarp.DefaultEyeRingSize {
		t.Errorf("EyeRingSize = %d, want %d", rig.EyeRingSize(), timewarp.DefaultEyeRingSize)
	}
	if rig.DeviceProvider() == nil {
		t.Error("DeviceProvider should not be nil")
	}

	ring := timewarp.NewEyeRing(rig.EyeRingSize())
	for i := range int64(4) {
		f, err := rig.RenderScene(ring.Next(), i)
		if err != nil {
			t.Fatalf("RenderScene %d: %v", i, err)
		}
		if !f.Signalled() {
			t.Errorf("scene fence %d not signalled on noop queue", i)
		}
	}
	if _, err := rig.RenderScene(timewarp.TextureRef{Slot: 42}, 0); !errors.Is(err, ErrBadTexture) {
		t.Errorf("bad slot error = %v, want ErrBadTexture", err)
	}
}

func TestOpenWithProvider(t *testing.T) {
	base, err := Open(testConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer base.Close()

	shared, err := OpenWithProvider(testConfig(), base.DeviceProvider())
	if err != nil {
		t.Fatalf("OpenWithProvider failed: %v", err)
	}
	shared.Close()

	// The base device survives the shared rig.
	if _, err := base.RenderScene(timewarp.TextureRef{}, 0); err != nil {
		t.Errorf("RenderScene after shared Close: %v", err)
	}

	if _, err := OpenWithProvider(testConfig(), struct{}{}); err == nil {
		t.Error("expected error for provider without HAL access")
	}
}

func TestRigRunsScheduler(t *testing.T) {
	cfg := testConfig()
	rig, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rig.Close()

	display, err := timewarp.NewSimulatedDisplay(cfg.RefreshRate)
	if err != nil {
		t.Fatal(err)
	}
	ex := timewarp.NewExchange()
	s, err := timewarp.NewScheduler(ex, display, rig.SchedulerOptions()...)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	ring := timewarp.NewEyeRing(rig.EyeRingSize())
	scene := func(ctx context.Context) error {
		for frame := int64(1); ; frame++ {
			ref := ring.NextExcept(ex.Displayed()...)
			fence, err := rig.RenderScene(ref, frame)
			if err != nil {
				return err
			}
			f := timewarp.EyeFrame{
				FrameIndex:  frame,
				DisplayTime: s.Predictor().PredictedDisplayTime(frame),
				View:        mgl32.Ident4(),
				Projection:  timewarp.DefaultEyeProjection(),
			}
			for eye := range timewarp.NumEyes {
				f.Textures[eye] = ref
				f.Fences[eye] = fence
			}
			if err := ex.SubmitFrame(ctx, f); err != nil {
				return err
			}
		}
	}
	if err := timewarp.RunPair(ctx, s, scene); err != nil {
		t.Fatalf("RunPair: %v", err)
	}

	st := s.Stats()
	if st.Warps == 0 {
		t.Fatalf("no warps in %+v", st)
	}
	if st.WarpErrors != 0 {
		t.Errorf("WarpErrors = %d", st.WarpErrors)
	}
	if st.Exchange.Accepted == 0 {
		t.Errorf("no frames accepted: %+v", st.Exchange)
	}
}
