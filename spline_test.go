package timewarp

import (
	"math"
	"testing"
)

func approxEqual32(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func TestCatmullRomConstantKnots(t *testing.T) {
	knots := make([]float32, 11)
	for i := range knots {
		knots[i] = 1
	}

	for _, v := range []float32{0, 0.05, 0.1, 0.33, 0.5, 0.77, 0.95, 1} {
		if got := EvaluateCatmullRomSpline(v, knots); !approxEqual32(got, 1, 1e-6) {
			t.Errorf("EvaluateCatmullRomSpline(%v, const) = %v, want 1", v, got)
		}
	}
}

func TestCatmullRomHitsKnots(t *testing.T) {
	hmd := DefaultHMDInfo(1920, 1080)
	knots := hmd.Knots
	n := len(knots)

	for i, k := range knots {
		v := float32(i) / float32(n-1)
		if got := EvaluateCatmullRomSpline(v, knots); !approxEqual32(got, k, 1e-5) {
			t.Errorf("EvaluateCatmullRomSpline(%v) = %v, want knot[%d] = %v", v, got, i, k)
		}
	}
}

func TestCatmullRomLinearKnots(t *testing.T) {
	knots := []float32{0, 1, 2, 3}

	tests := []struct {
		value float32
		want  float32
	}{
		{0, 0},
		{0.1, 0.3},
		{0.25, 0.75},
		{0.5, 1.5},
		{0.9, 2.7},
		{1, 3},
	}

	for _, tt := range tests {
		if got := EvaluateCatmullRomSpline(tt.value, knots); !approxEqual32(got, tt.want, 1e-5) {
			t.Errorf("EvaluateCatmullRomSpline(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestCatmullRomClampsSegment(t *testing.T) {
	knots := []float32{1, 2, 4}

	// Below zero stays on the first segment, above one on the last.
	if got := EvaluateCatmullRomSpline(-0.5, knots); math.IsNaN(float64(got)) {
		t.Error("EvaluateCatmullRomSpline(-0.5) = NaN")
	}
	if got := EvaluateCatmullRomSpline(1, knots); !approxEqual32(got, 4, 1e-6) {
		t.Errorf("EvaluateCatmullRomSpline(1) = %v, want 4", got)
	}
}

func TestCatmullRomDegenerate(t *testing.T) {
	if got := EvaluateCatmullRomSpline(0.5, nil); got != 1 {
		t.Errorf("EvaluateCatmullRomSpline(nil) = %v, want 1", got)
	}
	if got := EvaluateCatmullRomSpline(0.5, []float32{2, 4}); !approxEqual32(got, 3, 1e-6) {
		t.Errorf("EvaluateCatmullRomSpline(two knots) = %v, want 3", got)
	}
}

func BenchmarkCatmullRom(b *testing.B) {
	knots := DefaultHMDInfo(1920, 1080).Knots
	b.ReportAllocs()
	for b.Loop() {
		_ = EvaluateCatmullRomSpline(0.42, knots)
	}
}
