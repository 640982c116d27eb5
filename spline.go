package timewarp

import "math"

// EvaluateCatmullRomSpline evaluates a uniform Catmull-Rom spline through
// knots at value. The knots are spaced 1/(len(knots)-1) apart starting at
// zero, so value in [0, 1] spans the whole curve. Values outside that range
// extrapolate from the first or last segment.
//
// The first and last knots use one-sided tangents, interior knots use
// central differences. len(knots) must be at least 2; shorter input
// returns 1.
func EvaluateCatmullRomSpline(value float32, knots []float32) float32 {
	n := len(knots)
	if n < 2 {
		return 1
	}

	scaled := float32(n-1) * value
	floor := float32(math.Floor(float64(scaled)))
	if floor < 0 {
		floor = 0
	}
	if floor > float32(n-2) {
		floor = float32(n - 2)
	}
	t := scaled - floor
	k := int(floor)

	var p0, p1, m0, m1 float32
	switch {
	case n == 2:
		p0, p1 = knots[0], knots[1]
		m0 = knots[1] - knots[0]
		m1 = m0
	case k == 0:
		p0 = knots[0]
		m0 = knots[1] - knots[0]
		p1 = knots[1]
		m1 = 0.5 * (knots[2] - knots[0])
	case k < n-2:
		p0 = knots[k]
		m0 = 0.5 * (knots[k+1] - knots[k-1])
		p1 = knots[k+1]
		m1 = 0.5 * (knots[k+2] - knots[k])
	default: // k == n-2
		p0 = knots[k]
		m0 = 0.5 * (knots[k+1] - knots[k-1])
		p1 = knots[k+1]
		m1 = knots[k+1] - knots[k]
	}

	omt := 1 - t
	return (p0*(1+2*t)+m0*t)*omt*omt + (p1*(1+2*omt)-m1*omt)*t*t
}
