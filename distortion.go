package timewarp

import (
	"golang.org/x/image/math/f32"

	"github.com/gogpu/timewarp/internal/parallel"
)

// DistortionMeshes holds one warp grid per eye and color channel.
//
// Each grid has (TilesWide+1) x (TilesHigh+1) vertices in row-major order,
// row 0 at the top of the eye. A vertex holds the tangent angle (x, y on the
// z = -1 plane) that the display pixel under it sees through the lens.
//
// DistortionMeshes are immutable after construction and may be shared by
// any number of warpers.
type DistortionMeshes struct {
	TilesWide int
	TilesHigh int
	Coords    [NumEyes][NumColorChannels][]f32.Vec2
}

// VertexCount returns the number of vertices in one grid.
func (m *DistortionMeshes) VertexCount() int {
	return (m.TilesWide + 1) * (m.TilesHigh + 1)
}

// Vertex returns the coordinate at grid position (x, y).
func (m *DistortionMeshes) Vertex(eye Eye, ch ColorChannel, x, y int) f32.Vec2 {
	return m.Coords[eye][ch][y*(m.TilesWide+1)+x]
}

// Indices returns a triangle list covering the tile grid, two triangles
// per tile, counter-clockwise with row 0 at the top.
func (m *DistortionMeshes) Indices() []uint32 {
	stride := uint32(m.TilesWide + 1)
	idx := make([]uint32, 0, m.TilesWide*m.TilesHigh*6)
	for y := range uint32(m.TilesHigh) {
		for x := range uint32(m.TilesWide) {
			tl := y*stride + x
			tr := tl + 1
			bl := tl + stride
			br := bl + 1
			idx = append(idx, tl, bl, tr, tr, bl, br)
		}
	}
	return idx
}

// WithoutChromatic returns meshes where every channel uses the green grid.
// The green grid carries the base lens distortion with no chromatic term.
func (m *DistortionMeshes) WithoutChromatic() *DistortionMeshes {
	out := &DistortionMeshes{TilesWide: m.TilesWide, TilesHigh: m.TilesHigh}
	for eye := range NumEyes {
		green := m.Coords[eye][ChannelGreen]
		for ch := range NumColorChannels {
			out.Coords[eye][ch] = green
		}
	}
	return out
}

// BuildDistortionMeshes computes the lens distortion grids for both eyes.
//
// For every grid vertex the eye-local position is shifted horizontally
// toward the lens center, converted to meters on the panel, then to a
// tangent angle. The radial scale comes from the calibration spline over
// the squared tangent radius; red and blue get the chromatic aberration
// terms on top of it.
//
// Rows are computed on a worker pool. The returned error wraps
// ErrInvalidHMDInfo when the calibration is unusable.
func BuildDistortionMeshes(info HMDInfo) (*DistortionMeshes, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	w, h := info.EyeTilesWide, info.EyeTilesHigh
	m := &DistortionMeshes{TilesWide: w, TilesHigh: h}
	for eye := range NumEyes {
		for ch := range NumColorChannels {
			m.Coords[eye][ch] = make([]f32.Vec2, (w+1)*(h+1))
		}
	}

	horizontalShiftMeters := info.LensSeparationInMeters/2 - info.VisibleMetersWide/4
	horizontalShiftView := horizontalShiftMeters / (info.VisibleMetersWide / 2)

	ndcToPixels := [2]float32{float32(info.VisiblePixelsWide) * 0.25, float32(info.VisiblePixelsHigh) * 0.5}
	pixelsToMeters := [2]float32{
		info.VisibleMetersWide / float32(info.VisiblePixelsWide),
		info.VisibleMetersHigh / float32(info.VisiblePixelsHigh),
	}
	ca := info.ChromaticAberration

	rows := NumEyes * (h + 1)
	pool := parallel.NewPool(0)
	defer pool.Close()

	pool.ForEach(rows, func(row int) {
		eye := row / (h + 1)
		y := row % (h + 1)

		shift := horizontalShiftView
		if eye == int(EyeRight) {
			shift = -horizontalShiftView
		}
		yf := 1 - float32(y)/float32(h)

		for x := range w + 1 {
			xf := float32(x) / float32(w)
			in := [2]float32{shift + xf, yf}

			var theta [2]float32
			for i := range 2 {
				ndc := 2*in[i] - 1
				meters := ndc * ndcToPixels[i] * pixelsToMeters[i]
				theta[i] = meters / info.MetersPerTanAngleAtCenter
			}

			rsq := theta[0]*theta[0] + theta[1]*theta[1]
			scale := EvaluateCatmullRomSpline(rsq, info.Knots)
			chroma := [NumColorChannels]float32{
				scale * (1 + ca[0] + rsq*ca[1]),
				scale,
				scale * (1 + ca[2] + rsq*ca[3]),
			}

			v := y*(w+1) + x
			for ch := range NumColorChannels {
				m.Coords[eye][ch][v] = f32.Vec2{chroma[ch] * theta[0], chroma[ch] * theta[1]}
			}
		}
	})

	Logger().Debug("timewarp: distortion meshes built",
		"tilesWide", w, "tilesHigh", h, "workers", pool.Workers())
	return m, nil
}
