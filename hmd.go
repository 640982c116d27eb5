package timewarp

import "fmt"

const (
	// NumEyes is the number of eyes on a stereo HMD.
	NumEyes = 2

	// NumColorChannels is the number of distortion channels (R, G, B).
	NumColorChannels = 3

	// MaxSplineKnots is the largest lens calibration the mesh builder accepts.
	MaxSplineKnots = 11
)

// Eye identifies one side of a stereo pair.
type Eye int

const (
	EyeLeft Eye = iota
	EyeRight
)

// String returns the eye name.
func (e Eye) String() string {
	switch e {
	case EyeLeft:
		return "Left"
	case EyeRight:
		return "Right"
	default:
		return "Unknown"
	}
}

// ColorChannel indexes the per-channel distortion meshes.
type ColorChannel int

const (
	ChannelRed ColorChannel = iota
	ChannelGreen
	ChannelBlue
)

// HMDInfo describes the display panel and lens calibration of a
// head-mounted display.
type HMDInfo struct {
	DisplayPixelsWide int
	DisplayPixelsHigh int

	// TilePixelsWide and TilePixelsHigh are the size of one distortion
	// mesh tile on the display.
	TilePixelsWide int
	TilePixelsHigh int

	// EyeTilesWide and EyeTilesHigh are the per-eye mesh resolution.
	EyeTilesWide int
	EyeTilesHigh int

	VisiblePixelsWide int
	VisiblePixelsHigh int
	VisibleMetersWide float32
	VisibleMetersHigh float32

	LensSeparationInMeters    float32
	MetersPerTanAngleAtCenter float32

	// Knots is the radial distortion curve, sampled uniformly over the
	// squared tangent radius.
	Knots []float32

	// ChromaticAberration holds the red constant, red radial, blue constant
	// and blue radial correction terms.
	ChromaticAberration [4]float32
}

// DefaultHMDInfo returns the calibration of a generic phone-class HMD with
// the given panel resolution. The panel is split into two eyes of 32x32
// pixel tiles.
func DefaultHMDInfo(displayPixelsWide, displayPixelsHigh int) HMDInfo {
	const tilePixels = 32

	info := HMDInfo{
		DisplayPixelsWide: displayPixelsWide,
		DisplayPixelsHigh: displayPixelsHigh,
		TilePixelsWide:    tilePixels,
		TilePixelsHigh:    tilePixels,
		EyeTilesWide:      displayPixelsWide / tilePixels / NumEyes,
		EyeTilesHigh:      displayPixelsHigh / tilePixels,
	}
	info.VisiblePixelsWide = info.EyeTilesWide * info.TilePixelsWide * NumEyes
	info.VisiblePixelsHigh = info.EyeTilesHigh * info.TilePixelsHigh
	if displayPixelsWide > 0 && displayPixelsHigh > 0 {
		info.VisibleMetersWide = 0.11047 * float32(info.VisiblePixelsWide) / float32(displayPixelsWide)
		info.VisibleMetersHigh = 0.06214 * float32(info.VisiblePixelsHigh) / float32(displayPixelsHigh)
	}
	info.LensSeparationInMeters = info.VisibleMetersWide / NumEyes
	info.MetersPerTanAngleAtCenter = 0.037
	info.Knots = []float32{1.0, 1.021, 1.051, 1.086, 1.128, 1.177, 1.232, 1.295, 1.368, 1.452, 1.560}
	info.ChromaticAberration = [4]float32{-0.006, 0.0, 0.014, 0.0}
	return info
}

// Validate reports whether the calibration can produce a distortion mesh.
// The returned error wraps ErrInvalidHMDInfo.
func (h *HMDInfo) Validate() error {
	switch {
	case h.EyeTilesWide <= 0 || h.EyeTilesHigh <= 0:
		return fmt.Errorf("%w: eye tiles %dx%d", ErrInvalidHMDInfo, h.EyeTilesWide, h.EyeTilesHigh)
	case h.VisiblePixelsWide <= 0 || h.VisiblePixelsHigh <= 0:
		return fmt.Errorf("%w: visible pixels %dx%d", ErrInvalidHMDInfo, h.VisiblePixelsWide, h.VisiblePixelsHigh)
	case h.VisibleMetersWide <= 0 || h.VisibleMetersHigh <= 0:
		return fmt.Errorf("%w: visible meters %gx%g", ErrInvalidHMDInfo, h.VisibleMetersWide, h.VisibleMetersHigh)
	case h.MetersPerTanAngleAtCenter == 0:
		return fmt.Errorf("%w: zero meters per tan angle", ErrInvalidHMDInfo)
	case len(h.Knots) < 2 || len(h.Knots) > MaxSplineKnots:
		return fmt.Errorf("%w: %d spline knots, want 2..%d", ErrInvalidHMDInfo, len(h.Knots), MaxSplineKnots)
	}
	return nil
}

// EyePixelsWide returns the width of one eye's viewport in display pixels.
func (h *HMDInfo) EyePixelsWide() int { return h.EyeTilesWide * h.TilePixelsWide }

// EyePixelsHigh returns the height of one eye's viewport in display pixels.
func (h *HMDInfo) EyePixelsHigh() int { return h.EyeTilesHigh * h.TilePixelsHigh }
