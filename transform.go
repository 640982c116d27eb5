package timewarp

import "github.com/go-gl/mathgl/mgl32"

// WarpTransform is the pair of reprojection matrices for one eye, taken at
// the start and the end of scanout. Warpers interpolate between them across
// the display to follow a rolling scanout.
type WarpTransform struct {
	Start mgl32.Mat4
	End   mgl32.Mat4
}

// TexCoordProjection converts a render projection from clip space [-1, 1]
// to texture space [0, 1]. X and Y are halved, the off-center terms are
// biased by -0.5 and Z is negated so the homogeneous divide maps a view
// direction on the z = -1 plane to a texture coordinate.
func TexCoordProjection(projection mgl32.Mat4) mgl32.Mat4 {
	// mgl32 stores columns contiguously: element (row r, col c) is m[c*4+r].
	return mgl32.Mat4{
		0.5 * projection[0], 0, 0, 0,
		0, 0.5 * projection[5], 0, 0,
		0.5*projection[8] - 0.5, 0.5*projection[9] - 0.5, -1, 0,
		0, 0, 0, 1,
	}
}

// InvertHomogeneous inverts a rigid transform (rotation plus translation)
// by transposing the rotation and rotating the negated translation.
func InvertHomogeneous(m mgl32.Mat4) mgl32.Mat4 {
	var r mgl32.Mat4
	for c := range 3 {
		for row := range 3 {
			r[c*4+row] = m[row*4+c]
		}
	}
	tx, ty, tz := m[12], m[13], m[14]
	r[12] = -(m[0]*tx + m[1]*ty + m[2]*tz)
	r[13] = -(m[4]*tx + m[5]*ty + m[6]*tz)
	r[14] = -(m[8]*tx + m[9]*ty + m[10]*tz)
	r[15] = 1
	return r
}

// CalculateTimeWarpTransform returns the matrix that maps a distortion mesh
// direction to a texture coordinate in an eye image rendered with
// renderView, as seen from predictedView.
//
// Only the rotation of the view delta is applied; translation is dropped
// because the eye image carries no depth.
func CalculateTimeWarpTransform(renderProjection, renderView, predictedView mgl32.Mat4) mgl32.Mat4 {
	texCoordProjection := TexCoordProjection(renderProjection)

	inverseRenderView := InvertHomogeneous(renderView)
	deltaView := inverseRenderView.Mul4(predictedView)
	inverseDeltaView := InvertHomogeneous(deltaView)

	inverseDeltaView[12] = 0
	inverseDeltaView[13] = 0
	inverseDeltaView[14] = 0

	return texCoordProjection.Mul4(inverseDeltaView)
}

// CalculateWarpTransforms computes the start and end of scanout transforms
// for one eye.
func CalculateWarpTransforms(renderProjection, renderView, startView, endView mgl32.Mat4) WarpTransform {
	return WarpTransform{
		Start: CalculateTimeWarpTransform(renderProjection, renderView, startView),
		End:   CalculateTimeWarpTransform(renderProjection, renderView, endView),
	}
}

// DefaultEyeProjection is a square 90 degree perspective, the projection
// the eye textures of the built-in scene are rendered with.
func DefaultEyeProjection() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 100)
}
