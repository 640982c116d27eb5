//go:build !nogpu

package gpu

import "errors"

var (
	// ErrNilDevice is returned when a HAL device or queue is missing.
	ErrNilDevice = errors.New("gpu: nil device")

	// ErrMeshTooLarge is returned when a distortion mesh does not fit the
	// device's buffer or dispatch limits.
	ErrMeshTooLarge = errors.New("gpu: distortion mesh too large")

	// ErrUnknownBackend is returned for a backend name that is not
	// recognized or not compiled in.
	ErrUnknownBackend = errors.New("gpu: unknown backend")

	// ErrBadTexture is returned when an eye frame names a texture slot the
	// targets do not have.
	ErrBadTexture = errors.New("gpu: eye texture out of range")
)
