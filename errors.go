package timewarp

import "errors"

// Sentinel errors returned by timewarp. Callers match them with errors.Is;
// most are wrapped with additional context.
var (
	// ErrExchangeClosed is returned by SubmitFrame once the exchange has
	// been closed for shutdown.
	ErrExchangeClosed = errors.New("timewarp: exchange closed")

	// ErrInvalidHMDInfo indicates lens calibration that cannot produce a
	// distortion mesh.
	ErrInvalidHMDInfo = errors.New("timewarp: invalid HMD info")

	// ErrInvalidConfig indicates a configuration value out of range.
	ErrInvalidConfig = errors.New("timewarp: invalid config")

	// ErrNoWarper is returned by NewScheduler when no warper is installed.
	ErrNoWarper = errors.New("timewarp: no warper")
)
