package timewarp

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
)

// HMDConfig overrides parts of the default HMD calibration. Zero values
// keep the defaults.
type HMDConfig struct {
	TilePixels                int       `toml:"tile_pixels"`
	LensSeparationInMeters    float32   `toml:"lens_separation_meters"`
	MetersPerTanAngleAtCenter float32   `toml:"meters_per_tan_angle"`
	Knots                     []float32 `toml:"knots"`
	ChromaticAberration       []float32 `toml:"chromatic_aberration"`
}

// Config is the runtime configuration of a time-warp session.
type Config struct {
	DisplayWidth  int     `toml:"display_width"`
	DisplayHeight int     `toml:"display_height"`
	RefreshRate   float64 `toml:"refresh_rate"`

	RenderMode           RenderMode `toml:"render_mode"`
	Chromatic            bool       `toml:"chromatic"`
	MultiView            bool       `toml:"multi_view"`
	BarGraphs            bool       `toml:"bar_graphs"`
	HeadRotationDisabled bool       `toml:"head_rotation_disabled"`

	// FenceTimeout drops frames whose GPU work does not finish in time.
	// Zero waits forever.
	FenceTimeout time.Duration `toml:"fence_timeout"`

	EyeRingSize int `toml:"eye_ring_size"`

	// Backend names the GPU backend: "vulkan", "metal", "dx12", "gles",
	// "software" or "noop".
	Backend string `toml:"backend"`

	HMD HMDConfig `toml:"hmd"`
}

// DefaultConfig returns a 1920x1080 60 Hz headset with chromatic
// correction and graphics warping.
func DefaultConfig() Config {
	return Config{
		DisplayWidth:  1920,
		DisplayHeight: 1080,
		RefreshRate:   60,
		RenderMode:    RenderModeAuto,
		Chromatic:     true,
		EyeRingSize:   DefaultEyeRingSize,
		Backend:       "noop",
	}
}

// Validate reports the first out-of-range value. The error wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.DisplayWidth <= 0 || c.DisplayHeight <= 0:
		return fmt.Errorf("%w: display %dx%d", ErrInvalidConfig, c.DisplayWidth, c.DisplayHeight)
	case c.RefreshRate <= 0 || c.RefreshRate > 1000:
		return fmt.Errorf("%w: refresh rate %g", ErrInvalidConfig, c.RefreshRate)
	case c.FenceTimeout < 0:
		return fmt.Errorf("%w: negative fence timeout", ErrInvalidConfig)
	case c.EyeRingSize < 0:
		return fmt.Errorf("%w: eye ring size %d", ErrInvalidConfig, c.EyeRingSize)
	case c.RenderMode < RenderModeAuto || c.RenderMode > RenderModeCompute:
		return fmt.Errorf("%w: render mode %d", ErrInvalidConfig, int(c.RenderMode))
	case c.HMD.TilePixels < 0:
		return fmt.Errorf("%w: tile pixels %d", ErrInvalidConfig, c.HMD.TilePixels)
	case len(c.HMD.ChromaticAberration) != 0 && len(c.HMD.ChromaticAberration) != 4:
		return fmt.Errorf("%w: chromatic aberration needs 4 terms, got %d", ErrInvalidConfig, len(c.HMD.ChromaticAberration))
	}
	return nil
}

// FramePeriod returns the display refresh period.
func (c *Config) FramePeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.RefreshRate)
}

// HMDInfo builds the calibration for the configured display, applying the
// HMD overrides on top of DefaultHMDInfo.
func (c *Config) HMDInfo() HMDInfo {
	info := DefaultHMDInfo(c.DisplayWidth, c.DisplayHeight)

	if tp := c.HMD.TilePixels; tp > 0 && tp != info.TilePixelsWide {
		info.TilePixelsWide = tp
		info.TilePixelsHigh = tp
		info.EyeTilesWide = c.DisplayWidth / tp / NumEyes
		info.EyeTilesHigh = c.DisplayHeight / tp
		info.VisiblePixelsWide = info.EyeTilesWide * tp * NumEyes
		info.VisiblePixelsHigh = info.EyeTilesHigh * tp
		info.VisibleMetersWide = 0.11047 * float32(info.VisiblePixelsWide) / float32(c.DisplayWidth)
		info.VisibleMetersHigh = 0.06214 * float32(info.VisiblePixelsHigh) / float32(c.DisplayHeight)
		info.LensSeparationInMeters = info.VisibleMetersWide / NumEyes
	}
	if c.HMD.LensSeparationInMeters > 0 {
		info.LensSeparationInMeters = c.HMD.LensSeparationInMeters
	}
	if c.HMD.MetersPerTanAngleAtCenter > 0 {
		info.MetersPerTanAngleAtCenter = c.HMD.MetersPerTanAngleAtCenter
	}
	if len(c.HMD.Knots) > 0 {
		info.Knots = append([]float32(nil), c.HMD.Knots...)
	}
	if len(c.HMD.ChromaticAberration) == 4 {
		copy(info.ChromaticAberration[:], c.HMD.ChromaticAberration)
	}
	return info
}

// DecodeConfig reads a TOML config from r on top of DefaultConfig and
// validates it.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		Logger().Warn("timewarp: unknown config keys", "keys", fmt.Sprint(undecoded))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a TOML config file on top of DefaultConfig and
// validates it.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		Logger().Warn("timewarp: unknown config keys", "path", path, "keys", fmt.Sprint(undecoded))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EncodeConfig returns c as TOML.
func EncodeConfig(c Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
