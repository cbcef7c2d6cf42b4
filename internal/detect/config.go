// Package detect decides whether motion occurred between two sampled frames
package detect

import (
	"time"

	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
)

// Defaults taken from the field-tested trap settings.
const (
	DefaultThreshold   = 30
	DefaultSensitivity = 300
	DefaultWidth       = 128
	DefaultHeight      = 80

	DefaultNightShutterMicros = 5_500_000
	DefaultNightISO           = 800
	DefaultNightSettle        = 8 * time.Second
	DefaultNightFrameRate     = 1.0 / 6.0
	DefaultSettle             = 500 * time.Millisecond

	// MinSettle is the shortest wait auto-exposure needs after the camera opens.
	MinSettle = 500 * time.Millisecond
)

// NightConfig holds the long-exposure acquisition parameters.
type NightConfig struct {
	ShutterMicros int
	ISO           int
	Settle        time.Duration
	FrameRate     float64
}

// Config is the immutable detection configuration shared by every component.
type Config struct {
	// Threshold is the per-pixel channel difference that counts as changed (strictly greater).
	Threshold int
	// Sensitivity is the changed-pixel count that must be exceeded to declare motion.
	Sensitivity int
	Width       int
	Height      int
	// Settle is the wait after opening the camera before any capture, at least MinSettle.
	Settle time.Duration
	Night  NightConfig
}

// DefaultConfig returns the reference trap settings.
func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		Sensitivity: DefaultSensitivity,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		Settle:      DefaultSettle,
		Night: NightConfig{
			ShutterMicros: DefaultNightShutterMicros,
			ISO:           DefaultNightISO,
			Settle:        DefaultNightSettle,
			FrameRate:     DefaultNightFrameRate,
		},
	}
}

// Validate rejects configurations the detector cannot run with.
// Shutter values above the hardware ceiling are clamped at acquisition time, not rejected here.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return apperrors.Newf(apperrors.ConfigInvalid, "frame size %dx%d must be positive", c.Width, c.Height)
	case c.Threshold < 0 || c.Threshold > 255:
		return apperrors.Newf(apperrors.ConfigInvalid, "threshold %d outside 0..255", c.Threshold)
	case c.Sensitivity < 0:
		return apperrors.Newf(apperrors.ConfigInvalid, "sensitivity %d must not be negative", c.Sensitivity)
	case c.Night.ShutterMicros <= 0:
		return apperrors.Newf(apperrors.ConfigInvalid, "night shutter %dus must be positive", c.Night.ShutterMicros)
	case c.Night.ISO <= 0 || c.Night.ISO > 1600:
		return apperrors.Newf(apperrors.ConfigInvalid, "night ISO %d outside 1..1600", c.Night.ISO)
	case c.Night.FrameRate <= 0:
		return apperrors.Newf(apperrors.ConfigInvalid, "night framerate %v must be positive", c.Night.FrameRate)
	case c.Settle < MinSettle:
		return apperrors.Newf(apperrors.ConfigInvalid, "settle %v shorter than %v", c.Settle, MinSettle)
	case c.Night.Settle < 0:
		return apperrors.New(apperrors.ConfigInvalid, "night settle must not be negative")
	}
	return nil
}
