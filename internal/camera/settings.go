// Package camera acquires low-resolution frames for motion detection
package camera

import (
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/trapcam/internal/detect"
)

// MaxShutterMicros is the longest exposure requested from the sensor.
// Longer night exposures are known to lock up the camera module.
const MaxShutterMicros = 6_000_000

// Mode selects the acquisition strategy.
type Mode int

const (
	Day Mode = iota
	Night
)

func (m Mode) String() string {
	switch m {
	case Day:
		return "day"
	case Night:
		return "night"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "day" or "night" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "":
		return Day, nil
	case "night":
		return Night, nil
	default:
		return Day, fmt.Errorf("unknown day mode %q (want day or night)", s)
	}
}

// Settings is what a device is asked to apply before capturing.
type Settings struct {
	Mode   Mode
	Width  int
	Height int

	AutoExposure     bool
	AutoWhiteBalance bool

	// Night-only fields; zero in day mode.
	ShutterMicros int
	ISO           int
	FrameRate     float64

	// Settle is waited after opening, NightSettle after configuring in night mode.
	Settle      time.Duration
	NightSettle time.Duration
}

// SettingsFor derives device settings for mode from cfg, clamping the night shutter.
func SettingsFor(mode Mode, cfg detect.Config) Settings {
	s := Settings{
		Mode:             mode,
		Width:            cfg.Width,
		Height:           cfg.Height,
		AutoExposure:     true,
		AutoWhiteBalance: true,
		Settle:           cfg.Settle,
	}
	if mode != Night {
		return s
	}

	s.AutoExposure = false
	s.ShutterMicros = ClampShutter(cfg.Night.ShutterMicros)
	s.ISO = cfg.Night.ISO
	s.FrameRate = cfg.Night.FrameRate
	s.NightSettle = cfg.Night.Settle
	return s
}

// ClampShutter limits an exposure to MaxShutterMicros.
func ClampShutter(micros int) int {
	return min(micros, MaxShutterMicros)
}
