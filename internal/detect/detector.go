package detect

import (
	"github.com/GriffinCanCode/trapcam/internal/frame"

	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
)

// Channel is the single color channel compared between frames.
const Channel = frame.Green

// Event is the outcome of one comparison.
// Once Motion is true, ChangedPixels is a lower bound: the scan stops as soon as
// the count exceeds Sensitivity.
type Event struct {
	Motion        bool
	ChangedPixels int
}

// Detector compares two frames under a detection config.
type Detector interface {
	Compare(prev, curr *frame.Frame, cfg Config) (Event, error)
}

// PixelDetector is the green-channel threshold/sensitivity detector.
type PixelDetector struct{}

// Compare implements Detector.
func (PixelDetector) Compare(prev, curr *frame.Frame, cfg Config) (Event, error) {
	return Compare(prev, curr, cfg)
}

// Compare counts green-channel samples whose difference exceeds cfg.Threshold and reports
// motion once that count exceeds cfg.Sensitivity. Pixels are visited column by column
// (x outer, y inner) and the scan exits early on motion.
func Compare(prev, curr *frame.Frame, cfg Config) (Event, error) {
	if err := checkDimensions(prev, curr, cfg); err != nil {
		return Event{}, err
	}

	changed := 0
	for x := 0; x < cfg.Width; x++ {
		for y := 0; y < cfg.Height; y++ {
			diff := int(prev.Sample(x, y, Channel)) - int(curr.Sample(x, y, Channel))
			if diff < 0 {
				diff = -diff
			}
			if diff > cfg.Threshold {
				changed++
			}
			if changed > cfg.Sensitivity {
				return Event{Motion: true, ChangedPixels: changed}, nil
			}
		}
	}
	return Event{Motion: false, ChangedPixels: changed}, nil
}

func checkDimensions(prev, curr *frame.Frame, cfg Config) error {
	if prev == nil || curr == nil {
		return apperrors.New(apperrors.DimensionMismatch, "nil frame")
	}
	if !prev.SameSize(curr) || prev.Width != cfg.Width || prev.Height != cfg.Height {
		return apperrors.Newf(apperrors.DimensionMismatch,
			"frames %dx%d and %dx%d, config %dx%d",
			prev.Width, prev.Height, curr.Width, curr.Height, cfg.Width, cfg.Height)
	}
	want := cfg.Width * cfg.Height * frame.Channels
	if len(prev.Pix) != want || len(curr.Pix) != want {
		return apperrors.Newf(apperrors.DimensionMismatch,
			"buffers %d and %d bytes, want %d", len(prev.Pix), len(curr.Pix), want)
	}
	return nil
}
