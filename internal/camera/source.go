package camera

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/trapcam/internal/detect"
	"github.com/GriffinCanCode/trapcam/internal/frame"

	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
)

// FrameSource acquires one frame per call.
type FrameSource interface {
	Acquire(ctx context.Context, mode Mode, cfg detect.Config) (*frame.Frame, error)
}

// Device is an open camera handle, valid for a single acquisition.
type Device interface {
	Configure(s Settings) error
	Capture(ctx context.Context) (*frame.Frame, error)
	Close() error
}

// Settler is implemented by devices that settle on their own terms
// (e.g. streaming frames, or folding the wait into a capture timeout).
type Settler interface {
	Settle(ctx context.Context, d time.Duration) error
}

// Opener opens the camera hardware.
type Opener func(ctx context.Context) (Device, error)

// Source is a FrameSource that opens the camera for every acquisition and
// releases it on every exit path.
type Source struct {
	open  Opener
	sleep func(ctx context.Context, d time.Duration) error
	busy  sync.Mutex
}

// NewSource creates a source over open.
func NewSource(open Opener) *Source {
	return &Source{open: open, sleep: sleepCtx}
}

// Acquire opens the camera, settles, applies mode settings and captures exactly one frame.
// It is not reentrant: an overlapping call fails instead of sharing the camera.
func (s *Source) Acquire(ctx context.Context, mode Mode, cfg detect.Config) (f *frame.Frame, err error) {
	if !s.busy.TryLock() {
		return nil, apperrors.New(apperrors.Hardware, "camera busy: acquisition already in progress")
	}
	defer s.busy.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	settings := SettingsFor(mode, cfg)

	dev, err := s.open(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Hardware, "open camera")
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil && err == nil {
			f, err = nil, apperrors.Wrap(cerr, apperrors.Hardware, "release camera")
		}
	}()

	if err := s.settle(ctx, dev, settings.Settle); err != nil {
		return nil, err
	}

	if err := dev.Configure(settings); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Hardware, "configure camera for %s mode", mode)
	}

	if settings.NightSettle > 0 {
		if err := s.settle(ctx, dev, settings.NightSettle); err != nil {
			return nil, err
		}
	}

	f, err = dev.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Wrap(err, apperrors.Hardware, "capture frame")
	}
	if f.Width != cfg.Width || f.Height != cfg.Height {
		return nil, apperrors.Newf(apperrors.Hardware,
			"captured %dx%d, want %dx%d", f.Width, f.Height, cfg.Width, cfg.Height)
	}
	return f, nil
}

func (s *Source) settle(ctx context.Context, dev Device, d time.Duration) error {
	if st, ok := dev.(Settler); ok {
		if err := st.Settle(ctx, d); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return apperrors.Wrap(err, apperrors.Hardware, "settle camera")
		}
		return nil
	}
	return s.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
