package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/trapcam/internal/camera"
	"github.com/GriffinCanCode/trapcam/internal/capture"
	"github.com/GriffinCanCode/trapcam/internal/detect"
	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
	"github.com/GriffinCanCode/trapcam/internal/frame"
	"github.com/GriffinCanCode/trapcam/internal/resilience"
	"github.com/GriffinCanCode/trapcam/internal/trace"
)

// State is the detection loop's logical state.
type State int

const (
	AwaitingBaseline State = iota
	Comparing
)

func (s State) String() string {
	switch s {
	case AwaitingBaseline:
		return "awaiting_baseline"
	case Comparing:
		return "comparing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Params are the loop's collaborators. Source and OnMotion are required.
type Params struct {
	Source   camera.FrameSource
	Detector detect.Detector
	OnMotion capture.Action
	Config   detect.Config
	Mode     camera.Mode

	// Retry wraps each acquisition. Nil terminates on the first hardware failure.
	Retry *resilience.RetryConfig

	Observer Observer
}

func (p Params) withDefaults() Params {
	if p.Detector == nil {
		p.Detector = detect.PixelDetector{}
	}
	if p.Observer == nil {
		p.Observer = NopObserver{}
	}
	return p
}

// Run acquires a baseline frame, then compares each new frame against the one before it
// and invokes OnMotion synchronously whenever motion is detected. It runs until ctx is
// cancelled, in which case it returns ctx.Err(), or until acquisition or comparison fails.
// OnMotion failures, panics included, are logged and reported to the observer; they
// never stop the loop.
func Run(ctx context.Context, p Params) error {
	p = p.withDefaults()
	if p.Source == nil || p.OnMotion == nil {
		return apperrors.New(apperrors.InvalidArgument, "detection loop needs a frame source and a motion action")
	}
	if err := p.Config.Validate(); err != nil {
		return err
	}

	log := trace.Logger(ctx)
	log.Info("checking for motion",
		"mode", p.Mode,
		"threshold", p.Config.Threshold,
		"sensitivity", p.Config.Sensitivity,
		"width", p.Config.Width,
		"height", p.Config.Height)

	obs := p.Observer
	obs.StateChanged(ctx, AwaitingBaseline)
	prev, err := acquire(ctx, p)
	if err != nil {
		return err
	}
	obs.StateChanged(ctx, Comparing)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		curr, err := iterate(ctx, p, prev)
		if err != nil {
			return err
		}
		prev = curr
	}
}

// iterate runs one acquire/compare/dispatch cycle and returns the new frame.
func iterate(ctx context.Context, p Params, prev *frame.Frame) (*frame.Frame, error) {
	ctx, span := trace.StartSpan(ctx, "detect_iteration")
	defer span.End()
	log := trace.Logger(ctx)

	curr, err := acquire(ctx, p)
	if err != nil {
		return nil, err
	}

	ev, err := p.Detector.Compare(prev, curr, p.Config)
	if err != nil {
		span.SetAttr("error", err.Error())
		return nil, err
	}
	span.SetAttr("changed_pixels", ev.ChangedPixels)
	span.SetAttr("motion", ev.Motion)
	p.Observer.Compared(ctx, ev)

	if !ev.Motion {
		return curr, nil
	}

	log.Info("motion detected", "changed_pixels", ev.ChangedPixels)
	err = runAction(ctx, p.OnMotion)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		span.SetAttr("action_error", err.Error())
		log.Error("motion action failed", "error", err)
	}
	p.Observer.MotionHandled(ctx, ev, err)
	return curr, nil
}

// runAction runs a with panics turned into ACTION_FAILED errors.
func runAction(ctx context.Context, a capture.Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Newf(apperrors.ActionFailed, "motion action panicked: %v", r)
		}
	}()
	return a.Run(ctx)
}

// acquire fetches one frame, through the retry policy when one is set.
func acquire(ctx context.Context, p Params) (*frame.Frame, error) {
	start := time.Now()
	fetch := func() (*frame.Frame, error) {
		return p.Source.Acquire(ctx, p.Mode, p.Config)
	}

	var (
		f   *frame.Frame
		err error
	)
	if p.Retry == nil {
		f, err = fetch()
	} else {
		cfg := *p.Retry
		hook := cfg.OnRetry
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			trace.Logger(ctx).Warn("acquisition failed, retrying", "attempt", attempt, "delay", delay, "error", err)
			p.Observer.AcquireFailed(ctx, err, true)
			if hook != nil {
				hook(attempt, err, delay)
			}
		}
		f, err = resilience.RetryWithResult(ctx, cfg, fetch)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		p.Observer.AcquireFailed(ctx, err, false)
		return nil, err
	}
	p.Observer.FrameAcquired(ctx, time.Since(start))
	return f, nil
}
