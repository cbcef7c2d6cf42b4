package orchestrator

import (
	"context"
	"time"

	"github.com/GriffinCanCode/trapcam/internal/detect"
)

// Observer receives loop progress. Calls are made synchronously from the loop goroutine,
// so implementations must not block.
type Observer interface {
	StateChanged(ctx context.Context, s State)
	FrameAcquired(ctx context.Context, took time.Duration)
	// AcquireFailed reports a failed acquisition; retrying is true when the retry policy
	// will try again.
	AcquireFailed(ctx context.Context, err error, retrying bool)
	Compared(ctx context.Context, ev detect.Event)
	// MotionHandled reports the outcome of the motion action; err is nil on success.
	MotionHandled(ctx context.Context, ev detect.Event, err error)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) StateChanged(context.Context, State)                {}
func (NopObserver) FrameAcquired(context.Context, time.Duration)       {}
func (NopObserver) AcquireFailed(context.Context, error, bool)         {}
func (NopObserver) Compared(context.Context, detect.Event)             {}
func (NopObserver) MotionHandled(context.Context, detect.Event, error) {}

// Observers fans every call out in order.
type Observers []Observer

func (o Observers) StateChanged(ctx context.Context, s State) {
	for _, ob := range o {
		ob.StateChanged(ctx, s)
	}
}

func (o Observers) FrameAcquired(ctx context.Context, took time.Duration) {
	for _, ob := range o {
		ob.FrameAcquired(ctx, took)
	}
}

func (o Observers) AcquireFailed(ctx context.Context, err error, retrying bool) {
	for _, ob := range o {
		ob.AcquireFailed(ctx, err, retrying)
	}
}

func (o Observers) Compared(ctx context.Context, ev detect.Event) {
	for _, ob := range o {
		ob.Compared(ctx, ev)
	}
}

func (o Observers) MotionHandled(ctx context.Context, ev detect.Event, err error) {
	for _, ob := range o {
		ob.MotionHandled(ctx, ev, err)
	}
}
