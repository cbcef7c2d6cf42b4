package orchestrator

import (
	"context"
	"time"

	"github.com/GriffinCanCode/trapcam/internal/capture"
	"github.com/GriffinCanCode/trapcam/internal/detect"
	"github.com/GriffinCanCode/trapcam/internal/health"
	"github.com/GriffinCanCode/trapcam/internal/metrics"
	"github.com/GriffinCanCode/trapcam/internal/orchestrator/events"
	"github.com/GriffinCanCode/trapcam/internal/trace"
)

var allStates = []string{AwaitingBaseline.String(), Comparing.String()}

// reporter feeds loop progress to the status tracker, event feed, metrics and health.
// Any of them may be nil.
type reporter struct {
	status  *events.Tracker
	feed    *events.Store
	metrics *metrics.Collectors
	health  *health.Reporter
}

func (r *reporter) StateChanged(_ context.Context, s State) {
	if r.status != nil {
		r.status.Update(func(st *events.Status) {
			st.State = s.String()
			st.Serving = s == Comparing
		})
	}
	if r.metrics != nil {
		r.metrics.SetState(s.String(), allStates...)
	}
	if r.health != nil {
		r.health.SetServing(s == Comparing)
	}
}

func (r *reporter) FrameAcquired(_ context.Context, took time.Duration) {
	if r.status != nil {
		r.status.Update(func(st *events.Status) { st.FramesAcquired++ })
	}
	if r.metrics != nil {
		r.metrics.RecordAcquired(took)
	}
	if r.health != nil {
		r.health.SetFailure(nil)
	}
}

func (r *reporter) AcquireFailed(ctx context.Context, err error, retrying bool) {
	if r.status != nil {
		r.status.Update(func(st *events.Status) {
			st.AcquireFailures++
			st.LastError = err.Error()
			if !retrying {
				st.Serving = false
			}
		})
	}
	if r.metrics != nil {
		r.metrics.RecordAcquireFailure(retrying)
	}
	if r.health != nil {
		if !retrying {
			r.health.SetServing(false)
		}
		r.health.SetFailure(err)
	}
	if r.feed != nil {
		r.feed.Add(events.Event{Type: events.AcquireFailed, TraceID: traceID(ctx), Error: err.Error()})
	}
}

func (r *reporter) Compared(ctx context.Context, ev detect.Event) {
	now := time.Now()
	if r.status != nil {
		r.status.Update(func(st *events.Status) {
			st.Comparisons++
			st.LastChangedPixels = ev.ChangedPixels
			if ev.Motion {
				st.MotionEvents++
				st.LastMotion = &now
			}
		})
	}
	if r.metrics != nil {
		r.metrics.RecordComparison(ev.ChangedPixels, ev.Motion)
	}
	if r.feed != nil && ev.Motion {
		r.feed.Add(events.Event{Type: events.Motion, Time: now, TraceID: traceID(ctx), ChangedPixels: ev.ChangedPixels})
	}
}

func (r *reporter) MotionHandled(ctx context.Context, ev detect.Event, err error) {
	if r.metrics != nil {
		r.metrics.RecordAction(err != nil)
	}
	if err == nil {
		return
	}
	if r.status != nil {
		r.status.Update(func(st *events.Status) {
			st.ActionFailures++
			st.LastError = err.Error()
		})
	}
	if r.feed != nil {
		r.feed.Add(events.Event{
			Type:          events.ActionFailed,
			TraceID:       traceID(ctx),
			ChangedPixels: ev.ChangedPixels,
			Error:         err.Error(),
		})
	}
}

// captured is the capture action's OnCapture hook.
func (r *reporter) captured(res capture.Result) {
	if r.status != nil {
		r.status.Update(func(st *events.Status) { st.LastCapture = &res })
	}
	if r.metrics != nil {
		r.metrics.RecordCapture()
	}
	if r.feed != nil {
		r.feed.Add(events.Event{ID: res.ID, Type: events.Capture, Capture: &res})
	}
}

func traceID(ctx context.Context) string {
	tc, _ := trace.FromContext(ctx)
	return tc.TraceID
}
