// Package metrics exposes Prometheus collectors for the detection loop and the capture action
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trapcam"

// Collectors holds every trapcam metric on its own registry.
type Collectors struct {
	registry *prometheus.Registry

	framesAcquired  prometheus.Counter
	acquireDuration prometheus.Histogram
	acquireFailures *prometheus.CounterVec
	comparisons     prometheus.Counter
	changedPixels   prometheus.Histogram
	motionEvents    prometheus.Counter
	actionFailures  prometheus.Counter
	captures        prometheus.Counter
	loopState       *prometheus.GaugeVec
	breakerOpen     prometheus.Gauge
}

// New registers the trapcam collectors plus Go runtime and process collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),

		framesAcquired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_acquired_total",
			Help:      "Frames acquired from the camera",
		}),
		// night acquisitions open the camera for several seconds
		acquireDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "acquire_duration_seconds",
			Help:      "Time to open, settle, capture and release the camera",
			Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 12, 20, 30},
		}),
		acquireFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquire_failures_total",
			Help:      "Failed acquisitions",
		}, []string{"outcome"}), // outcome: retried, fatal
		comparisons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_total",
			Help:      "Frame comparisons performed",
		}),
		changedPixels: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "changed_pixels",
			Help:      "Changed-pixel count per comparison (a lower bound when motion was declared)",
			Buckets:   []float64{0, 10, 50, 100, 200, 300, 500, 1000, 2500, 5000},
		}),
		motionEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "motion_events_total",
			Help:      "Comparisons that declared motion",
		}),
		actionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_failures_total",
			Help:      "Motion actions that returned an error",
		}),
		captures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Completed still and video captures",
		}),
		loopState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loop_state",
			Help:      "1 for the detection loop's current state",
		}, []string{"state"}),
		breakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_breaker_open",
			Help:      "1 while the capture circuit breaker is failing fast",
		}),
	}

	c.registry.MustRegister(
		c.framesAcquired,
		c.acquireDuration,
		c.acquireFailures,
		c.comparisons,
		c.changedPixels,
		c.motionEvents,
		c.actionFailures,
		c.captures,
		c.loopState,
		c.breakerOpen,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *Collectors) RecordAcquired(took time.Duration) {
	c.framesAcquired.Inc()
	c.acquireDuration.Observe(took.Seconds())
}

func (c *Collectors) RecordAcquireFailure(retrying bool) {
	outcome := "fatal"
	if retrying {
		outcome = "retried"
	}
	c.acquireFailures.WithLabelValues(outcome).Inc()
}

func (c *Collectors) RecordComparison(changed int, motion bool) {
	c.comparisons.Inc()
	c.changedPixels.Observe(float64(changed))
	if motion {
		c.motionEvents.Inc()
	}
}

func (c *Collectors) RecordAction(failed bool) {
	if failed {
		c.actionFailures.Inc()
	}
}

func (c *Collectors) RecordCapture() {
	c.captures.Inc()
}

// SetState marks state as current and clears the others.
func (c *Collectors) SetState(state string, all ...string) {
	for _, s := range all {
		c.loopState.WithLabelValues(s).Set(0)
	}
	c.loopState.WithLabelValues(state).Set(1)
}

func (c *Collectors) SetBreakerOpen(open bool) {
	v := 0.0
	if open {
		v = 1
	}
	c.breakerOpen.Set(v)
}
