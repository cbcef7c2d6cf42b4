package events

import (
	"time"

	"github.com/GriffinCanCode/trapcam/internal/capture"
	"github.com/GriffinCanCode/trapcam/internal/resilience"
	"github.com/GriffinCanCode/trapcam/internal/syncx"
)

// Status is the snapshot served on /api/status.
type Status struct {
	State     string    `json:"state"`
	Mode      string    `json:"mode"`
	Backend   string    `json:"backend,omitempty"`
	Serving   bool      `json:"serving"`
	StartedAt time.Time `json:"started_at"`

	FramesAcquired  uint64 `json:"frames_acquired"`
	Comparisons     uint64 `json:"comparisons"`
	MotionEvents    uint64 `json:"motion_events"`
	ActionFailures  uint64 `json:"action_failures"`
	AcquireFailures uint64 `json:"acquire_failures"`

	LastChangedPixels int             `json:"last_changed_pixels"`
	LastMotion        *time.Time      `json:"last_motion,omitempty"`
	LastCapture       *capture.Result `json:"last_capture,omitempty"`
	LastError         string          `json:"last_error,omitempty"`

	Breaker *resilience.Stats `json:"breaker,omitempty"`
}

// Tracker guards the live Status.
type Tracker struct {
	status  *syncx.RWGuard[Status]
	breaker *resilience.Breaker
}

// NewTracker starts a status for a loop running in mode on backend.
func NewTracker(mode, backend string) *Tracker {
	return &Tracker{status: syncx.NewGuard(Status{
		State:     "starting",
		Mode:      mode,
		Backend:   backend,
		StartedAt: time.Now(),
	})}
}

// WithBreaker includes the capture breaker's stats in snapshots.
func (t *Tracker) WithBreaker(b *resilience.Breaker) *Tracker {
	t.breaker = b
	return t
}

// Update mutates the status under the write lock.
func (t *Tracker) Update(fn func(*Status)) {
	t.status.Write(fn)
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() Status {
	s := t.status.Get()
	if t.breaker != nil {
		stats := t.breaker.Stats()
		s.Breaker = &stats
	}
	return s
}

// Serving reports whether the loop is in its steady state.
func (t *Tracker) Serving() bool {
	return syncx.View(t.status, func(s Status) bool { return s.Serving })
}
