// Package capture records evidence when motion is detected: a still image and a
// short video clip per event, staged in a temp folder and then filed away.
package capture

import (
	"context"
	"time"
)

// Action is the collaborator run synchronously by the detection loop on motion.
type Action interface {
	Run(ctx context.Context) error
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context) error

// Run implements Action.
func (f ActionFunc) Run(ctx context.Context) error { return f(ctx) }

// Result describes one completed capture.
type Result struct {
	ID          string        `json:"id"`
	Basename    string        `json:"basename"`
	StillPath   string        `json:"still_path"`
	VideoPath   string        `json:"video_path"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Distance    int           `json:"distance"` // hash distance to the previous still, -1 if none
	Similar     bool          `json:"similar"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// BasenameFormat names capture files by local time, e.g. 20181003-214502.
const BasenameFormat = "20060102-150405"
