// Package server serves trap status, Prometheus metrics and a live WebSocket event feed
package server

import "time"

// Server configuration constants
const (
	// Events replayed to a WebSocket client on connect
	WSBacklog = 20

	// Per-message write deadline; a client slower than this is dropped
	WSWriteTimeout = 5 * time.Second

	// Upper bound for ?limit= on /api/events
	MaxEventsLimit = 500

	ReadHeaderTimeout = 10 * time.Second
	ShutdownTimeout   = 5 * time.Second
)
