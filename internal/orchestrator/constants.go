// Package orchestrator runs the detection loop and the services that report on it
package orchestrator

import "time"

// Orchestrator configuration constants
const (
	// Per-subscriber buffer on the live event feed
	FeedSubscriberBuffer = 32

	// Time allowed for in-flight gRPC calls (health Watch streams included) on shutdown
	GRPCStopTimeout = 5 * time.Second

	// Breaker name reported in status and logs
	CaptureBreakerName = "capture"
)
