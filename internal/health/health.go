// Package health serves the gRPC health protocol for the detection loop
package health

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the name clients check for the detection loop. The empty name
// reports the process as a whole.
const Service = "trapcam.Detector"

// Reporter tracks loop health on a grpc health server.
type Reporter struct {
	srv *health.Server

	mu      sync.Mutex
	serving bool
	failure error
}

// New starts NOT_SERVING until the loop reaches its steady state.
func New() *Reporter {
	r := &Reporter{srv: health.NewServer()}
	r.SetServing(false)
	return r
}

// Register adds the health service to s.
func (r *Reporter) Register(s grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(s, r.Server())
}

// SetServing flips both the detector service and the overall status. Serving
// clears any recorded failure.
func (r *Reporter) SetServing(ok bool) {
	r.mu.Lock()
	r.serving = ok
	if ok {
		r.failure = nil
	}
	r.mu.Unlock()

	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	r.srv.SetServingStatus("", st)
	r.srv.SetServingStatus(Service, st)
}

// SetFailure records the latest acquisition failure. While the detector is not
// serving, checks of Service return it as the RPC error.
func (r *Reporter) SetFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure = err
}

// Failure returns the recorded failure if the detector is not serving.
func (r *Reporter) Failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.serving {
		return nil
	}
	return r.failure
}

// Shutdown marks everything NOT_SERVING permanently.
func (r *Reporter) Shutdown() {
	r.mu.Lock()
	r.serving = false
	r.mu.Unlock()
	r.srv.Shutdown()
}

// Server returns the health service as registered by Register.
func (r *Reporter) Server() healthpb.HealthServer {
	return checker{Server: r.srv, r: r}
}

// checker answers Check for Service with the recorded failure, so clients see
// why the detector is down rather than a bare NOT_SERVING.
type checker struct {
	*health.Server
	r *Reporter
}

func (c checker) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if req.GetService() == Service {
		if err := c.r.Failure(); err != nil {
			return nil, err
		}
	}
	return c.Server.Check(ctx, req)
}
