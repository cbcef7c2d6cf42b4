package orchestrator

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/GriffinCanCode/trapcam/internal/camera"
	"github.com/GriffinCanCode/trapcam/internal/capture"
	"github.com/GriffinCanCode/trapcam/internal/config"
	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
	"github.com/GriffinCanCode/trapcam/internal/health"
	"github.com/GriffinCanCode/trapcam/internal/metrics"
	"github.com/GriffinCanCode/trapcam/internal/orchestrator/events"
	"github.com/GriffinCanCode/trapcam/internal/resilience"
	"github.com/GriffinCanCode/trapcam/internal/server"
	"github.com/GriffinCanCode/trapcam/internal/trace"
)

// Manager wires the detection loop to the camera, the capture action and the
// status, metrics, HTTP and gRPC services.
type Manager struct {
	cfg    *config.Config
	params Params
	layout *capture.Layout

	status  *events.Tracker
	feed    *events.Store
	metrics *metrics.Collectors
	health  *health.Reporter
	http    *server.Server
	breaker *resilience.Breaker
}

// Option overrides a collaborator Manager would otherwise build from config.
type Option func(*Manager)

// WithSource replaces the camera-backed frame source.
func WithSource(src camera.FrameSource) Option {
	return func(m *Manager) { m.params.Source = src }
}

// WithAction replaces the capture action. The capture directories are then left alone.
func WithAction(a capture.Action) Option {
	return func(m *Manager) { m.params.OnMotion = a }
}

// New validates cfg and builds every component.
func New(cfg *config.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := cfg.DayMode()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:     cfg,
		status:  events.NewTracker(mode.String(), cfg.Backend),
		feed:    events.NewStore(cfg.EventHistory, FeedSubscriberBuffer),
		metrics: metrics.New(),
		health:  health.New(),
	}
	rep := &reporter{status: m.status, feed: m.feed, metrics: m.metrics, health: m.health}
	m.params = Params{
		Config:   cfg.Detection(),
		Mode:     mode,
		Retry:    cfg.RetryPolicy(),
		Observer: rep,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.params.Source == nil {
		open, err := camera.NewOpener(cfg.Backend, cfg.Device, cfg.PreviewCommand)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "camera backend")
		}
		m.params.Source = camera.NewSource(open)
	}
	if m.params.OnMotion == nil {
		layout := capture.Layout{Root: cfg.RootDir}
		m.layout = &layout
		m.params.OnMotion = m.buildAction(layout, rep)
	}

	if cfg.BreakerThreshold > 0 {
		m.breaker = resilience.New(resilience.Config{
			Name:         CaptureBreakerName,
			Threshold:    cfg.BreakerThreshold,
			ResetTimeout: cfg.BreakerReset,
		}).WithHook(func(_, to resilience.State) {
			m.metrics.SetBreakerOpen(to == resilience.Open)
		})
		m.params.OnMotion = capture.Guard(m.params.OnMotion, m.breaker)
		m.status.WithBreaker(m.breaker)
	}

	m.http = server.New(m.status, m.feed, m.metrics.Handler())
	return m, nil
}

func (m *Manager) buildAction(layout capture.Layout, rep *reporter) capture.Action {
	if m.cfg.CaptureBackend == config.CaptureWebcam {
		r := capture.NewWebcamRecorder(layout, m.cfg.Device)
		r.ClipDuration = m.cfg.VideoDuration
		r.OnCapture = rep.captured
		return r
	}
	e := capture.NewExecutor(layout)
	e.StillCommand = m.cfg.StillCommand
	e.VideoCommand = m.cfg.VideoCommand
	e.VideoDuration = m.cfg.VideoDuration
	e.OnCapture = rep.captured
	return e
}

// Status returns the live status snapshot.
func (m *Manager) Status() events.Status {
	return m.status.Snapshot()
}

// Events returns the event history and feed.
func (m *Manager) Events() *events.Store {
	return m.feed
}

// Run runs the detection loop and any configured servers until ctx is cancelled or the
// loop fails. A loop failure stops the servers and is returned; cancellation returns nil.
func (m *Manager) Run(ctx context.Context) error {
	ctx, _ = trace.EnsureContext(ctx)
	log := trace.Logger(ctx)

	if m.layout != nil {
		if err := m.layout.Prepare(); err != nil {
			return apperrors.Wrapf(err, apperrors.Internal, "prepare capture directories under %s", m.layout.Root)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := Run(gctx, m.params)
		m.health.SetServing(false)
		if ctx.Err() != nil {
			return nil
		}
		m.status.Update(func(st *events.Status) {
			st.State = "stopped"
			st.Serving = false
			if err != nil {
				st.LastError = err.Error()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("detection loop stopped", "error", err)
		}
		return err
	})

	if addr := m.cfg.HTTPAddr; addr != "" {
		g.Go(func() error { return m.http.Serve(gctx, addr) })
	}
	if addr := m.cfg.GRPCAddr; addr != "" {
		g.Go(func() error { return m.serveGRPC(gctx, addr) })
	}

	err := g.Wait()
	m.health.Shutdown()
	return err
}

func (m *Manager) serveGRPC(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(trace.StreamServerInterceptor()),
	)
	m.health.Register(s)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()
	trace.Logger(ctx).Info("grpc health listening", "addr", lis.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	m.health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	t := time.NewTimer(GRPCStopTimeout)
	defer t.Stop()
	select {
	case <-stopped:
	case <-t.C:
		s.Stop()
	}
	return nil
}
