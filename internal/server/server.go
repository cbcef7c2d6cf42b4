package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/trapcam/internal/orchestrator/events"
	"github.com/GriffinCanCode/trapcam/internal/trace"
)

// StatusSource provides the live status snapshot.
type StatusSource interface {
	Snapshot() events.Status
}

// Feed is the event history and live subscription source.
type Feed interface {
	Recent(n int) []events.Event
	Since(d time.Duration) []events.Event
	Last(t events.Type) (events.Event, bool)
	Subscribe() (<-chan events.Event, func())
	Subscribers() int
	Dropped() uint64
}

// FeedStats reports the health of the live event feed.
type FeedStats struct {
	Subscribers int    `json:"subscribers"`
	Dropped     uint64 `json:"dropped"`
	Connections int    `json:"connections"`
}

// HelloMessage is the first message on every WebSocket connection.
type HelloMessage struct {
	Type   string        `json:"type"`
	Status events.Status `json:"status"`
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	status  StatusSource
	feed    Feed
	metrics http.Handler

	mu    sync.Mutex
	conns int
	done  chan struct{}
	once  sync.Once
}

// New creates a server. metrics may be nil, in which case /metrics is not served.
func New(status StatusSource, feed Feed, metrics http.Handler) *Server {
	return &Server{
		status:  status,
		feed:    feed,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/events/last/{type}", s.handleLastEvent)
	mux.HandleFunc("GET /api/feed", s.handleFeed)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then closes WebSocket feeds and
// shuts the HTTP server down gracefully.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	trace.Logger(ctx).Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close ends every WebSocket feed.
func (s *Server) Close() {
	s.once.Do(func() { close(s.done) })
}

// Connections returns the number of open WebSocket feeds.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Snapshot())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := WSBacklog
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, MaxEventsLimit)
	}
	v := r.URL.Query().Get("since")
	if v == "" {
		writeJSON(w, http.StatusOK, s.feed.Recent(limit))
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be a positive duration such as 10m"})
		return
	}
	evs := s.feed.Since(d)
	if len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// handleLastEvent answers with the newest event of one type, such as the last motion.
func (s *Server) handleLastEvent(w http.ResponseWriter, r *http.Request) {
	t := events.Type(r.PathValue("type"))
	switch t {
	case events.Motion, events.Capture, events.ActionFailed, events.AcquireFailed:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown event type " + string(t)})
		return
	}
	e, ok := s.feed.Last(t)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no " + string(t) + " events yet"})
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleFeed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, FeedStats{
		Subscribers: s.feed.Subscribers(),
		Dropped:     s.feed.Dropped(),
		Connections: s.Connections(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.status.Snapshot()
	if !st.Serving {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving", "state": st.State})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "serving", "state": st.State})
}

// handleWebSocket streams events to the client. The feed is push-only: anything the
// client sends is discarded.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := trace.Logger(r.Context())
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	// subscribe before replaying so nothing added in between is lost
	feed, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()

	s.mu.Lock()
	s.conns++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conns--
		s.mu.Unlock()
	}()

	ctx := conn.CloseRead(r.Context())
	log.Info("websocket connected", "remote", r.RemoteAddr)

	if err := s.write(ctx, conn, HelloMessage{Type: "hello", Status: s.status.Snapshot()}); err != nil {
		log.Debug("websocket write error", "error", err)
		return
	}
	replayed := make(map[string]struct{})
	for _, e := range s.feed.Recent(WSBacklog) {
		replayed[e.ID] = struct{}{}
		if err := s.write(ctx, conn, e); err != nil {
			log.Debug("websocket write error", "error", err)
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug("websocket closed", "remote", r.RemoteAddr)
			return
		case <-s.done:
			_ = conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		case e, ok := <-feed:
			if !ok {
				return
			}
			if _, dup := replayed[e.ID]; dup {
				delete(replayed, e.ID)
				continue
			}
			if err := s.write(ctx, conn, e); err != nil {
				log.Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, WSWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
