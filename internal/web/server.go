// pattern: Imperative Shell

package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"syncwatch/internal/logging"
	"syncwatch/internal/metrics"
	"syncwatch/internal/store"
	"syncwatch/internal/watcher"
)

// Tracker is the part of the tracker the server exposes.
type Tracker interface {
	Start() error
	Status() watcher.Status
	Store() *store.Store
}

// Server serves the results API, change events and Prometheus metrics.
type Server struct {
	httpServer *http.Server
	tracker    Tracker
	notifyTUI  func(any)
	logger     *logging.ScopedLogger
	addr       string
	listener   net.Listener
}

// Config holds web server configuration.
type Config struct {
	Bind string
	Port int
}

// New creates a web server.
// notifyTUI, if set, is called after the query is started over HTTP so the
// TUI can reflect it. logProvider may be a *logging.Manager or a
// *logging.TestLogManager.
func New(cfg Config, tracker Tracker, notifyTUI func(any), logProvider logging.LoggerProvider) *Server {
	logger := logProvider.For("web")
	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)

	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           metrics.Middleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		tracker:   tracker,
		notifyTUI: notifyTUI,
		logger:    logger,
		addr:      addr,
	}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/results", s.handleResults)
	mux.HandleFunc("GET /api/query", s.handleQueryStatus)
	mux.HandleFunc("POST /api/query/start", s.handleStartQuery)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.Handle("GET /metrics", metrics.Handler())

	return s
}

// Listen binds the server to its configured address and returns the listener.
// Call Serve() after Listen() to start accepting connections.
// This two-step approach allows callers to obtain the actual bound address
// (useful for ephemeral port 0 in tests) before the server blocks on Serve().
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("web server listen: %w", err)
	}
	s.listener = ln
	return ln, nil
}

// Serve accepts connections on the listener. Blocks until the server stops.
// Must call Listen() first.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("web server started", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Start is a convenience that calls Listen() then Serve(). Blocks until the server stops.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Addr returns the address the server is listening on.
// Only valid after Listen() or Start() has been called.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("web server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Health is the /api/health body. It answers 200 whether or not the query
// is running; Active and Generation tell a client how far along it is.
type Health struct {
	Status     string `json:"status"`
	Active     bool   `json:"active"`
	Generation uint64 `json:"generation"`
	Rows       int    `json:"rows"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Store().Current()
	writeJSON(w, http.StatusOK, Health{
		Status:     "ok",
		Active:     s.tracker.Status().Active,
		Generation: snap.Generation(),
		Rows:       snap.Len(),
	})
}
