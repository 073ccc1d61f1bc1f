// Package server is the local dev server: it serves the destination root,
// injects the reload client into HTML pages and pushes reload and failure
// messages over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/conneroisu/assetpipe/internal/config"
	"github.com/conneroisu/assetpipe/internal/devloop"
	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/metrics"
	"github.com/conneroisu/assetpipe/internal/version"
)

// Endpoints served next to the destination root.
const (
	wsPath      = "/__assetpipe/ws"
	statusPath  = "/__assetpipe/status"
	metricsPath = "/metrics"
)

// StatusProvider reports watch loop state. *devloop.Loop satisfies it.
type StatusProvider interface {
	State() devloop.State
	LastResult() *devloop.Result
	Groups() []devloop.Group
}

// Options configures a Server.
type Options struct {
	Config   *config.Config
	Logger   logging.Logger
	Recorder metrics.Recorder
	// Metrics serves /metrics; nil disables the endpoint.
	Metrics http.Handler
	// Status backs the status endpoint; nil reports no loop.
	Status StatusProvider
	// OpenBrowser overrides the browser launcher.
	OpenBrowser func(url string) error
}

// Server serves built assets with live reload.
type Server struct {
	config      *config.Config
	hub         *Hub
	status      StatusProvider
	metrics     http.Handler
	logger      logging.Logger
	openBrowser func(url string) error

	httpServer   *http.Server
	closed       bool
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New creates a new server
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	open := opts.OpenBrowser
	if open == nil {
		open = openBrowser
	}

	return &Server{
		config:      cfg,
		hub:         NewHub(logger, opts.Recorder),
		status:      opts.Status,
		metrics:     opts.Metrics,
		logger:      logger.WithComponent("server"),
		openBrowser: open,
	}
}

// Hub returns the reload hub. It satisfies devloop.Reloader.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SetStatus attaches the loop reported by the status endpoint.
func (s *Server) SetStatus(p StatusProvider) {
	s.serverMutex.Lock()
	defer s.serverMutex.Unlock()
	s.status = p
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, s.handleWebSocket)
	mux.HandleFunc(statusPath, s.handleStatus)
	if s.metrics != nil {
		mux.Handle(metricsPath, s.metrics)
	}
	mux.HandleFunc("/", s.handleStatic)
	return s.addMiddleware(mux)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.serverMutex.Lock()
	if s.closed {
		s.serverMutex.Unlock()
		return ln.Close()
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	url := "http://" + ln.Addr().String()
	s.logger.Info(ctx, "Serving", "url", url, "root", s.config.DestDir())

	if s.config.Server.Open {
		go func() {
			time.Sleep(100 * time.Millisecond)
			if err := s.openBrowser(url); err != nil {
				s.logger.Warn(ctx, err, "Failed to open browser")
			}
		}()
	}

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown disconnects reload clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")
		s.hub.Close()

		s.serverMutex.Lock()
		s.closed = true
		server := s.httpServer
		s.serverMutex.Unlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *Server) addMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
		if r.URL.Path != wsPath {
			s.logger.Debug(r.Context(), "Request", "method", r.Method, "path", r.URL.Path,
				"duration_ms", time.Since(start).Milliseconds())
		}
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, allowedOrigins(s.config.Server.Host, s.config.Server.Port))
}

// statusResponse is the body of the status endpoint.
type statusResponse struct {
	State     string          `json:"state"`
	Last      *devloop.Result `json:"last,omitempty"`
	Groups    []string        `json:"groups,omitempty"`
	Clients   int             `json:"clients"`
	LastError string          `json:"last_error,omitempty"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.serverMutex.RLock()
	status := s.status
	s.serverMutex.RUnlock()

	resp := statusResponse{
		State:     "not-watching",
		Clients:   s.hub.ClientCount(),
		LastError: s.hub.LastError(),
		Version:   version.Get().Short(),
		Timestamp: time.Now().UTC(),
	}
	if status != nil {
		resp.State = status.State().String()
		resp.Last = status.LastResult()
		for _, g := range status.Groups() {
			resp.Groups = append(resp.Groups, g.Name)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode status")
	}
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}
