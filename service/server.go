package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ItamarWilf/PipeRT/metric"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr        string
	APIPrefix   string
	MetricsPath string
	Info        InfoSpec
}

// DefaultServerConfig returns the settings used when none are given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:        ":8080",
		APIPrefix:   "/api",
		MetricsPath: "/metrics",
		Info: InfoSpec{
			Title:       "PipeRT",
			Description: "Pipeline manager API",
			Version:     "1.0.0",
		},
	}
}

// Server exposes a PipelineManager over HTTP together with the system
// endpoints: liveness, readiness, health, metrics and the OpenAPI document.
type Server struct {
	config  ServerConfig
	manager *PipelineManager
	metrics *metric.MetricsRegistry
	logger  *slog.Logger

	mu       sync.Mutex
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
}

// NewServer wires the manager API and system endpoints onto a fresh mux.
// metrics can be nil, in which case no metrics endpoint is served.
func NewServer(cfg ServerConfig, manager *PipelineManager, metrics *metric.MetricsRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:  cfg,
		manager: manager,
		metrics: metrics,
		logger:  logger.With("operation", "http"),
		mux:     http.NewServeMux(),
	}

	manager.RegisterHTTPHandlers(cfg.APIPrefix, s.mux)
	s.registerSystemEndpoints()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// Addr returns the bound address once Start has returned.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("HTTP server already started")
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Capture server reference before goroutine to avoid race condition
	server := s.server
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.logger.Info("HTTP server started", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the server down gracefully within timeout.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := server.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown failed",
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Debug("HTTP server shutdown completed", "duration_ms", time.Since(start).Milliseconds())
	s.mu.Lock()
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	return nil
}

func (s *Server) registerSystemEndpoints() {
	s.mux.HandleFunc("GET /health", s.handleSystemHealth)
	s.mux.HandleFunc("GET /healthz", s.handleLiveness)
	s.mux.HandleFunc("GET /readyz", s.handleReadiness)
	s.mux.HandleFunc("GET /openapi.json", s.handleOpenAPISpec)

	if s.metrics != nil && s.config.MetricsPath != "" {
		s.mux.Handle("GET "+s.config.MetricsPath, s.metrics.Handler())
	}
}

func (s *Server) handleSystemHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.manager.Health()

	w.Header().Set("Content-Type", "application/json")
	if st.IsUnhealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.logger.Error("Failed to encode system health response", "error", err)
	}
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReadiness reports ready once every component is running.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	for _, st := range s.manager.Status() {
		if !st.Running {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT READY"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}

func (s *Server) handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	doc := NewOpenAPIDocument(s.config.Info, "http://"+s.Addr(), map[string]HTTPHandler{
		s.config.APIPrefix: s.manager,
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
	}
}
