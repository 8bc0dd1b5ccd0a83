// Package metrics exposes worker metrics in Prometheus format together with
// a JSON health endpoint.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc returns the payload served by /healthz
type HealthFunc func() any

// Response is the JSON envelope of /healthz
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server serves /metrics and /healthz
type Server struct {
	addr       string
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// NewServer creates a server for m listening on addr
func NewServer(addr string, m *Metrics, health HealthFunc) *Server {
	logger := slog.Default().With("component", "metrics")
	r := chi.NewRouter()

	// stdout may carry the data channel
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", m.InstrumentHandler("GET", "/healthz", func(w http.ResponseWriter, r *http.Request) {
		var data any = map[string]string{"status": "ok"}
		if health != nil {
			data = health()
		}
		sendSuccess(w, data)
	}))

	return &Server{
		addr:    addr,
		handler: r,
		logger:  logger,
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", "error", err)
		}
	}()
	s.logger.Info("metrics server started", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// sendSuccess sends a successful JSON response
func sendSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}
