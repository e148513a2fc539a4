package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"expense-bot/internal/cache"
	"expense-bot/internal/metrics"
	"expense-bot/internal/repo"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies exposes core dependencies to handlers that need them.
type Dependencies struct {
	Store repo.Store
	Redis *cache.Redis
}

// Server wraps an http.Server with health, metrics and admin routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	deps       Dependencies
}

// New creates a new HTTP server listening on addr.
func New(addr string, logger *slog.Logger, metricRegistry *metrics.Metrics) *Server {
	server := &Server{
		logger:  logger.With("component", "http"),
		metrics: metricRegistry,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/readyz", server.handleReady)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/admin/payments/recent", server.handleRecentPayments)

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server
}

// SetDependencies makes dependencies accessible to handlers.
func (s *Server) SetDependencies(deps Dependencies) {
	s.deps = deps
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := map[string]string{}
	healthy := true

	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			checks["store"] = err.Error()
			healthy = false
		} else {
			checks["store"] = "ok"
		}
	}
	if s.deps.Redis != nil {
		if err := s.deps.Redis.Ping(r.Context()); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, checks)
}

func (s *Server) handleRecentPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Store == nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	payments, err := s.deps.Store.ListRecentPayments(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed listing recent payments", "error", err)
		s.metrics.Errors.WithLabelValues("http_admin").Inc()
		http.Error(w, "failed listing payments", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"count":    len(payments),
		"payments": payments,
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
	}
}
