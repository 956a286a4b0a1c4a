// Package server exposes the coordinator over HTTP for the protocol layer.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/user/docugen/internal/config"
	"github.com/user/docugen/internal/coordinator"
)

// Server is the HTTP server for docugen.
type Server struct {
	coord      *coordinator.Coordinator
	cfg        *config.Config
	limiter    *RateLimiter
	reqMetrics *requestMetrics
	started    time.Time
	httpServer *http.Server
	router     chi.Router
	oidcAuth   *oidcAuthenticator
}

// Option configures optional Server behavior.
type Option func(*Server)

// New creates a new Server. cfg may be nil, in which case defaults apply.
func New(coord *coordinator.Coordinator, cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	srv := &Server{
		coord:      coord,
		cfg:        cfg,
		limiter:    NewRateLimiter(cfg.RateLimit),
		reqMetrics: newRequestMetrics(),
		started:    time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.router = srv.buildRouter()
	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Bind,
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}
	return srv
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(structuredLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(s.requestMetricsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Use(s.authMiddleware)

		// Documents
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Post("/documents/{id}/batch", s.handleBatch)
		r.Post("/documents/{id}/preview", s.handlePreview)
		r.Delete("/documents/{id}/cache", s.handleInvalidateCache)

		r.Get("/stats", s.handleStats)
	})

	r.Get("/metrics", s.handlePrometheusMetrics)
	r.Get("/healthz", s.handleHealthz)

	return r
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	slog.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Limiter returns the per-client rate limiter so a scheduler can prune idle
// clients.
func (s *Server) Limiter() *RateLimiter {
	return s.limiter
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

// JSON response helpers

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Param string `json:"param,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Middleware

func structuredLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// corsMiddleware allows every origin unless server.cors_origins narrows it.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origins := s.cfg.Server.CORSOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(origins) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		c := s.reqMetrics.begin(r.Method, r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.reqMetrics.finish(c, status, time.Since(start))
	})
}
