package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vectorlite/vectorlite"
	"github.com/vectorlite/vectorlite/pkg/api/rest/middleware"
	"github.com/vectorlite/vectorlite/pkg/observability"
)

// Config holds the REST server configuration
type Config struct {
	Host        string
	Port        int
	CORSEnabled bool
	CORSOrigins []string
	Auth        middleware.AuthConfig
	RateLimit   middleware.RateLimitConfig
}

// Server represents the REST API server
type Server struct {
	config     Config
	handler    *Handler
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *observability.Logger
	access     *observability.AccessLogger
	metrics    *observability.Metrics
}

// NewServer creates a new REST API server fronting db directly — no
// separate gRPC hop.
func NewServer(config Config, db *vectorlite.DB) (*Server, error) {
	logger := observability.NewDefaultLogger().WithField("component", "rest")

	server := &Server{
		config:  config,
		handler: NewHandler(db),
		mux:     http.NewServeMux(),
		logger:  logger,
		access:  observability.NewAccessLogger(logger),
		metrics: observability.NewMetrics(),
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.withMiddleware(server.mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/v1/health", s.handler.HealthCheck)
	s.mux.HandleFunc("/v1/stats", s.handler.GetStats)
	s.mux.HandleFunc("/v1/stats/", s.handler.GetStats)

	s.mux.HandleFunc("/v1/collections", s.routeCollections)
	s.mux.HandleFunc("/v1/collections/", s.routeCollectionPath)

	s.mux.HandleFunc("/docs", ServeSwaggerUI)
	s.mux.HandleFunc("/docs/openapi.yaml", ServeDocs)
	s.mux.Handle("/metrics", promhttp.Handler())
}

// routeCollections handles /v1/collections (create, list)
func (s *Server) routeCollections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handler.CreateCollection(w, r)
	case http.MethodGet:
		s.handler.ListCollections(w, r)
	default:
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// routeCollectionPath handles everything nested under
// /v1/collections/{name}[/vectors[/{id}]|/search].
func (s *Server) routeCollectionPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/collections/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 3)
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, "Invalid URL format", http.StatusBadRequest)
		return
	}
	coll := parts[0]

	switch {
	case len(parts) == 1:
		s.handler.DropCollection(w, r, coll)
	case len(parts) == 2 && parts[1] == "search":
		s.handler.Search(w, r, coll)
	case len(parts) == 2 && parts[1] == "vectors":
		s.handler.Insert(w, r, coll)
	case len(parts) == 3 && parts[1] == "vectors":
		id := parts[2]
		if r.Method == http.MethodDelete {
			s.handler.Delete(w, r, coll, id)
		} else {
			s.handler.Get(w, r, coll, id)
		}
	default:
		http.NotFound(w, r)
	}
}

// withMiddleware wraps the handler with all middleware
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	handler = s.loggingMiddleware(handler)

	if s.config.CORSEnabled {
		handler = corsMiddleware(s.config.CORSOrigins)(handler)
	}

	rateLimiter := middleware.NewRateLimiter(s.config.RateLimit)
	handler = middleware.RateLimitMiddleware(rateLimiter)(handler)

	handler = middleware.AuthMiddleware(s.config.Auth)(handler)

	return handler
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.logger.Infof("Starting REST API server on %s:%d", s.config.Host, s.config.Port)
	s.logger.Infof("API documentation available at http://%s:%d/docs", s.config.Host, s.config.Port)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server...")
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs and instruments every HTTP request via the
// shared observability logger and Prometheus metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		status := fmt.Sprintf("%d", wrapped.statusCode)

		s.access.LogAccess(r.Method, r.URL.Path, status, duration, nil)
		s.metrics.RecordRequest(r.Method, status, duration)
		if wrapped.statusCode >= 400 {
			s.metrics.RecordError(r.Method, status)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				allowed = true
				origin = "*"
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
