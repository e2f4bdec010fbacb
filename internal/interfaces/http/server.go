// Package http serves the engine's read views and the on-demand scan
// trigger. JSON only; no rendering.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/atirdror123/sniperbot/internal/app"
	"github.com/atirdror123/sniperbot/internal/metrics"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// ServerConfig holds server configuration.
type ServerConfig struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP front for the engine: health, live signals, portfolio
// state, Prometheus metrics, and a POST trigger that runs one cycle.
type Server struct {
	router *mux.Router
	server *http.Server
	engine *app.Engine
	log    zerolog.Logger
}

// NewServer builds the router and the underlying http.Server.
func NewServer(config ServerConfig, engine *app.Engine, collector *metrics.Collector, logger zerolog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		engine: engine,
		log:    logger.With().Str("component", "http").Logger(),
	}

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/signals", s.handleSignals).Methods("GET")
	s.router.HandleFunc("/signals/history", s.handleSignalHistory).Methods("GET")
	s.router.HandleFunc("/portfolio", s.handlePortfolio).Methods("GET")
	s.router.HandleFunc("/scan", s.handleScan).Methods("POST")
	if collector != nil {
		s.router.Handle("/metrics", collector.Handler()).Methods("GET")
	}
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		requestID, _ := r.Context().Value(requestIDKey).(string)
		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// responseWrapper captures the status code for request logging.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
