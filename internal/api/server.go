// Package api exposes the conversational engine and persona management
// over HTTP. Identity is asserted by a fronting proxy via headers; the
// server itself performs no authentication.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Engine      Responder      // Required
	Companions  CompanionStore // Required
	Indexer     Indexer        // Optional: nil disables backstory indexing
	Pool        *pgxpool.Pool  // Optional: nil degrades /ready to liveness
	CORSOrigins []string       // Allowed origins for CORS
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Companions == nil {
		return nil, errors.New("companion store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{engine: cfg.Engine, logger: logger}
	comp := &companionHandler{store: cfg.Companions, indexer: cfg.Indexer, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/chat/{companionId}", ch.send)

	mux.HandleFunc("POST /api/v1/companions", comp.create)
	mux.HandleFunc("GET /api/v1/companions/{id}", comp.get)
	mux.HandleFunc("PATCH /api/v1/companions/{id}", comp.update)
	mux.HandleFunc("DELETE /api/v1/companions/{id}", comp.remove)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → Identity → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before Identity so preflight OPTIONS never
	// requires identity headers.
	var handler http.Handler = mux
	handler = identityMiddleware()(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
