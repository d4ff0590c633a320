// Package server provides the operator HTTP surface for the stereo
// acquisition service: health, session log, live preview, and live
// stats.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/stereorig/internal/grabber"
	"github.com/ayusman/stereorig/internal/server/api"
	"github.com/ayusman/stereorig/internal/store"
)

// Config holds the server configuration.
type Config struct {
	Store *store.Store
	Pairs *PairCache
	Stats func() grabber.Stats
}

// Server represents the HTTP server for the acquisition service.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register session API handler if Store is configured
	if s.config.Store != nil {
		sessionHandler := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessionHandler)
		s.mux.Handle("/api/sessions/", sessionHandler)
	}

	// Register preview stream endpoint if a pair cache is configured
	if s.config.Pairs != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Pairs))
	}

	// Register stats WebSocket endpoint if a stats source is configured
	if s.config.Stats != nil {
		s.mux.Handle("/api/stats", NewStatsHandler(s.config.Stats))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
