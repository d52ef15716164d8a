// Package server implements the local HTTP surface the UI talks to: REST
// over the session's domain stores, JWT auth, and SSE change events.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tandemhq/tandem/config"
	"github.com/tandemhq/tandem/events"
	"github.com/tandemhq/tandem/gateway"
	"github.com/tandemhq/tandem/session"
)

// Server is the Tandem daemon HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger
	sess    *session.Session

	// SSE clients
	sseMu      sync.RWMutex
	sseClients map[chan []byte]struct{}

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	startTime time.Time
	version   string
}

// New creates a new Server over the given session.
func New(cfg config.Config, sess *session.Session, ver string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		logger:     logger,
		sess:       sess,
		sseClients: make(map[chan []byte]struct{}),
		startTime:  time.Now(),
		version:    ver,
	}
	sess.Bus.Subscribe(func(ev events.Event) {
		s.BroadcastEvent(string(ev.Type), ev)
	})
	return s
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	s.registerRoutes()

	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":8940"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	// Public routes (no auth required)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	// SSE — auth handled inline because EventSource can't set headers
	s.mux.HandleFunc("GET /events", s.handleSSE)

	// Protected API — wrapped in auth middleware
	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps a classified gateway error onto an HTTP status.
func writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch gateway.Classify(err) {
	case gateway.ErrValidation:
		status = http.StatusBadRequest
	case gateway.ErrUnauthenticated:
		status = http.StatusUnauthorized
	case gateway.ErrForbidden:
		status = http.StatusForbidden
	case gateway.ErrNotFound:
		status = http.StatusNotFound
	case gateway.ErrTransient:
		status = http.StatusBadGateway
	}
	writeJSONError(w, status, err.Error())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Truncate(time.Second).String(),
	})
}

// handleSSE implements Server-Sent Events for real-time updates.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// Auth via query token param for SSE (EventSource can't set headers).
	// The stream carries store state, so a token is required just like the
	// REST middleware.
	tok := r.URL.Query().Get("token")
	if tok == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := s.verifyToken(tok); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	ch := make(chan []byte, 64)
	s.sseMu.Lock()
	s.sseClients[ch] = struct{}{}
	s.sseMu.Unlock()

	defer func() {
		s.sseMu.Lock()
		delete(s.sseClients, ch)
		s.sseMu.Unlock()
		close(ch)
	}()

	// Send initial connected event
	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n") //nolint:errcheck
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			lines := strings.Split(string(data), "\n")
			for _, line := range lines {
				fmt.Fprintf(w, "data: %s\n", line) //nolint:errcheck
			}
			fmt.Fprintln(w) //nolint:errcheck
			flusher.Flush()
		}
	}
}

// BroadcastEvent sends a JSON-encoded event to all connected SSE clients.
func (s *Server) BroadcastEvent(eventType string, payload any) {
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		s.logger.Error("broadcast event marshal", slog.Any("err", err))
		return
	}

	s.sseMu.RLock()
	defer s.sseMu.RUnlock()
	for ch := range s.sseClients {
		select {
		case ch <- data:
		default:
			// Client channel full, skip
		}
	}
}
