package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tandemhq/tandem/calendar"
	"github.com/tandemhq/tandem/gateway"
	"github.com/tandemhq/tandem/internal/token"
	"github.com/tandemhq/tandem/task"
)

// EventSource fetches events from an external provider during a sync.
type EventSource interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error)
}

// Server exposes the gateway wire API over HTTP.
type Server struct {
	store   *Store
	logger  *slog.Logger
	secret  string // JWT secret; empty disables auth (dev only)
	sources map[string]EventSource
	mux     *http.ServeMux
}

// NewServer creates a backend server over the given store.
func NewServer(store *Store, secret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:   store,
		logger:  logger.With(slog.String("component", "backend")),
		secret:  secret,
		sources: make(map[string]EventSource),
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// RegisterSource attaches an event source used when the given integration
// syncs. Call before serving.
func (s *Server) RegisterSource(integrationID string, src EventSource) {
	s.sources[integrationID] = src
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("GET /api/{kind}", s.auth(http.HandlerFunc(s.handleList)))
	s.mux.Handle("POST /api/{kind}", s.auth(http.HandlerFunc(s.handleCreate)))
	s.mux.Handle("PATCH /api/{kind}/{id}", s.auth(http.HandlerFunc(s.handleUpdate)))
	s.mux.Handle("DELETE /api/{kind}/{id}", s.auth(http.HandlerFunc(s.handleDelete)))
	s.mux.Handle("GET /api/integrations/{id}/events", s.auth(http.HandlerFunc(s.handleEvents)))
	s.mux.Handle("POST /api/integrations/{id}/sync", s.auth(http.HandlerFunc(s.handleSync)))
}

// auth enforces bearer-token authentication when a secret is configured.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		if _, err := token.Verify(s.secret, strings.TrimPrefix(header, "Bearer ")); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

var knownKinds = map[string]bool{
	string(gateway.KindTask):         true,
	string(gateway.KindConversation): true,
	string(gateway.KindMessage):      true,
	string(gateway.KindNotification): true,
	string(gateway.KindMember):       true,
	string(gateway.KindIntegration):  true,
}

func (s *Server) kindOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	kind := r.PathValue("kind")
	if !knownKinds[kind] {
		writeError(w, http.StatusNotFound, "unknown entity kind "+kind)
		return "", false
	}
	return kind, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindOf(w, r)
	if !ok {
		return
	}
	docs, err := s.store.List(kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindOf(w, r)
	if !ok {
		return
	}
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.checkCreate(kind, doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if kind == string(gateway.KindTask) {
		var err error
		if doc, err = normalizeTaskDoc(doc); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	created, err := s.store.Create(kind, doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeRaw(w, http.StatusCreated, created)
}

// checkCreate enforces cross-entity invariants the document store cannot.
func (s *Server) checkCreate(kind string, doc map[string]any) error {
	if kind != string(gateway.KindMessage) {
		return nil
	}
	convID, _ := doc["conversation_id"].(string)
	if convID == "" {
		return fmt.Errorf("message conversation_id is required")
	}
	if _, err := s.store.Get(string(gateway.KindConversation), convID); err != nil {
		return fmt.Errorf("conversation %s does not exist", convID)
	}
	return nil
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindOf(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	updated, err := s.store.Update(kind, id, fields)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if kind == string(gateway.KindTask) {
		updated, err = s.normalizeStoredTask(id, updated)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeRaw(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindOf(w, r)
	if !ok {
		return
	}
	err := s.store.Delete(kind, r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.Get(string(gateway.KindIntegration), id); err != nil {
		writeError(w, http.StatusNotFound, "integration not found")
		return
	}
	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		from, _ = time.Parse(time.RFC3339, v)
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, _ = time.Parse(time.RFC3339, v)
	}
	events, err := s.store.ListEvents(id, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.Get(string(gateway.KindIntegration), id); err != nil {
		writeError(w, http.StatusNotFound, "integration not found")
		return
	}
	src, ok := s.sources[id]
	if !ok {
		writeError(w, http.StatusNotFound, "no sync source registered for integration "+id)
		return
	}

	mode := gateway.SyncMode(r.URL.Query().Get("mode"))
	now := time.Now()
	from := now.AddDate(0, -1, 0)
	to := now.AddDate(0, 3, 0)
	if mode == gateway.SyncIncremental {
		from = now.AddDate(0, 0, -1)
	}

	events, err := src.ListEvents(r.Context(), from, to)
	if err != nil {
		s.markIntegration(id, false)
		writeError(w, http.StatusBadGateway, "sync failed: "+err.Error())
		return
	}

	rows := make([]eventRow, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		row := eventRow{ID: ev.ID, Data: string(data)}
		if start, ok := ev.Start.Instant(time.UTC, false); ok {
			row.StartAt = &start
		}
		rows = append(rows, row)
	}
	if err := s.store.ReplaceEvents(id, rows); err != nil {
		s.markIntegration(id, false)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.markIntegration(id, true)
	s.logger.Info("integration synced",
		slog.String("integration", id),
		slog.Int("events", len(rows)),
	)
	writeJSON(w, http.StatusOK, map[string]any{"synced": len(rows)})
}

// markIntegration records sync health on the integration document. The
// config map is opaque to us apart from last_sync, so the stored keys are
// carried over rather than replaced.
func (s *Server) markIntegration(id string, healthy bool) {
	fields := map[string]any{"healthy": healthy}
	if healthy {
		fields["status"] = "connected"
		cfg := map[string]any{}
		if raw, err := s.store.Get(string(gateway.KindIntegration), id); err == nil {
			var doc map[string]any
			if json.Unmarshal(raw, &doc) == nil {
				if existing, ok := doc["config"].(map[string]any); ok {
					cfg = existing
				}
			}
		}
		cfg["last_sync"] = time.Now().UTC().Format(time.RFC3339)
		fields["config"] = cfg
	} else {
		fields["status"] = "error"
	}
	if _, err := s.store.Update(string(gateway.KindIntegration), id, fields); err != nil {
		s.logger.Warn("mark integration", slog.String("integration", id), slog.Any("err", err))
	}
}

// normalizeTaskDoc applies the completion invariant to an incoming task
// document: completed_at is present exactly when status is complete.
func normalizeTaskDoc(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("invalid task document: %w", err)
	}
	if err := task.Validate(t); err != nil {
		return nil, err
	}
	t = task.Normalize(t, time.Now().UTC())

	out, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(out, &normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// normalizeStoredTask re-applies the completion invariant after a partial
// update and persists the result.
func (s *Server) normalizeStoredTask(id string, stored json.RawMessage) (json.RawMessage, error) {
	var t task.Task
	if err := json.Unmarshal(stored, &t); err != nil {
		return nil, fmt.Errorf("decode stored task: %w", err)
	}
	fixed := task.Normalize(t, time.Now().UTC())
	data, err := json.Marshal(fixed)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return s.store.Put(string(gateway.KindTask), id, doc)
}
