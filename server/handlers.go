package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/tandemhq/tandem/calendar"
	"github.com/tandemhq/tandem/chat"
	"github.com/tandemhq/tandem/gateway"
	"github.com/tandemhq/tandem/notify"
	"github.com/tandemhq/tandem/task"
	"github.com/tandemhq/tandem/view"
)

// registerAPIRoutes wires the store-backed REST API.
func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", s.listTasks)
	mux.HandleFunc("POST /api/tasks", s.createTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.updateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.removeTask)
	mux.HandleFunc("GET /api/board", s.board)

	mux.HandleFunc("GET /api/conversations", s.listConversations)
	mux.HandleFunc("POST /api/conversations", s.createConversation)
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.listMessages)
	mux.HandleFunc("POST /api/messages", s.sendMessage)
	mux.HandleFunc("POST /api/messages/{id}/read", s.markMessageRead)

	mux.HandleFunc("GET /api/notifications", s.listNotifications)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.markNotificationRead)
	mux.HandleFunc("DELETE /api/notifications/{id}", s.dismissNotification)

	mux.HandleFunc("GET /api/toasts", s.listToasts)
	mux.HandleFunc("POST /api/toasts", s.pushToast)
	mux.HandleFunc("DELETE /api/toasts/{id}", s.dismissToast)

	mux.HandleFunc("GET /api/members", s.listMembers)

	mux.HandleFunc("GET /api/integrations", s.listIntegrations)
	mux.HandleFunc("POST /api/integrations/{id}/sync", s.syncIntegration)

	mux.HandleFunc("GET /api/agenda", s.agenda)
	mux.HandleFunc("GET /api/agenda/{date}", s.agendaDay)

	mux.HandleFunc("POST /api/refresh", s.refresh)
	mux.HandleFunc("GET /api/activity", s.activity)
}

// activity backfills recent change events for a freshly connected UI.
func (s *Server) activity(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, s.sess.Bus.History(limit))
}

// --- Task handlers ---

// listTasks applies the active view filters from query parameters; with no
// parameters it returns the whole collection in store order (newest-first).
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := view.Filter{
		Status:   task.Status(q.Get("status")),
		Assignee: q.Get("assignee"),
		Query:    q.Get("q"),
	}
	switch q.Get("due") {
	case "today":
		now := time.Now()
		f.DueFrom, f.DueTo = now, now
	case "week":
		now := time.Now()
		f.DueFrom, f.DueTo = now, now.AddDate(0, 0, 6)
	}

	tasks := view.Apply(s.sess.Tasks.Items(), s.sess.Directory(), f)
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	created, err := s.sess.Tasks.Create(r.Context(), t)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	updated, err := s.sess.Tasks.Update(r.Context(), id, fields)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) removeTask(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.Tasks.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// board returns the kanban lanes: a stable status partition of the task
// collection.
func (s *Server) board(w http.ResponseWriter, _ *http.Request) {
	partition := view.PartitionByStatus(s.sess.Tasks.Items())
	lanes := make([]map[string]any, 0, len(view.Lanes))
	for _, status := range view.Lanes {
		tasks := partition[status]
		if tasks == nil {
			tasks = []task.Task{}
		}
		lanes = append(lanes, map[string]any{
			"status": status,
			"tasks":  tasks,
		})
	}
	writeJSON(w, http.StatusOK, lanes)
}

// --- Conversation / message handlers ---

func (s *Server) listConversations(w http.ResponseWriter, _ *http.Request) {
	convs := s.sess.Conversations.Items()
	if convs == nil {
		convs = []chat.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	var c chat.Conversation
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	created, err := s.sess.Conversations.Create(r.Context(), c)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	convID := r.PathValue("id")
	msgs := s.sess.Messages.Select(func(m chat.Message) bool {
		return m.ConversationID == convID
	})
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var m chat.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if _, ok := s.sess.Conversations.ByID(m.ConversationID); !ok {
		writeJSONError(w, http.StatusBadRequest, "conversation not found")
		return
	}
	created, err := s.sess.Messages.Create(r.Context(), m)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) markMessageRead(w http.ResponseWriter, r *http.Request) {
	updated, err := s.sess.Messages.Update(r.Context(), r.PathValue("id"), map[string]any{"is_read": true})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// --- Notification handlers ---

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	all := s.sess.Notifications.Items()
	if r.URL.Query().Get("active") == "true" {
		all = notify.Active(all, time.Now())
	}
	if all == nil {
		all = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	updated, err := s.sess.Notifications.Update(r.Context(), r.PathValue("id"), map[string]any{"read": true})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) dismissNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.Notifications.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Toast handlers ---

func (s *Server) listToasts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Toasts.Active())
}

func (s *Server) pushToast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message  string          `json:"message"`
		Priority notify.Priority `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "toast message is required")
		return
	}
	id := s.sess.Toasts.Push(req.Message, req.Priority)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) dismissToast(w http.ResponseWriter, r *http.Request) {
	s.sess.Toasts.Dismiss(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// --- Member / integration handlers ---

func (s *Server) listMembers(w http.ResponseWriter, _ *http.Request) {
	members := s.sess.Members.Items()
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) listIntegrations(w http.ResponseWriter, _ *http.Request) {
	integrations := s.sess.Integrations.Items()
	writeJSON(w, http.StatusOK, integrations)
}

func (s *Server) syncIntegration(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	mode := gateway.SyncMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = gateway.SyncFull
	}
	now := time.Now()
	err := s.sess.Sync.Trigger(r.Context(), id, mode, now.AddDate(0, -1, 0), now.AddDate(0, 3, 0))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	// Pick up status/last_sync changes recorded by the backend.
	_ = s.sess.Integrations.FetchAll(r.Context(), nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

// --- Agenda handlers ---

func (s *Server) agenda(w http.ResponseWriter, _ *http.Request) {
	items := s.sess.Agenda(time.Local)
	if items == nil {
		items = []calendar.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// agendaDay returns one day bucket. The date path segment uses YYYY-MM-DD.
func (s *Server) agendaDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := time.ParseInLocation("2006-01-02", date, time.Local); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid date "+date)
		return
	}
	items := s.sess.AgendaByDay(time.Local)[date]
	if items == nil {
		items = []calendar.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// --- Refresh ---

// refresh re-fetches every collection and re-pulls integration events. Store
// failures keep last-known-good data, so a partial failure still returns the
// per-family errors without clearing anything.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	err := s.sess.FetchAll(r.Context())
	now := time.Now()
	s.sess.RefreshEvents(r.Context(), now.AddDate(0, -1, 0), now.AddDate(0, 3, 0))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "partial", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
