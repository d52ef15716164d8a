package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tandemhq/tandem/backend"
	"github.com/tandemhq/tandem/calendar"
	"github.com/tandemhq/tandem/config"
	"github.com/tandemhq/tandem/gateway"
	"github.com/tandemhq/tandem/integration"
	"github.com/tandemhq/tandem/notify"
	"github.com/tandemhq/tandem/session"
	"github.com/tandemhq/tandem/task"
)

// stubSource yields a fixed event set for backend syncs.
type stubSource struct {
	events []calendar.Event
}

func (s *stubSource) ListEvents(context.Context, time.Time, time.Time) ([]calendar.Event, error) {
	return s.events, nil
}

// testHarness runs the daemon server against a real reference backend.
type testHarness struct {
	ts    *httptest.Server
	token string
	sess  *session.Session
	back  *backend.Server
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	bst, err := backend.NewStore(filepath.Join(t.TempDir(), "backend.db"))
	if err != nil {
		t.Fatalf("open backend store: %v", err)
	}
	t.Cleanup(func() { bst.Close() })
	back := backend.NewServer(bst, "", nil)
	backTS := httptest.NewServer(back)
	t.Cleanup(backTS.Close)

	sess := session.New(gateway.NewHTTPClient(backTS.URL, ""), nil)
	t.Cleanup(sess.Close)
	if err := sess.FetchAll(context.Background()); err != nil {
		t.Fatalf("initial fetch: %v", err)
	}

	cfg := *config.Default()
	cfg.Auth.AdminPass = "hunter2"
	cfg.Auth.JWTSecret = "test-secret"
	s := New(cfg, sess, "test", nil)
	s.registerRoutes()
	ts := httptest.NewServer(s.mux)
	t.Cleanup(ts.Close)

	h := &testHarness{ts: ts, sess: sess, back: back}
	h.token = h.login(t)
	return h
}

func (h *testHarness) login(t *testing.T) string {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Username: "admin", Password: "hunter2"})
	resp, err := http.Post(h.ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return lr.Token
}

func (h *testHarness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestTasks_CreateListComplete(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/tasks", task.Task{
		Name:     "review designs",
		Status:   task.StatusPending,
		Priority: task.PriorityMedium,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	created := decode[task.Task](t, resp)
	if created.ID == "" {
		t.Fatal("created task has no id")
	}

	resp = h.do(t, http.MethodGet, "/api/tasks", nil)
	tasks := decode[[]task.Task](t, resp)
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Fatalf("list = %v, want the created task", tasks)
	}

	resp = h.do(t, http.MethodPatch, "/api/tasks/"+created.ID, map[string]any{"status": "complete"})
	done := decode[task.Task](t, resp)
	if done.Status != task.StatusComplete || done.CompletedAt == nil {
		t.Errorf("completed task = %+v, want complete with a timestamp", done)
	}

	resp = h.do(t, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}
	if h.sess.Tasks.Len() != 0 {
		t.Error("task still in the local collection after confirmed delete")
	}
}

func TestTasks_InvalidRejectedWith400(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/tasks", map[string]any{"status": "pending"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("nameless task create = %d, want 400", resp.StatusCode)
	}
	if h.sess.Tasks.Len() != 0 {
		t.Error("invalid task entered the collection")
	}
}

func TestTasks_ListFilters(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/api/tasks", task.Task{Name: "alpha report", Status: task.StatusPending})
	h.do(t, http.MethodPost, "/api/tasks", task.Task{Name: "beta cleanup", Status: task.StatusInProgress})

	resp := h.do(t, http.MethodGet, "/api/tasks?status=pending", nil)
	pending := decode[[]task.Task](t, resp)
	if len(pending) != 1 || pending[0].Name != "alpha report" {
		t.Errorf("status filter = %v, want only the pending task", pending)
	}

	resp = h.do(t, http.MethodGet, "/api/tasks?q=cleanup", nil)
	matched := decode[[]task.Task](t, resp)
	if len(matched) != 1 || matched[0].Name != "beta cleanup" {
		t.Errorf("query filter = %v, want only the matching task", matched)
	}
}

func TestBoard_LanesInFixedOrder(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/tasks", task.Task{Name: "a", Status: task.StatusPending})

	resp := h.do(t, http.MethodGet, "/api/board", nil)
	lanes := decode[[]map[string]any](t, resp)
	if len(lanes) != 4 {
		t.Fatalf("got %d lanes, want 4", len(lanes))
	}
	if lanes[0]["status"] != "pending" || lanes[3]["status"] != "cancelled" {
		t.Errorf("lane order = [%v ... %v], want pending first and cancelled last",
			lanes[0]["status"], lanes[3]["status"])
	}
}

func TestMessages_RequireExistingConversation(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/messages", map[string]any{
		"conversation_id": "ghost",
		"content":         "hello",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("orphan message = %d, want 400", resp.StatusCode)
	}

	resp = h.do(t, http.MethodPost, "/api/conversations", map[string]any{
		"type":         "direct",
		"participants": []string{"m1", "m2"},
	})
	conv := decode[map[string]any](t, resp)

	resp = h.do(t, http.MethodPost, "/api/messages", map[string]any{
		"conversation_id": conv["id"],
		"content":         "hello",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("message into existing conversation = %d, want 201", resp.StatusCode)
	}

	resp = h.do(t, http.MethodGet, "/api/conversations/"+conv["id"].(string)+"/messages", nil)
	msgs := decode[[]map[string]any](t, resp)
	if len(msgs) != 1 {
		t.Errorf("conversation has %d messages, want 1", len(msgs))
	}
}

func TestNotifications_ActiveFilter(t *testing.T) {
	h := newHarness(t)

	h.sess.Notifications.Seed([]notify.Notification{
		{ID: "n1", Title: "fresh", Priority: notify.PriorityLow, Timestamp: time.Now()},
		{ID: "n2", Title: "stale", Priority: notify.PriorityLow, Timestamp: time.Now().Add(-time.Hour)},
		{ID: "n3", Title: "urgent", Priority: notify.PriorityUrgent, Timestamp: time.Now().Add(-time.Hour)},
	})

	resp := h.do(t, http.MethodGet, "/api/notifications?active=true", nil)
	active := decode[[]notify.Notification](t, resp)
	if len(active) != 2 {
		t.Fatalf("active = %v, want the fresh and urgent ones", active)
	}

	resp = h.do(t, http.MethodGet, "/api/notifications", nil)
	all := decode[[]notify.Notification](t, resp)
	if len(all) != 3 {
		t.Errorf("unfiltered list has %d, want all 3", len(all))
	}
}

func TestToasts_PushListDismiss(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/toasts", map[string]any{
		"message":  "saved",
		"priority": "low",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("push toast = %d, want 201", resp.StatusCode)
	}
	pushed := decode[map[string]string](t, resp)

	resp = h.do(t, http.MethodGet, "/api/toasts", nil)
	toasts := decode[[]notify.Notice](t, resp)
	if len(toasts) != 1 || toasts[0].ID != pushed["id"] {
		t.Fatalf("toasts = %v, want the pushed one", toasts)
	}

	resp = h.do(t, http.MethodDelete, "/api/toasts/"+pushed["id"], nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("dismiss = %d, want 204", resp.StatusCode)
	}
}

func TestToasts_EmptyMessageRejected(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodPost, "/api/toasts", map[string]any{"priority": "low"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty toast = %d, want 400", resp.StatusCode)
	}
}

func TestAgendaDay_InvalidDate(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodGet, "/api/agenda/04-04-2025", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid date = %d, want 400", resp.StatusCode)
	}
}

func TestAgenda_MergesTasksAndSyncedEvents(t *testing.T) {
	h := newHarness(t)

	due := time.Now().Add(2 * time.Hour)
	h.do(t, http.MethodPost, "/api/tasks", task.Task{
		Name: "prep slides", Status: task.StatusPending, DueDate: &due,
	})

	// Register a calendar source on the backend, declare the integration,
	// and trigger a sync through the daemon.
	start := time.Now().Add(time.Hour)
	end := start.Add(30 * time.Minute)
	h.back.RegisterSource("g1", &stubSource{events: []calendar.Event{
		{ID: "e1", Summary: "standup", Start: calendar.EventTime{DateTime: &start}, End: calendar.EventTime{DateTime: &end}},
	}})
	if _, err := h.sess.Integrations.Create(context.Background(), integration.Integration{
		ID:      "g1",
		Type:    "google",
		Status:  integration.StatusConnected,
		Healthy: true,
	}); err != nil {
		t.Fatalf("create integration: %v", err)
	}

	resp := h.do(t, http.MethodPost, "/api/integrations/g1/sync", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync = %d, want 200", resp.StatusCode)
	}

	resp = h.do(t, http.MethodGet, "/api/agenda", nil)
	items := decode[[]calendar.Item](t, resp)
	if len(items) != 2 {
		t.Fatalf("agenda has %d items, want the event and the task", len(items))
	}
	if items[0].ID != "e1" || items[1].Title != "prep slides" {
		t.Errorf("agenda order = [%s %s], want the earlier event first", items[0].ID, items[1].Title)
	}
}

func TestActivity_BackfillsChangeEvents(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/tasks", task.Task{Name: "a", Status: task.StatusPending})

	resp := h.do(t, http.MethodGet, "/api/activity?limit=10", nil)
	history := decode[[]map[string]any](t, resp)
	if len(history) == 0 {
		t.Fatal("activity history empty after a mutation")
	}
	last := history[len(history)-1]
	if last["type"] != "collection_changed" || last["kind"] != "tasks" {
		t.Errorf("last activity = %v, want a tasks collection change", last)
	}
}

func TestSSE_SendsConnectedEvent(t *testing.T) {
	h := newHarness(t)

	req, _ := http.NewRequest(http.MethodGet, h.ts.URL+"/events?token="+h.token, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		t.Fatalf("connect SSE: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read first event: %v", err)
	}
	if !strings.Contains(line, `"type":"connected"`) {
		t.Errorf("first event = %q, want the connected handshake", line)
	}
}

func TestSSE_RejectsBadToken(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.ts.URL + "/events?token=bogus")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("SSE with bad token = %d, want 401", resp.StatusCode)
	}
}

func TestSSE_RequiresToken(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.ts.URL + "/events")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("SSE without a token = %d, want 401", resp.StatusCode)
	}
}
