package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrKind
	}{
		{http.StatusUnauthorized, ErrUnauthenticated},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrValidation},
		{http.StatusUnprocessableEntity, ErrValidation},
		{http.StatusRequestTimeout, ErrTransient},
		{http.StatusTooManyRequests, ErrTransient},
		{http.StatusInternalServerError, ErrTransient},
		{http.StatusBadGateway, ErrTransient},
		{http.StatusTeapot, ErrUnknown},
	}
	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(nil); got != "" {
		t.Errorf("Classify(nil) = %q, want empty", got)
	}
	if got := Classify(&Error{Kind: ErrForbidden}); got != ErrForbidden {
		t.Errorf("Classify = %q, want %q", got, ErrForbidden)
	}
	if got := Classify(context.Canceled); got != ErrUnknown {
		t.Errorf("Classify(non-gateway) = %q, want %q", got, ErrUnknown)
	}
}

func TestIsAuth(t *testing.T) {
	if !IsAuth(&Error{Kind: ErrUnauthenticated}) {
		t.Error("ErrUnauthenticated should call for re-auth")
	}
	if !IsAuth(&Error{Kind: ErrForbidden}) {
		t.Error("ErrForbidden should call for re-auth")
	}
	if IsAuth(&Error{Kind: ErrTransient}) {
		t.Error("transient failures must not trigger re-auth")
	}
}

func TestHTTPClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPClient(srv.URL, "secret-token")
	if _, err := c.List(context.Background(), KindTask, nil); err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestHTTPClient_RoutesAndMethods(t *testing.T) {
	type call struct{ method, path string }
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPClient(srv.URL, "")
	ctx := context.Background()
	c.List(ctx, KindTask, nil)
	c.Create(ctx, KindTask, map[string]any{"name": "x"})
	c.Update(ctx, KindTask, "t1", map[string]any{"name": "y"})
	c.Delete(ctx, KindTask, "t1")
	c.SyncIntegration(ctx, "g1", SyncFull)

	want := []call{
		{http.MethodGet, "/api/tasks"},
		{http.MethodPost, "/api/tasks"},
		{http.MethodPatch, "/api/tasks/t1"},
		{http.MethodDelete, "/api/tasks/t1"},
		{http.MethodPost, "/api/integrations/g1/sync"},
	}
	if len(calls) != len(want) {
		t.Fatalf("made %d calls, want %d", len(calls), len(want))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, calls[i], want[i])
		}
	}
}

func TestHTTPClient_ErrorBodyMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "name is required"})
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPClient(srv.URL, "")
	_, err := c.Create(context.Background(), KindTask, map[string]any{})
	if err == nil {
		t.Fatal("Create succeeded, want error")
	}
	ge, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type %T, want *Error", err)
	}
	if ge.Kind != ErrValidation || ge.Status != http.StatusUnprocessableEntity {
		t.Errorf("got kind=%q status=%d, want validation 422", ge.Kind, ge.Status)
	}
	if ge.Msg != "name is required" {
		t.Errorf("Msg = %q, want the backend's error body", ge.Msg)
	}
}

func TestHTTPClient_NetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewHTTPClient(srv.URL, "")
	_, err := c.List(context.Background(), KindTask, nil)
	if Classify(err) != ErrTransient {
		t.Errorf("network failure classified as %q, want transient", Classify(err))
	}
}
