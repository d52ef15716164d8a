package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/tandemhq/tandem/config"
	"github.com/tandemhq/tandem/session"
)

// newAuthServer builds a Server over an empty session, suitable for
// exercising the auth surface without a backend.
func newAuthServer(t *testing.T, cfg config.Config) (*Server, *httptest.Server) {
	t.Helper()
	sess := session.New(nil, nil)
	t.Cleanup(sess.Close)

	s := New(cfg, sess, "test", nil)
	s.registerRoutes()
	ts := httptest.NewServer(s.mux)
	t.Cleanup(ts.Close)
	return s, ts
}

func postLogin(t *testing.T, ts *httptest.Server, username, password string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestLogin_PlaintextDevPassword(t *testing.T) {
	cfg := *config.Default()
	cfg.Auth.AdminPass = "hunter2"
	_, ts := newAuthServer(t, cfg)

	resp := postLogin(t, ts, "admin", "hunter2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if lr.Token == "" {
		t.Fatal("login returned no token")
	}
}

func TestLogin_BcryptPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	cfg := *config.Default()
	cfg.Auth.AdminPass = string(hash)
	_, ts := newAuthServer(t, cfg)

	if resp := postLogin(t, ts, "admin", "s3cret"); resp.StatusCode != http.StatusOK {
		t.Errorf("login with correct password = %d, want 200", resp.StatusCode)
	}
	if resp := postLogin(t, ts, "admin", "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("login with wrong password = %d, want 401", resp.StatusCode)
	}
}

func TestLogin_RejectsUnknownUser(t *testing.T) {
	cfg := *config.Default()
	cfg.Auth.AdminPass = "hunter2"
	_, ts := newAuthServer(t, cfg)

	if resp := postLogin(t, ts, "mallory", "hunter2"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("login as unknown user = %d, want 401", resp.StatusCode)
	}
}

func TestLogin_EmptyConfiguredPassword(t *testing.T) {
	_, ts := newAuthServer(t, *config.Default())

	if resp := postLogin(t, ts, "admin", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("login with empty password = %d, want 401 when none configured", resp.StatusCode)
	}
}

func TestAPI_RequiresToken(t *testing.T) {
	cfg := *config.Default()
	cfg.Auth.AdminPass = "hunter2"
	_, ts := newAuthServer(t, cfg)

	resp, err := http.Get(ts.URL + "/api/tasks")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated /api/tasks = %d, want 401", resp.StatusCode)
	}
}

func TestAPI_StatusIsPublic(t *testing.T) {
	_, ts := newAuthServer(t, *config.Default())

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/api/status = %d, want 200 without auth", resp.StatusCode)
	}
}

func TestAuthMe(t *testing.T) {
	cfg := *config.Default()
	cfg.Auth.AdminPass = "hunter2"
	cfg.Auth.JWTSecret = "fixed-secret"
	_, ts := newAuthServer(t, cfg)

	var lr loginResponse
	resp := postLogin(t, ts, "admin", "hunter2")
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+lr.Token)
	me, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer me.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(me.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["username"] != "admin" {
		t.Errorf("username = %q, want admin", body["username"])
	}
}

func TestJWTSecret_GeneratedOnce(t *testing.T) {
	s, _ := newAuthServer(t, *config.Default())

	first := s.jwtSecret()
	if first == "" {
		t.Fatal("generated secret is empty")
	}
	if s.jwtSecret() != first {
		t.Error("generated secret not stable across calls")
	}
}
