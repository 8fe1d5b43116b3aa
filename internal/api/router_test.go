package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dhammastream/backoffice/internal/api/handler"
	"github.com/dhammastream/backoffice/internal/core/domain"
	"github.com/dhammastream/backoffice/internal/core/presence"
	"github.com/dhammastream/backoffice/internal/core/service"
	"github.com/dhammastream/backoffice/internal/infrastructure/http/handlers"
	"github.com/dhammastream/backoffice/internal/infrastructure/queue"
	"github.com/dhammastream/backoffice/internal/infrastructure/realtime"
)

// memRepo is a minimal in-memory user store.
type memRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (r *memRepo) get(id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(id)
	if err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) List(context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memRepo) UpsertSession(_ context.Context, ident *domain.ExternalIdentity, digest string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := "id-" + ident.Subject
	u, ok := r.users[id]
	if !ok {
		u = &domain.User{ID: id, GoogleID: ident.Subject, CreatedAt: now}
		r.users[id] = u
	}
	u.Email = ident.Email
	u.DisplayName = ident.Name
	u.SessionSecret = &digest
	u.UpdatedAt = now
	cp := *u
	return &cp, nil
}

func (r *memRepo) ClearSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(id)
	if err != nil {
		return err
	}
	u.SessionSecret, u.IsOnline = nil, false
	return nil
}

func (r *memRepo) ClearSessionIf(_ context.Context, id, digest string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(id)
	if err != nil || u.SessionSecret == nil || *u.SessionSecret != digest {
		return false, nil
	}
	u.SessionSecret, u.IsOnline = nil, false
	return true, nil
}

func (r *memRepo) SetAdmin(_ context.Context, id string, isAdmin bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(id)
	if err != nil {
		return nil, err
	}
	u.IsAdmin = isAdmin
	cp := *u
	return &cp, nil
}

func (r *memRepo) SetPresence(_ context.Context, id string, online bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, err := r.get(id); err == nil {
		u.IsOnline, u.LastActiveAt = online, at
	}
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.get(id); err != nil {
		return err
	}
	delete(r.users, id)
	return nil
}

// dotVerifier accepts "<any>.<subject>.<nonce>" assertions.
type dotVerifier struct{}

func (dotVerifier) Verify(_ context.Context, credential string) (*domain.ExternalIdentity, error) {
	parts := strings.Split(credential, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("bad credential")
	}
	return &domain.ExternalIdentity{
		Subject:   parts[1],
		Email:     parts[1] + "@example.org",
		Name:      parts[1],
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

type allowGuard struct{}

func (allowGuard) Claim(context.Context, string, time.Duration) (bool, error) { return true, nil }

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type app struct {
	t    *testing.T
	srv  *httptest.Server
	repo *memRepo
}

func newApp(t *testing.T) *app {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zerolog.Nop()
	repo := &memRepo{users: make(map[string]*domain.User)}
	exec := queue.NewSerial(0, log)
	exec.Start(ctx)

	pres := presence.NewService(repo, exec, log)
	hub := realtime.NewHub(realtime.Options{}, log)
	if err := pres.Attach(hub); err != nil {
		t.Fatalf("attach: %v", err)
	}

	tokens := service.NewTokenIssuer("0123456789abcdef0123456789abcdef", "backoffice", time.Hour)
	e := NewRouter(Dependencies{
		Log:       log,
		Sessions:  service.NewSessionService(repo, dotVerifier{}, allowGuard{}, tokens, pres, log),
		Admin:     service.NewAdminService(repo, pres, log),
		Presence:  pres,
		Hub:       hub,
		Cookie:    handler.CookieConfig{Name: "session", TTL: time.Hour},
		Readiness: map[string]handlers.Pinger{"mongodb": okPinger{}, "redis": okPinger{}},
		Metrics:   prometheus.NewRegistry(),
	})

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return &app{t: t, srv: srv, repo: repo}
}

func (a *app) do(method, path, token, body string) (int, map[string]any) {
	a.t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, strings.NewReader(body))
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (a *app) login(subject, nonce string) (token, userID string) {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/auth/login", "", `{"credential":"hdr.`+subject+`.`+nonce+`"}`)
	if code != http.StatusOK {
		a.t.Fatalf("login %s: expected 200, got %d %v", subject, code, body)
	}
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

func TestRouter_SingleActiveSession(t *testing.T) {
	a := newApp(t)

	tokenA, _ := a.login("alice", "1")
	if code, _ := a.do(http.MethodGet, "/auth/me", tokenA, ""); code != http.StatusOK {
		t.Fatalf("device A: expected 200, got %d", code)
	}

	tokenB, _ := a.login("alice", "2")
	code, body := a.do(http.MethodGet, "/auth/me", tokenA, "")
	if code != http.StatusUnauthorized || body["error"] != "please re-authenticate" {
		t.Fatalf("device A after B signed in: expected 401, got %d %v", code, body)
	}
	if code, _ := a.do(http.MethodGet, "/auth/me", tokenB, ""); code != http.StatusOK {
		t.Fatalf("device B: expected 200, got %d", code)
	}

	if code, _ := a.do(http.MethodPost, "/auth/logout", tokenB, ""); code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", code)
	}
	if code, _ := a.do(http.MethodGet, "/auth/me", tokenB, ""); code != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", code)
	}
}

func TestRouter_LoginRejectsBadPayload(t *testing.T) {
	a := newApp(t)

	if code, _ := a.do(http.MethodPost, "/auth/login", "", `{}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if code, _ := a.do(http.MethodPost, "/auth/login", "", `{"credential":"not-a-token"}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestRouter_AdminRevocation(t *testing.T) {
	a := newApp(t)

	adminToken, adminID := a.login("root", "1")
	bobToken, bobID := a.login("bob", "1")

	code, body := a.do(http.MethodGet, "/admin/users", adminToken, "")
	if code != http.StatusForbidden {
		t.Fatalf("non-admin: expected 403, got %d %v", code, body)
	}

	if _, err := a.repo.SetAdmin(context.Background(), adminID, true); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if code, _ := a.do(http.MethodGet, "/admin/presence", adminToken, ""); code != http.StatusOK {
		t.Fatalf("admin flag must apply on the next request, got %d", code)
	}

	code, body = a.do(http.MethodDelete, "/admin/users/"+adminID, adminToken, "")
	if code != http.StatusForbidden || body["error"] != "cannot delete your own account" {
		t.Fatalf("self delete: expected 403, got %d %v", code, body)
	}

	if code, _ := a.do(http.MethodPost, "/admin/users/"+bobID+"/revoke-session", adminToken, ""); code != http.StatusNoContent {
		t.Fatalf("revoke: expected 204, got %d", code)
	}
	if code, _ := a.do(http.MethodGet, "/auth/me", bobToken, ""); code != http.StatusUnauthorized {
		t.Fatalf("revoked user: expected 401, got %d", code)
	}

	if code, _ := a.do(http.MethodDelete, "/admin/users/"+bobID, adminToken, ""); code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", code)
	}
	if code, _ := a.do(http.MethodDelete, "/admin/users/"+bobID, adminToken, ""); code != http.StatusNotFound {
		t.Fatalf("delete again: expected 404, got %d", code)
	}
}

func TestRouter_Probes(t *testing.T) {
	a := newApp(t)

	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		resp, err := http.Get(a.srv.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}
