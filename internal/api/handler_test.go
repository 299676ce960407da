//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/agent-studio/internal/chat"
	"github.com/ashureev/agent-studio/internal/config"
	"github.com/ashureev/agent-studio/internal/domain"
	"github.com/ashureev/agent-studio/internal/identity"
)

type fakeRepo struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	drafts  map[string]*domain.AgentDraft
	pingErr error
	saveErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:  make(map[string]*domain.User),
		drafts: make(map[string]*domain.AgentDraft),
	}
}

func (f *fakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	if user == nil {
		return nil, nil
	}
	copy := *user
	return &copy, nil
}

func (f *fakeRepo) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *user
	f.users[user.UserID] = &copy
	return nil
}

func (f *fakeRepo) UpdateLastSeen(_ context.Context, _ string, _ time.Time) error { return nil }

func (f *fakeRepo) GetDraft(_ context.Context, userID string) (*domain.AgentDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft := f.drafts[userID]
	if draft == nil {
		return nil, nil
	}
	copy := *draft
	return &copy, nil
}

func (f *fakeRepo) UpsertDraft(_ context.Context, userID string, draft *domain.AgentDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	draft.UpdatedAt = time.Unix(1_700_000_000, 0).UTC()
	copy := *draft
	f.drafts[userID] = &copy
	return nil
}

func (f *fakeRepo) DeleteDraft(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, userID)
	return nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return f.pingErr }
func (f *fakeRepo) Close() error                 { return nil }

type fakeModes map[string]chat.Mode

func (f fakeModes) Mode(userID, sessionID string) chat.Mode {
	if m, ok := f[userID+":"+sessionID]; ok {
		return m
	}
	return chat.ModeLive
}

func testConfig() *config.Config {
	return &config.Config{
		Backend:            config.BackendConfig{URL: "http://backend:8000", ChatPath: "/api/agent/chat"},
		Session:            config.SessionConfig{TTL: time.Hour},
		RateLimit:          config.RateLimitConfig{Requests: 20, Window: time.Minute},
		MaxRequestBodySize: 1 << 20,
	}
}

const testUser = "anon_0123456789abcdef0123456789abcdef"

func withCaller(req *http.Request, sessionID string) *http.Request {
	return req.WithContext(identity.WithIdentity(req.Context(), testUser, sessionID))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return got
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusConflict, "draft_save_in_progress")

	if w.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d", w.Code)
	}
	if got := decodeBody(t, w); got["error"] != "draft_save_in_progress" {
		t.Errorf("unexpected body %v", got)
	}
}

func TestGetMeThroughIdentityMiddleware(t *testing.T) {
	repo := newFakeRepo()
	h := NewHandler(repo, testConfig(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(identity.SessionHeaderName, "tab-1")
	rr := httptest.NewRecorder()
	identity.Middleware(repo, true)(http.HandlerFunc(h.GetMe)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	got := decodeBody(t, rr)
	if got["session_id"] != "tab-1" {
		t.Errorf("expected session tab-1, got %v", got["session_id"])
	}
	if _, ok := repo.users[got["user_id"].(string)]; !ok {
		t.Errorf("user %v was not persisted", got["user_id"])
	}
}

func TestGetMeUnknownUser(t *testing.T) {
	h := NewHandler(newFakeRepo(), testConfig(), nil, nil)
	rr := httptest.NewRecorder()
	h.GetMe(rr, withCaller(httptest.NewRequest(http.MethodGet, "/api/me", nil), "default"))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestGetConfig(t *testing.T) {
	tests := []struct {
		name       string
		backendURL string
		modes      ModeReporter
		wantMode   string
	}{
		{"live by default", "http://backend:8000", nil, "live"},
		{"session fell back", "http://backend:8000", fakeModes{testUser + ":tab-1": chat.ModeMock}, "mock"},
		{"no backend", "", nil, "mock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Backend.URL = tt.backendURL
			h := NewHandler(newFakeRepo(), cfg, tt.modes, nil)

			rr := httptest.NewRecorder()
			h.GetConfig(rr, withCaller(httptest.NewRequest(http.MethodGet, "/api/config", nil), "tab-1"))

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			got := decodeBody(t, rr)
			if got["mode"] != tt.wantMode {
				t.Errorf("mode = %v, want %s", got["mode"], tt.wantMode)
			}
			if got["backend_configured"] != (tt.backendURL != "") {
				t.Errorf("backend_configured = %v", got["backend_configured"])
			}
			if got["session_ttl_seconds"] != float64(3600) {
				t.Errorf("session_ttl_seconds = %v", got["session_ttl_seconds"])
			}
		})
	}
}

func TestRegisterRoutes(t *testing.T) {
	repo := newFakeRepo()
	h := NewHandler(repo, testConfig(), nil, nil)
	r := newRouter(h)

	for _, path := range []string{"/api/config", "/api/status", "/api/draft"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, withCaller(httptest.NewRequest(http.MethodGet, path, nil), "default"))
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, rr.Code)
		}
	}

	repo.pingErr = errors.New("disk I/O error")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with a broken database, got %d", rr.Code)
	}
}
