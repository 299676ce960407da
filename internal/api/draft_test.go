//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/agent-studio/internal/domain"
)

func TestDraftLifecycle(t *testing.T) {
	repo := newFakeRepo()
	r := newRouter(NewHandler(repo, testConfig(), nil, nil))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, withCaller(httptest.NewRequest(http.MethodGet, "/api/draft", nil), "default"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var empty domain.AgentDraft
	if err := json.NewDecoder(rr.Body).Decode(&empty); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if empty.Name != "" || empty.DisplayName() != domain.DefaultAgentName {
		t.Errorf("expected an empty draft, got %+v", empty)
	}

	body := `{"name":"Helper","systemInstruction":"Be brief.","model":"gemini-2.5-flash","enabledCapabilities":{"webBrowsing":true}}`
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, withCaller(httptest.NewRequest(http.MethodPut, "/api/draft", strings.NewReader(body)), "default"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	saved := repo.drafts[testUser]
	if saved == nil || saved.Name != "Helper" || !saved.Capabilities.WebBrowsing {
		t.Fatalf("draft not saved: %+v", saved)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, withCaller(httptest.NewRequest(http.MethodGet, "/api/draft", nil), "default"))
	var got domain.AgentDraft
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "Helper" || got.Model != "gemini-2.5-flash" || got.UpdatedAt.IsZero() {
		t.Errorf("unexpected draft %+v", got)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, withCaller(httptest.NewRequest(http.MethodDelete, "/api/draft", nil), "default"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if _, ok := repo.drafts[testUser]; ok {
		t.Error("draft still present after delete")
	}
}

func TestPutDraftRejects(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		maxBody  int64
		saveErr  error
		wantCode int
	}{
		{"malformed", `{"name":`, 1 << 20, nil, http.StatusBadRequest},
		{"name too long", `{"name":"` + strings.Repeat("x", domain.MaxNameLength+1) + `"}`, 1 << 20, nil, http.StatusBadRequest},
		{"too large", `{"systemInstruction":"` + strings.Repeat("x", 200) + `"}`, 64, nil, http.StatusRequestEntityTooLarge},
		{"store failure", `{"name":"Helper"}`, 1 << 20, errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.saveErr = tt.saveErr
			cfg := testConfig()
			cfg.MaxRequestBodySize = tt.maxBody
			h := NewHandler(repo, cfg, nil, nil)

			rr := httptest.NewRecorder()
			h.PutDraft(rr, withCaller(httptest.NewRequest(http.MethodPut, "/api/draft", strings.NewReader(tt.body)), "default"))
			if rr.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}
			if len(repo.drafts) != 0 {
				t.Errorf("rejected draft was saved: %+v", repo.drafts)
			}
		})
	}
}

func TestPutDraftConflictsWithSaveInProgress(t *testing.T) {
	h := NewHandler(newFakeRepo(), testConfig(), nil, nil)

	unlock, ok := h.lockDraft(testUser)
	if !ok {
		t.Fatal("expected to acquire the draft lock")
	}

	rr := httptest.NewRecorder()
	h.PutDraft(rr, withCaller(httptest.NewRequest(http.MethodPut, "/api/draft", strings.NewReader(`{"name":"x"}`)), "default"))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}

	unlock()
	rr = httptest.NewRecorder()
	h.PutDraft(rr, withCaller(httptest.NewRequest(http.MethodPut, "/api/draft", strings.NewReader(`{"name":"x"}`)), "default"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 after unlock, got %d", rr.Code)
	}
}

func TestDraftRequiresIdentity(t *testing.T) {
	h := NewHandler(newFakeRepo(), testConfig(), nil, nil)
	for _, fn := range []http.HandlerFunc{h.GetDraft, h.PutDraft, h.DeleteDraft} {
		rr := httptest.NewRecorder()
		fn(rr, httptest.NewRequest(http.MethodPut, "/api/draft", strings.NewReader(`{}`)))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rr.Code)
		}
	}
}
