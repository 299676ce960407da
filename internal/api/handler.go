// Package api provides HTTP handlers for the studio API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ashureev/agent-studio/internal/chat"
	"github.com/ashureev/agent-studio/internal/config"
	"github.com/ashureev/agent-studio/internal/identity"
	"github.com/ashureev/agent-studio/internal/store"
)

// ModeReporter reports the mode of a caller's chat session.
type ModeReporter interface {
	Mode(userID, sessionID string) chat.Mode
}

// HealthChecker probes the agent backend.
type HealthChecker interface {
	Check(ctx context.Context) (*healthpb.HealthCheckResponse, error)
}

// Handler serves the studio's non-chat routes.
type Handler struct {
	repo   store.Repository
	cfg    *config.Config
	modes  ModeReporter
	health HealthChecker

	draftLocks sync.Map
}

// NewHandler creates a Handler. modes and health may be nil.
func NewHandler(repo store.Repository, cfg *config.Config, modes ModeReporter, health HealthChecker) *Handler {
	return &Handler{
		repo:   repo,
		cfg:    cfg,
		modes:  modes,
		health: health,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes mounts the routes under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
		r.Get("/status", h.GetStatus)
		r.Get("/draft", h.GetDraft)
		r.Put("/draft", h.PutDraft)
		r.Delete("/draft", h.DeleteDraft)
	})
}

// GetMe returns the current user's information.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      user.UserID,
		"username":     user.Username,
		"session_id":   identity.SessionIDFromContext(r.Context()),
		"last_seen_at": user.LastSeenAt.UTC().Format(time.RFC3339),
	})
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	mode := chat.ModeLive
	if h.modes != nil {
		mode = h.modes.Mode(identity.UserIDFromContext(r.Context()), identity.SessionIDFromContext(r.Context()))
	}
	if !h.cfg.HasBackend() {
		mode = chat.ModeMock
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"backend_configured":  h.cfg.HasBackend(),
		"backend_url":         h.cfg.Backend.URL,
		"health_probe":        h.health != nil,
		"mode":                mode,
		"session_ttl_seconds": int64(h.cfg.Session.TTL.Seconds()),
		"rate_limit": map[string]interface{}{
			"requests":       h.cfg.RateLimit.Requests,
			"window_seconds": int64(h.cfg.RateLimit.Window.Seconds()),
		},
	})
}
