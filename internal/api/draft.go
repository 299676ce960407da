package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ashureev/agent-studio/internal/domain"
	"github.com/ashureev/agent-studio/internal/identity"
)

const defaultMaxRequestBodySize = 1 << 20

// GetDraft returns the caller's saved draft agent, or an empty draft.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	draft, err := h.repo.GetDraft(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load draft", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load draft")
		return
	}
	if draft == nil {
		draft = &domain.AgentDraft{}
	}
	JSON(w, http.StatusOK, draft)
}

// PutDraft replaces the caller's draft agent.
func (h *Handler) PutDraft(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	maxBodySize := int64(defaultMaxRequestBodySize)
	if h.cfg != nil && h.cfg.MaxRequestBodySize > 0 {
		maxBodySize = h.cfg.MaxRequestBodySize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var draft domain.AgentDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := draft.Validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	// Reject overlapping saves from the same user instead of queueing them.
	unlock, ok := h.lockDraft(userID)
	if !ok {
		slog.Warn("Draft save already in progress", "user_id", userID)
		Error(w, http.StatusConflict, "draft_save_in_progress")
		return
	}
	defer unlock()

	if err := h.repo.UpsertDraft(r.Context(), userID, &draft); err != nil {
		slog.Error("Failed to save draft", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to save draft")
		return
	}

	slog.Info("Draft saved", "user_id", userID, "agent", draft.DisplayName())
	JSON(w, http.StatusOK, draft)
}

// DeleteDraft removes the caller's draft agent.
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	unlock, ok := h.lockDraft(userID)
	if !ok {
		Error(w, http.StatusConflict, "draft_save_in_progress")
		return
	}
	defer unlock()

	if err := h.repo.DeleteDraft(r.Context(), userID); err != nil {
		slog.Error("Failed to delete draft", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to delete draft")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) lockDraft(userID string) (func(), bool) {
	lock, _ := h.draftLocks.LoadOrStore(userID, &sync.Mutex{})
	mutex := lock.(*sync.Mutex)
	if !mutex.TryLock() {
		return nil, false
	}
	return func() {
		h.draftLocks.Delete(userID)
		mutex.Unlock()
	}, true
}
