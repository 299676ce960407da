package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/agent-studio/internal/api"
	"github.com/ashureev/agent-studio/internal/chat"
	"github.com/ashureev/agent-studio/internal/config"
	"github.com/ashureev/agent-studio/internal/identity"
	"github.com/ashureev/agent-studio/internal/store"
)

const (
	defaultMaxRequestBodySize = 1 << 20
	defaultKeepaliveInterval  = 15 * time.Second
)

// Handler serves the chat HTTP API.
type Handler struct {
	svc         *Service
	repo        store.Repository
	rateLimiter *RateLimiter
	maxBodySize int64
	keepalive   time.Duration
}

// NewHandler creates a chat handler. cfg may be nil, in which case defaults
// are used and requests are not rate limited.
func NewHandler(svc *Service, repo store.Repository, cfg *config.Config) *Handler {
	h := &Handler{
		svc:         svc,
		repo:        repo,
		maxBodySize: defaultMaxRequestBodySize,
		keepalive:   defaultKeepaliveInterval,
	}
	if cfg != nil {
		h.maxBodySize = cfg.MaxRequestBodySize
		h.keepalive = cfg.SSE.KeepaliveInterval
		h.rateLimiter = NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	} else {
		h.rateLimiter = NewRateLimiter(0, 0)
	}
	return h
}

// RegisterRoutes mounts the chat routes under /api/agent.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/agent", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Get("/history", h.HandleHistory)
		r.Get("/debug", h.HandleDebug)
		r.Post("/reset", h.HandleReset)
	})
}

// RateLimiter returns the per-user chat limiter, shared with the WebSocket
// channel.
func (h *Handler) RateLimiter() *RateLimiter {
	return h.rateLimiter
}

// Close releases the handler's background goroutines.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// HandleChat runs one exchange and streams it as server-sent events: an
// update event after every change to the assistant message, a debug event
// per log entry and a final done event.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Rate-limit by user only so rotating session IDs does not bypass it.
	if !h.rateLimiter.Allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	draft := resolveDraft(r.Context(), h.repo, userID, req.Agent)

	slog.Info("Agent chat request",
		"user_id", userID,
		"session_id", sessionID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"message_length", len(req.Message),
	)

	stream := &sseStream{w: w, flusher: flusher}
	stopKeepalive := h.startKeepalive(stream)

	outcome, err := h.svc.Send(r.Context(), userID, sessionID, chat.Input{
		Text:           req.Message,
		AttachmentName: req.AttachmentName,
		Draft:          draft,
	}, chat.Hooks{
		OnUpdate: func(u chat.Update) { _ = stream.send("update", newUpdateEvent(u)) },
		OnDebug:  func(e chat.DebugEntry) { _ = stream.send("debug", e) },
	})
	stopKeepalive()

	if errors.Is(err, chat.ErrBusy) {
		api.Error(w, http.StatusConflict, err.Error())
		return
	}
	if err := stream.send("done", newDoneEvent(outcome)); err != nil {
		slog.Debug("Client went away before done event", "error", err, "user_id", userID)
	}
}

// HandleHistory returns the caller's conversation with rendered blocks.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	sess, _ := h.svc.Lookup(userID, sessionID)
	api.JSON(w, http.StatusOK, newHistory(sessionID, sess))
}

// HandleDebug returns the caller's debug log. ?since=<entry id> limits it to
// newer entries.
func (h *Handler) HandleDebug(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	entries := []chat.DebugEntry{}
	if sess, ok := h.svc.Lookup(userID, sessionID); ok {
		var got []chat.DebugEntry
		if since := r.URL.Query().Get("since"); since != "" {
			got = sess.DebugLog().Since(since)
		} else {
			got = sess.DebugLog().Entries()
		}
		entries = append(entries, got...)
	}
	api.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// HandleReset drops the caller's session.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if err := h.svc.Reset(userID, sessionID); err != nil {
		api.Error(w, http.StatusConflict, err.Error())
		return
	}
	api.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) startKeepalive(stream *sseStream) func() {
	if h.keepalive <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(h.keepalive)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := stream.ping(); err != nil {
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// sseStream writes events to one response. Headers go out with the first
// event so a request rejected before streaming can still get a JSON error.
type sseStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	eventID int64
	err     error
}

func (s *sseStream) send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal SSE event", "event", event, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.start()
	s.eventID++
	if err := writeSSEWithID(s.w, s.eventID, event, string(data)); err != nil {
		s.err = err
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseStream) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil || !s.started {
		return s.err
	}
	if err := writeSSE(s.w, "ping", `{"status":"alive"}`); err != nil {
		s.err = err
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseStream) start() {
	if s.started {
		return
	}
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.Header().Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeSSEWithID(w io.Writer, id int64, event, data string) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
	return err
}
