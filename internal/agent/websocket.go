package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/agent-studio/internal/chat"
	"github.com/ashureev/agent-studio/internal/domain"
	"github.com/ashureev/agent-studio/internal/identity"
	"github.com/ashureev/agent-studio/internal/store"
)

// WebSocketHandler serves chat over a WebSocket. Clients send message frames
// and receive the same update, debug and done events as the SSE endpoint.
type WebSocketHandler struct {
	svc           *Service
	repo          store.Repository
	limiter       *RateLimiter
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler. Every message frame
// counts against limiter; a nil limiter allows everything.
func NewWebSocketHandler(svc *Service, repo store.Repository, limiter *RateLimiter, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		svc:           svc,
		repo:          repo,
		limiter:       limiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsMessage is an inbound frame.
type wsMessage struct {
	Type           string             `json:"type"`
	Content        string             `json:"content,omitempty"`
	AttachmentName string             `json:"attachmentName,omitempty"`
	Agent          *domain.AgentDraft `json:"agent,omitempty"`
}

// wsEvent is an outbound frame.
type wsEvent struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	h.readLoop(ctx, ws, userID, sessionID, &wg)
	cancel()
	wg.Wait()
	slog.Info("Agent WebSocket session ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string, wg *sync.WaitGroup) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.writeJSON(ctx, ws, wsEvent{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "message":
			if strings.TrimSpace(msg.Content) == "" {
				h.writeJSON(ctx, ws, wsEvent{Type: "error", Error: "message is required"})
				continue
			}
			if h.limiter != nil && !h.limiter.Allow(userID) {
				h.writeJSON(ctx, ws, wsEvent{Type: "error", Error: "rate limit exceeded"})
				continue
			}
			if sess, ok := h.svc.Lookup(userID, sessionID); ok && sess.Busy() {
				h.writeJSON(ctx, ws, wsEvent{Type: "error", Error: chat.ErrBusy.Error()})
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.runExchange(ctx, ws, userID, sessionID, msg)
			}()
		case "reset":
			if err := h.svc.Reset(userID, sessionID); err != nil {
				h.writeJSON(ctx, ws, wsEvent{Type: "error", Error: err.Error()})
				continue
			}
			h.writeJSON(ctx, ws, wsEvent{Type: "reset"})
		case "ping":
			h.writeJSON(ctx, ws, wsEvent{Type: "pong"})
		default:
			h.writeJSON(ctx, ws, wsEvent{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) runExchange(ctx context.Context, ws *websocket.Conn, userID, sessionID string, msg wsMessage) {
	draft := resolveDraft(ctx, h.repo, userID, msg.Agent)
	outcome, err := h.svc.Send(ctx, userID, sessionID, chat.Input{
		Text:           msg.Content,
		AttachmentName: msg.AttachmentName,
		Draft:          draft,
	}, chat.Hooks{
		OnUpdate: func(u chat.Update) {
			h.writeJSON(ctx, ws, wsEvent{Type: "update", Data: newUpdateEvent(u)})
		},
		OnDebug: func(e chat.DebugEntry) {
			h.writeJSON(ctx, ws, wsEvent{Type: "debug", Data: e})
		},
	})
	if err != nil {
		h.writeJSON(ctx, ws, wsEvent{Type: "error", Error: err.Error()})
		return
	}
	h.writeJSON(ctx, ws, wsEvent{Type: "done", Data: newDoneEvent(outcome)})
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v wsEvent) {
	if ctx.Err() != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal websocket event", "type", v.Type, "error", err)
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil && ctx.Err() == nil {
		slog.Debug("WebSocket write error", "error", err)
	}
}
