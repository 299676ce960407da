// Package agent serves the studio's chat sessions over SSE and WebSocket.
package agent

import (
	"github.com/ashureev/agent-studio/internal/chat"
	"github.com/ashureev/agent-studio/internal/domain"
	"github.com/ashureev/agent-studio/internal/markdown"
)

// ChatRequest is the body of POST /api/agent/chat. Agent overrides the
// caller's saved draft for this exchange only.
type ChatRequest struct {
	Message        string             `json:"message"`
	AttachmentName string             `json:"attachmentName,omitempty"`
	Agent          *domain.AgentDraft `json:"agent,omitempty"`
}

// UpdateEvent carries the in-flight assistant message and its rendered
// document after each in-place replacement.
type UpdateEvent struct {
	ExchangeID string           `json:"exchangeId"`
	Message    chat.Message     `json:"message"`
	Blocks     []markdown.Block `json:"blocks"`
	Mode       chat.Mode        `json:"mode"`
}

// DoneEvent ends a chat stream.
type DoneEvent struct {
	Mode     chat.Mode `json:"mode"`
	Fallback bool      `json:"fallback"`
	Error    string    `json:"error,omitempty"`
}

// HistoryEntry is a conversation message with its rendered document.
type HistoryEntry struct {
	chat.Message
	Blocks []markdown.Block `json:"blocks"`
}

// HistoryResponse is the body of GET /api/agent/history.
type HistoryResponse struct {
	SessionID string         `json:"sessionId"`
	Mode      chat.Mode      `json:"mode"`
	Busy      bool           `json:"busy"`
	Messages  []HistoryEntry `json:"messages"`
}

func newUpdateEvent(u chat.Update) UpdateEvent {
	return UpdateEvent{
		ExchangeID: u.ExchangeID,
		Message:    u.Message,
		Blocks:     blocks(u.Message.Content),
		Mode:       u.Mode,
	}
}

func newDoneEvent(o chat.Outcome) DoneEvent {
	done := DoneEvent{Mode: o.Mode, Fallback: o.Fallback}
	if o.Err != nil {
		done.Error = o.Err.Error()
	}
	return done
}

func newHistory(sessionID string, s *chat.Session) HistoryResponse {
	resp := HistoryResponse{SessionID: sessionID, Mode: chat.ModeLive, Messages: []HistoryEntry{}}
	if s == nil {
		return resp
	}
	resp.Mode = s.Mode()
	resp.Busy = s.Busy()
	for _, msg := range s.Messages() {
		resp.Messages = append(resp.Messages, HistoryEntry{Message: msg, Blocks: blocks(msg.Content)})
	}
	return resp
}

func blocks(content string) []markdown.Block {
	if b := markdown.Build(content); b != nil {
		return b
	}
	return []markdown.Block{}
}
