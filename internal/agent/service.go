package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/agent-studio/internal/chat"
	"github.com/ashureev/agent-studio/internal/domain"
	"github.com/ashureev/agent-studio/internal/store"
)

// Service keeps one in-memory chat session per (user, browser session).
// Conversations are never persisted.
type Service struct {
	streamer *chat.Streamer
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*chat.Session
}

// NewService creates an empty registry whose sessions run on streamer.
func NewService(streamer *chat.Streamer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		streamer: streamer,
		logger:   logger,
		sessions: make(map[string]*chat.Session),
	}
}

func sessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// Session returns the caller's session, creating it on first use.
func (s *Service) Session(userID, sessionID string) *chat.Session {
	key := sessionKey(userID, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		return sess
	}
	sess := chat.NewSession(key, s.streamer, s.logger.With("user_id", userID))
	s.sessions[key] = sess
	s.logger.Debug("Chat session created", "user_id", userID, "session_id", sessionID)
	return sess
}

// Lookup returns the caller's session if one exists.
func (s *Service) Lookup(userID, sessionID string) (*chat.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey(userID, sessionID)]
	return sess, ok
}

// Mode reports the mode of the caller's most recent exchange.
func (s *Service) Mode(userID, sessionID string) chat.Mode {
	if sess, ok := s.Lookup(userID, sessionID); ok {
		return sess.Mode()
	}
	return chat.ModeLive
}

// Send runs one exchange in the caller's session. A session retired between
// lookup and Send is replaced once, so the exchange always lands in the
// registered conversation.
func (s *Service) Send(ctx context.Context, userID, sessionID string, in chat.Input, hooks chat.Hooks) (chat.Outcome, error) {
	outcome, err := s.Session(userID, sessionID).Send(ctx, in, hooks)
	if errors.Is(err, chat.ErrSessionClosed) {
		s.logger.Debug("Chat session retired before send, retrying", "user_id", userID, "session_id", sessionID)
		outcome, err = s.Session(userID, sessionID).Send(ctx, in, hooks)
	}
	return outcome, err
}

// Reset drops the caller's session. It fails with chat.ErrBusy while an
// exchange is in flight.
func (s *Service) Reset(userID, sessionID string) error {
	key := sessionKey(userID, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil
	}
	if !sess.Retire() {
		return chat.ErrBusy
	}
	delete(s.sessions, key)
	s.logger.Info("Chat session reset", "user_id", userID, "session_id", sessionID)
	return nil
}

// Sweep drops idle sessions whose last activity is older than ttl and
// returns how many were removed. Busy sessions are kept.
func (s *Service) Sweep(ttl time.Duration, now time.Time) int {
	cutoff := now.Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, sess := range s.sessions {
		if sess.LastActive().After(cutoff) || !sess.Retire() {
			continue
		}
		delete(s.sessions, key)
		removed++
	}
	return removed
}

// Stats describes the registry.
type Stats struct {
	Sessions int `json:"sessions"`
	Busy     int `json:"busy"`
}

// GetStats returns the current registry counts.
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{Sessions: len(s.sessions)}
	for _, sess := range s.sessions {
		if sess.Busy() {
			stats.Busy++
		}
	}
	return stats
}

// resolveDraft picks the draft an exchange runs with: the request's override,
// then the caller's saved draft, then an empty draft.
func resolveDraft(ctx context.Context, repo store.Repository, userID string, override *domain.AgentDraft) domain.AgentDraft {
	if override != nil {
		return *override
	}
	if repo == nil {
		return domain.AgentDraft{}
	}
	draft, err := repo.GetDraft(ctx, userID)
	if err != nil {
		slog.Warn("Failed to load draft, using defaults", "error", err, "user_id", userID)
		return domain.AgentDraft{}
	}
	if draft == nil {
		return domain.AgentDraft{}
	}
	return *draft
}
