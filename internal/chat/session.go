package chat

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/agent-studio/internal/domain"
)

// Input is one user turn.
type Input struct {
	Text           string
	AttachmentName string
	Draft          domain.AgentDraft
}

// Update is published every time the in-flight assistant message changes.
type Update struct {
	ExchangeID string  `json:"exchangeId"`
	Message    Message `json:"message"`
	Mode       Mode    `json:"mode"`
}

// Hooks observe a running exchange. Both callbacks run on the exchange's
// goroutine and must not call back into the session.
type Hooks struct {
	OnUpdate func(Update)
	OnDebug  func(DebugEntry)
}

const (
	stateIdle int32 = iota
	stateBusy
	stateRetired
)

// Session is one chat conversation with its debug log. At most one exchange
// runs at a time; Send returns ErrBusy otherwise, and ErrSessionClosed once
// the session has been retired.
type Session struct {
	id       string
	streamer *Streamer
	logger   *slog.Logger

	state atomic.Int32

	mu         sync.RWMutex
	conv       Conversation
	log        *DebugLog
	mode       Mode
	lastActive time.Time
	onDebug    func(DebugEntry)
}

// NewSession creates an empty session driven by streamer.
func NewSession(id string, streamer *Streamer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:         id,
		streamer:   streamer,
		logger:     logger,
		mode:       ModeLive,
		lastActive: time.Now(),
	}
	s.log = NewDebugLog(s.dispatchDebug)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Send runs one exchange: it appends the user message and a single assistant
// message, then streams the reply into that assistant message in place.
// Failures are rendered into the reply; the returned error is only ErrBusy
// or ErrSessionClosed.
func (s *Session) Send(ctx context.Context, in Input, hooks Hooks) (Outcome, error) {
	if !s.state.CompareAndSwap(stateIdle, stateBusy) {
		if s.state.Load() == stateRetired {
			return Outcome{}, ErrSessionClosed
		}
		return Outcome{}, ErrBusy
	}
	defer s.state.Store(stateIdle)

	s.mu.Lock()
	history := s.conv.Messages()
	s.conv.Append(Message{Role: RoleUser, Content: in.Text, AttachmentName: in.AttachmentName})
	s.conv.Append(Message{Role: RoleAssistant})
	s.onDebug = hooks.OnDebug
	s.lastActive = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.onDebug = nil
		s.lastActive = time.Now()
		s.mu.Unlock()
	}()

	sink := MultiSink{s.log, SlogSink{Logger: s.logger, Attrs: []any{"session_id", s.id}}}
	ex := NewExchange(sink, func(snap Snapshot) {
		msg := Message{Role: RoleAssistant, Content: snap.Text}
		s.mu.Lock()
		s.conv.ReplaceLast(msg)
		s.mode = snap.Mode
		s.mu.Unlock()
		if hooks.OnUpdate != nil {
			hooks.OnUpdate(Update{ExchangeID: snap.ExchangeID, Message: msg, Mode: snap.Mode})
		}
	})

	req := Request{
		Message:        in.Text,
		AttachmentName: in.AttachmentName,
		History:        history,
		Draft:          in.Draft,
	}
	outcome := s.streamer.Stream(ctx, req, ex)

	s.mu.Lock()
	s.conv.ReplaceLast(Message{Role: RoleAssistant, Content: ex.Text()})
	s.mode = outcome.Mode
	s.mu.Unlock()

	s.logger.Info("exchange finished",
		"session_id", s.id,
		"exchange_id", ex.ID(),
		"mode", outcome.Mode,
		"fallback", outcome.Fallback,
		"frames", ex.Frames(),
	)
	return outcome, nil
}

// Busy reports whether an exchange is in flight.
func (s *Session) Busy() bool {
	return s.state.Load() == stateBusy
}

// Retire closes an idle session for good: every later Send fails with
// ErrSessionClosed. It returns false, and changes nothing, while an exchange
// is in flight.
func (s *Session) Retire() bool {
	return s.state.CompareAndSwap(stateIdle, stateRetired) || s.state.Load() == stateRetired
}

// Messages returns a copy of the conversation.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conv.Messages()
}

// DebugLog returns the session's debug log.
func (s *Session) DebugLog() *DebugLog { return s.log }

// Mode returns the mode of the most recent exchange.
func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// LastActive returns when the session last started or finished an exchange.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

func (s *Session) dispatchDebug(entry DebugEntry) {
	s.mu.RLock()
	fn := s.onDebug
	s.mu.RUnlock()
	if fn != nil {
		fn(entry)
	}
}
