package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntryType categorizes debug log entries.
type EntryType string

const (
	EntryInfo       EntryType = "info"
	EntryThought    EntryType = "thought"
	EntryToolCall   EntryType = "tool_call"
	EntryToolResult EntryType = "tool_result"
	EntryError      EntryType = "error"
	EntrySuccess    EntryType = "success"
)

// DebugEntry is one observation recorded while an exchange runs. Entries are
// purely diagnostic and never influence what is rendered.
type DebugEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EntryType      `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DebugSink accepts diagnostic entries.
type DebugSink interface {
	Log(t EntryType, content string, metadata map[string]any)
}

// DebugLog is an append-only, in-memory DebugSink. Safe for concurrent use.
type DebugLog struct {
	mu      sync.RWMutex
	entries []DebugEntry
	notify  func(DebugEntry)
	now     func() time.Time
}

// NewDebugLog creates an empty log. notify, if non-nil, is called with each
// entry after it has been stored.
func NewDebugLog(notify func(DebugEntry)) *DebugLog {
	return &DebugLog{notify: notify, now: time.Now}
}

// Log implements DebugSink.
func (l *DebugLog) Log(t EntryType, content string, metadata map[string]any) {
	entry := DebugEntry{
		ID:        uuid.NewString(),
		Timestamp: l.now().UTC(),
		Type:      t,
		Content:   content,
		Metadata:  metadata,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	notify := l.notify
	l.mu.Unlock()

	if notify != nil {
		notify(entry)
	}
}

// Entries returns a copy of all entries in arrival order.
func (l *DebugLog) Entries() []DebugEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]DebugEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Since returns the entries recorded after the entry with the given ID. An
// unknown or empty ID returns everything.
func (l *DebugLog) Since(id string) []DebugEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	start := 0
	for i, e := range l.entries {
		if e.ID == id {
			start = i + 1
			break
		}
	}
	out := make([]DebugEntry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Len returns the number of entries.
func (l *DebugLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// SlogSink mirrors debug entries to a structured logger at Debug level, or
// Warn for errors.
type SlogSink struct {
	Logger *slog.Logger
	Attrs  []any
}

// Log implements DebugSink.
func (s SlogSink) Log(t EntryType, content string, metadata map[string]any) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelDebug
	if t == EntryError {
		level = slog.LevelWarn
	}
	args := append([]any{"type", string(t)}, s.Attrs...)
	if len(metadata) > 0 {
		args = append(args, "metadata", metadata)
	}
	logger.Log(context.Background(), level, content, args...)
}

// MultiSink fans entries out to several sinks in order.
type MultiSink []DebugSink

// Log implements DebugSink.
func (m MultiSink) Log(t EntryType, content string, metadata map[string]any) {
	for _, s := range m {
		if s != nil {
			s.Log(t, content, metadata)
		}
	}
}
