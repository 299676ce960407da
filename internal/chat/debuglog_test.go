package chat

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugLogOrderAndNotify(t *testing.T) {
	t.Parallel()

	var notified []string
	log := NewDebugLog(func(e DebugEntry) { notified = append(notified, e.Content) })

	log.Log(EntryInfo, "one", nil)
	log.Log(EntryThought, "two", map[string]any{"k": "v"})
	log.Log(EntrySuccess, "three", nil)

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"one", "two", "three"}, notified)
	assert.Equal(t, "v", entries[1].Metadata["k"])
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.False(t, entries[1].Timestamp.Before(entries[0].Timestamp))

	since := log.Since(entries[0].ID)
	require.Len(t, since, 2)
	assert.Equal(t, "two", since[0].Content)
	assert.Len(t, log.Since("unknown"), 3)
	assert.Empty(t, log.Since(entries[2].ID))

	entries[0].Content = "mutated"
	assert.Equal(t, "one", log.Entries()[0].Content)
}

func TestDebugLogConcurrentWriters(t *testing.T) {
	t.Parallel()

	log := NewDebugLog(nil)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				log.Log(EntryInfo, "x", nil)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, log.Len())
}

func TestSlogSinkAndMultiSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	log := NewDebugLog(nil)

	sink := MultiSink{log, nil, SlogSink{Logger: logger, Attrs: []any{"session_id", "s1"}}}
	sink.Log(EntryError, "backend said no", map[string]any{"status": 500})

	assert.Equal(t, 1, log.Len())
	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"msg":"backend said no"`)
	assert.Contains(t, out, `"session_id":"s1"`)
	assert.Contains(t, out, `"type":"error"`)
}
