package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ndjson(lines ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

// stallingReader returns data once, then blocks until ctx ends.
type stallingReader struct {
	ctx  context.Context
	data []byte
}

func (r *stallingReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

func (r *stallingReader) Close() error { return nil }

// failingReader returns data once, then err.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	return 0, r.err
}

func (r *failingReader) Close() error { return nil }

func TestStreamLive(t *testing.T) {
	t.Parallel()

	live := TransportFunc(func(context.Context, Request) (io.ReadCloser, error) {
		return ndjson(
			`{"type":"thought","content":"thinking"}`,
			`{"type":"token","content":"Hello"}`,
			`{"type":"token","content":", world"}`,
		), nil
	})
	log := NewDebugLog(nil)
	ex := NewExchange(log, nil)

	out := NewStreamer(live, nil, nil).Stream(context.Background(), helperRequest(), ex)

	assert.Equal(t, Outcome{Mode: ModeLive}, out)
	assert.Equal(t, "Hello, world", ex.Text())

	entries := log.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, EntrySuccess, entries[len(entries)-1].Type)
	assert.Equal(t, 3, entries[len(entries)-1].Metadata["frames"])
}

func TestStreamRouteNotFoundFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	live, err := NewHTTPTransport(srv.URL, "/api/agent/chat")
	require.NoError(t, err)

	var modes []Mode
	ex := NewExchange(nil, func(s Snapshot) { modes = append(modes, s.Mode) })
	out := NewStreamer(live, nil, nil).Stream(context.Background(), helperRequest(), ex)

	assert.True(t, out.Fallback)
	assert.Equal(t, ModeMock, out.Mode)
	assert.NoError(t, out.Err)
	assert.Equal(t, ModeMock, ex.Mode())
	assert.Contains(t, ex.Text(), "Helper")
	assert.Contains(t, ex.Text(), "web search")
	assert.Equal(t, Fallback{}.Compose(helperRequest()), ex.Text())
	require.NotEmpty(t, modes)
	assert.Equal(t, ModeMock, modes[len(modes)-1])
}

func TestStreamNetworkFailureFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	live, err := NewHTTPTransport(addr, "/chat")
	require.NoError(t, err)

	ex := NewExchange(nil, nil)
	out := NewStreamer(live, nil, nil).Stream(context.Background(), helperRequest(), ex)

	assert.True(t, out.Fallback)
	assert.Contains(t, ex.Text(), "preview mode")
}

func TestStreamNoBackendUsesFallback(t *testing.T) {
	t.Parallel()

	ex := NewExchange(nil, nil)
	out := NewStreamer(nil, nil, nil).Stream(context.Background(), helperRequest(), ex)

	assert.True(t, out.Fallback)
	assert.Equal(t, ModeMock, out.Mode)
	assert.Contains(t, ex.Text(), "**Helper**")
}

func TestStreamStatusErrorIsTerminal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"model overloaded"}`)
	}))
	defer srv.Close()
	live, err := NewHTTPTransport(srv.URL, "/chat")
	require.NoError(t, err)

	fallbackCalled := false
	fallback := TransportFunc(func(context.Context, Request) (io.ReadCloser, error) {
		fallbackCalled = true
		return ndjson(), nil
	})

	log := NewDebugLog(nil)
	ex := NewExchange(log, nil)
	out := NewStreamer(live, fallback, nil).Stream(context.Background(), helperRequest(), ex)

	assert.False(t, fallbackCalled)
	assert.False(t, out.Fallback)
	assert.Equal(t, ModeLive, out.Mode)
	var se *StatusError
	require.ErrorAs(t, out.Err, &se)
	assert.Equal(t, "[Error] backend returned 500 Internal Server Error: model overloaded", ex.Text())

	entries := log.Entries()
	assert.Equal(t, EntryError, entries[len(entries)-1].Type)
}

func TestStreamMidStreamAbortKeepsPartialText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, `{"type":"token","content":"Partial answer"}`+"\n")
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()
	live, err := NewHTTPTransport(srv.URL, "/chat")
	require.NoError(t, err)

	ex := NewExchange(nil, nil)
	out := NewStreamer(live, nil, nil).Stream(context.Background(), helperRequest(), ex)

	assert.True(t, out.Fallback)
	assert.Equal(t, ModeMock, out.Mode)
	assert.True(t, strings.HasPrefix(ex.Text(), "Partial answer\n\n**Helper**"), ex.Text())
}

func TestStreamReadFailureClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		wantFallback bool
		wantText     string
	}{
		{
			name:         "unavailable",
			err:          fmt.Errorf("%w: connection reset", ErrUnavailable),
			wantFallback: true,
		},
		{
			name:     "other read error",
			err:      errors.New("decompression failed"),
			wantText: "First\n[Error] decompression failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			live := TransportFunc(func(context.Context, Request) (io.ReadCloser, error) {
				return &failingReader{data: []byte(`{"type":"token","content":"First"}` + "\n"), err: tt.err}, nil
			})
			ex := NewExchange(nil, nil)
			out := NewStreamer(live, nil, nil).Stream(context.Background(), helperRequest(), ex)

			assert.Equal(t, tt.wantFallback, out.Fallback)
			if tt.wantFallback {
				assert.True(t, strings.HasPrefix(ex.Text(), "First\n\n"))
				return
			}
			assert.Equal(t, tt.wantText, ex.Text())
			assert.ErrorIs(t, out.Err, tt.err)
		})
	}
}

func TestStreamCancelKeepsPartialText(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live := TransportFunc(func(ctx context.Context, _ Request) (io.ReadCloser, error) {
		return &stallingReader{ctx: ctx, data: []byte(`{"type":"token","content":"Half a thou"}` + "\n")}, nil
	})

	ex := NewExchange(nil, func(s Snapshot) {
		if s.Text == "Half a thou" {
			cancel()
		}
	})
	out := NewStreamer(live, nil, nil).Stream(ctx, helperRequest(), ex)

	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.False(t, out.Fallback)
	assert.Equal(t, ModeLive, out.Mode)
	assert.Equal(t, "Half a thou", ex.Text())
}

func TestStreamDeadlineMarksTimeout(t *testing.T) {
	t.Parallel()

	live := TransportFunc(func(context.Context, Request) (io.ReadCloser, error) {
		return nil, fmt.Errorf("waiting for headers: %w", context.DeadlineExceeded)
	})
	ex := NewExchange(nil, nil)
	out := NewStreamer(live, nil, nil).Stream(context.Background(), helperRequest(), ex)

	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.False(t, out.Fallback)
	assert.Equal(t, "[Error] response timed out", ex.Text())
}

func TestStreamFallbackFailure(t *testing.T) {
	t.Parallel()

	live := TransportFunc(func(context.Context, Request) (io.ReadCloser, error) {
		return nil, ErrRouteNotFound
	})
	fallback := TransportFunc(func(context.Context, Request) (io.ReadCloser, error) {
		return nil, errors.New("generator broke")
	})
	ex := NewExchange(nil, nil)
	out := NewStreamer(live, fallback, nil).Stream(context.Background(), helperRequest(), ex)

	assert.True(t, out.Fallback)
	assert.EqualError(t, out.Err, "generator broke")
	assert.Equal(t, "[Error] generator broke", ex.Text())
}
