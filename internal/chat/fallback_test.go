package chat

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/agent-studio/internal/domain"
	"github.com/ashureev/agent-studio/internal/stream"
)

func helperRequest() Request {
	return Request{
		Message: "hi",
		Draft: domain.AgentDraft{
			Name:         "Helper",
			Capabilities: domain.Capabilities{WebBrowsing: true},
		},
	}
}

func TestFallbackComposeReferencesDraft(t *testing.T) {
	t.Parallel()

	text := Fallback{}.Compose(helperRequest())

	assert.Contains(t, text, "**Helper**")
	assert.Contains(t, text, "You said: *hi*")
	assert.Contains(t, text, "Configured capabilities:\n- web search\n")
	assert.NotContains(t, text, "System instruction")
	assert.NotContains(t, text, "Model:")
}

func TestFallbackComposeDefaults(t *testing.T) {
	t.Parallel()

	text := Fallback{}.Compose(Request{})

	assert.Contains(t, text, "**"+domain.DefaultAgentName+"**")
	assert.Contains(t, text, "Configured capabilities:\n- none\n")
	assert.NotContains(t, text, "You said")
}

func TestFallbackComposeInstructionPreview(t *testing.T) {
	t.Parallel()

	req := Request{
		Message:        "summarize\nthis",
		AttachmentName: "notes.pdf",
		Draft: domain.AgentDraft{
			Name:              "Researcher",
			SystemInstruction: strings.Repeat("Be thorough. ", 20),
			Model:             "gemini-2.5-flash",
			Capabilities:      domain.Capabilities{FileSearch: true, CodeExecution: true},
		},
	}
	text := Fallback{}.Compose(req)

	assert.Contains(t, text, "You said: *summarize this*")
	assert.Contains(t, text, "Attachment: `notes.pdf`")
	assert.Contains(t, text, "- code execution\n- file search\n")
	assert.Contains(t, text, "System instruction: Be thorough.")
	assert.Contains(t, text, "…")
	assert.Contains(t, text, "Model: `gemini-2.5-flash`")
}

func TestFallbackFramesDecodeToComposedText(t *testing.T) {
	t.Parallel()

	f := Fallback{}
	req := helperRequest()
	frames, err := f.Frames(req)
	require.NoError(t, err)
	require.NotEmpty(t, frames)

	assert.Equal(t, stream.Thought{Content: "Backend unavailable; composing a local preview reply"},
		stream.Decode(strings.TrimSuffix(string(frames[0]), "\n")))

	var got strings.Builder
	for _, frame := range frames[1:] {
		ev := stream.Decode(strings.TrimSuffix(string(frame), "\n"))
		tok, ok := ev.(stream.Token)
		require.True(t, ok, "frame %q decoded as %T", frame, ev)
		got.WriteString(tok.Content)
	}
	assert.Equal(t, f.Compose(req), got.String())
}

func TestFallbackSendWithTypingDelay(t *testing.T) {
	t.Parallel()

	f := Fallback{TypingDelay: time.Millisecond}
	req := helperRequest()

	body, err := f.Send(context.Background(), req)
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	frames, err := f.Frames(req)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(toStrings(frames), ""), string(raw))
}

func TestFallbackSendStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	body, err := Fallback{TypingDelay: time.Hour}.Send(ctx, helperRequest())
	require.NoError(t, err)
	defer body.Close()

	buf := make([]byte, 4096)
	_, err = body.Read(buf)
	require.NoError(t, err)

	cancel()
	_, err = io.ReadAll(body)
	assert.ErrorIs(t, err, context.Canceled)
}

func toStrings(frames [][]byte) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = string(f)
	}
	return out
}
