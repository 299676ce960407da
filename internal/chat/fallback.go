package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ashureev/agent-studio/internal/stream"
)

// instructionPreviewLimit is how many runes of the system instruction the
// fallback reply quotes.
const instructionPreviewLimit = 120

// Fallback is a Transport that never leaves the process. It answers with a
// deterministic explanation built from the request's draft configuration,
// framed exactly like a live backend response.
type Fallback struct {
	// TypingDelay paces token frames. Zero writes the whole reply at once.
	TypingDelay time.Duration
}

// Compose returns the reply text the fallback streams for req.
func (f Fallback) Compose(req Request) string {
	draft := req.Draft
	var b strings.Builder

	fmt.Fprintf(&b, "**%s** is running in preview mode. The agent backend could not be reached, so this reply was generated locally.\n\n", draft.DisplayName())

	if msg := strings.TrimSpace(req.Message); msg != "" {
		fmt.Fprintf(&b, "You said: *%s*\n", oneLine(msg))
	}
	if req.AttachmentName != "" {
		fmt.Fprintf(&b, "Attachment: `%s`\n", req.AttachmentName)
	}
	b.WriteString("\n")

	b.WriteString("Configured capabilities:\n")
	labels := draft.Capabilities.Labels()
	if len(labels) == 0 {
		b.WriteString("- none\n")
	}
	for _, label := range labels {
		fmt.Fprintf(&b, "- %s\n", label)
	}

	if preview := draft.InstructionPreview(instructionPreviewLimit); preview != "" {
		fmt.Fprintf(&b, "\nSystem instruction: %s\n", preview)
	}
	if model := strings.TrimSpace(draft.Model); model != "" {
		fmt.Fprintf(&b, "\nModel: `%s`\n", model)
	}
	return b.String()
}

// Frames returns the NDJSON lines of the fallback reply: one thought
// followed by the reply split into word-sized tokens.
func (f Fallback) Frames(req Request) ([][]byte, error) {
	events := []stream.Event{
		stream.Thought{Content: "Backend unavailable; composing a local preview reply"},
	}
	for _, piece := range strings.SplitAfter(f.Compose(req), " ") {
		if piece != "" {
			events = append(events, stream.Token{Content: piece})
		}
	}

	frames := make([][]byte, 0, len(events))
	for _, ev := range events {
		line, err := stream.Encode(ev)
		if err != nil {
			return nil, fmt.Errorf("encoding fallback frame: %w", err)
		}
		frames = append(frames, append(line, '\n'))
	}
	return frames, nil
}

// Send implements Transport.
func (f Fallback) Send(ctx context.Context, req Request) (io.ReadCloser, error) {
	frames, err := f.Frames(req)
	if err != nil {
		return nil, err
	}
	if f.TypingDelay <= 0 {
		return io.NopCloser(bytes.NewReader(bytes.Join(frames, nil))), nil
	}

	pr, pw := io.Pipe()
	go func() {
		ticker := time.NewTicker(f.TypingDelay)
		defer ticker.Stop()
		for _, frame := range frames {
			if _, err := pw.Write(frame); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				pw.CloseWithError(ctx.Err())
				return
			case <-ticker.C:
			}
		}
		pw.Close()
	}()
	return pr, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
