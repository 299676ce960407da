package chat

import (
	"github.com/ashureev/agent-studio/internal/stream"
)

// Route decodes one raw frame and applies it to the exchange.
func (e *Exchange) Route(line string) {
	e.Apply(stream.Decode(line))
}

// Apply dispatches a decoded event. Token, error and literal events change
// the reply text and publish the in-flight message; the rest only feed the
// debug log.
func (e *Exchange) Apply(ev stream.Event) {
	if ev == nil {
		return
	}
	e.frames++

	switch ev := ev.(type) {
	case stream.Token:
		e.appendText(ev.Content)
		e.publish()

	case stream.Thought:
		e.sink.Log(EntryThought, ev.Content, nil)

	case stream.ToolCall:
		e.sink.Log(EntryToolCall, "Calling "+toolName(ev.Name), map[string]any{
			"name": ev.Name,
			"args": ev.Args,
		})

	case stream.ToolResult:
		e.sink.Log(EntryToolResult, toolName(ev.Name)+" returned", map[string]any{
			"name":   ev.Name,
			"result": ev.Result,
		})

	case stream.Error:
		e.appendError(ev.Content)
		e.sink.Log(EntryError, ev.Content, nil)
		e.publish()

	case stream.Literal:
		e.appendText(ev.Text)
		e.appendText("\n")
		e.sink.Log(EntryInfo, "Passed through undecodable frame", map[string]any{
			"raw": ev.Text,
		})
		e.publish()

	default:
		// A new stream.Event implementation must be handled above. Until then
		// keep its bytes visible rather than dropping them.
		raw, err := stream.Encode(ev)
		if err != nil {
			e.sink.Log(EntryError, "Unhandled event could not be encoded", map[string]any{"error": err.Error()})
			return
		}
		e.appendText(string(raw))
		e.appendText("\n")
		e.sink.Log(EntryInfo, "Passed through unhandled event", map[string]any{"kind": string(ev.Kind())})
		e.publish()
	}
}

func toolName(name string) string {
	if name == "" {
		return "tool"
	}
	return name
}
