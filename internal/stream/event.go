package stream

import (
	"encoding/json"
	"strings"
)

// Kind names the discriminator values carried by a frame.
type Kind string

const (
	KindToken      Kind = "token"
	KindThought    Kind = "thought"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindError      Kind = "error"
	// KindLiteral marks a frame that could not be decoded as a known event.
	KindLiteral Kind = "literal"
)

// Event is one decoded frame. The set of implementations is closed; callers
// switch over the concrete types.
type Event interface {
	Kind() Kind
	isEvent()
}

// Token carries a fragment of the assistant's reply.
type Token struct {
	Content string
}

// Thought is an intermediate reasoning step. It never reaches the reply text.
type Thought struct {
	Content string
}

// ToolCall records the backend invoking a capability.
type ToolCall struct {
	Name string
	Args any
}

// ToolResult records the payload a capability returned.
type ToolResult struct {
	Name   string
	Result any
}

// Error is a backend-reported failure inside an otherwise healthy stream.
type Error struct {
	Content string
}

// Literal is a frame that was not valid JSON or had an unknown kind. Text is
// the raw line exactly as received.
type Literal struct {
	Text string
}

func (Token) Kind() Kind      { return KindToken }
func (Thought) Kind() Kind    { return KindThought }
func (ToolCall) Kind() Kind   { return KindToolCall }
func (ToolResult) Kind() Kind { return KindToolResult }
func (Error) Kind() Kind      { return KindError }
func (Literal) Kind() Kind    { return KindLiteral }

func (Token) isEvent()      {}
func (Thought) isEvent()    {}
func (ToolCall) isEvent()   {}
func (ToolResult) isEvent() {}
func (Error) isEvent()      {}
func (Literal) isEvent()    {}

var (
	_ Event = Token{}
	_ Event = Thought{}
	_ Event = ToolCall{}
	_ Event = ToolResult{}
	_ Event = Error{}
	_ Event = Literal{}
)

// Frame is the wire shape of one line.
type Frame struct {
	Type    string `json:"type,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
	Args    any    `json:"args,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// Decode interprets one raw line. It never fails: anything that is not a JSON
// object with a known "type" (or "kind") comes back as a Literal.
func Decode(line string) Event {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Literal{Text: line}
	}

	var f Frame
	if err := json.Unmarshal([]byte(trimmed), &f); err != nil {
		return Literal{Text: line}
	}

	kind := f.Type
	if kind == "" {
		kind = f.Kind
	}

	switch Kind(kind) {
	case KindToken:
		return Token{Content: f.Content}
	case KindThought:
		return Thought{Content: f.Content}
	case KindToolCall:
		return ToolCall{Name: f.Name, Args: f.Args}
	case KindToolResult:
		return ToolResult{Name: f.Name, Result: f.Result}
	case KindError:
		return Error{Content: f.Content}
	default:
		return Literal{Text: line}
	}
}

// Encode renders an event back into its wire line, without the trailing
// newline. Literal events are returned verbatim.
func Encode(e Event) ([]byte, error) {
	var f Frame
	switch ev := e.(type) {
	case Token:
		f = Frame{Type: string(KindToken), Content: ev.Content}
	case Thought:
		f = Frame{Type: string(KindThought), Content: ev.Content}
	case ToolCall:
		f = Frame{Type: string(KindToolCall), Name: ev.Name, Args: ev.Args}
	case ToolResult:
		f = Frame{Type: string(KindToolResult), Name: ev.Name, Result: ev.Result}
	case Error:
		f = Frame{Type: string(KindError), Content: ev.Content}
	case Literal:
		return []byte(ev.Text), nil
	}
	return json.Marshal(f)
}
