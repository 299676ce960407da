package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKnownKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want Event
	}{
		{"token", `{"type":"token","content":"Hel"}`, Token{Content: "Hel"}},
		{"token without content", `{"type":"token"}`, Token{}},
		{"thought", `{"type":"thought","content":"planning"}`, Thought{Content: "planning"}},
		{
			"tool call",
			`{"type":"tool_call","name":"web_search","args":{"q":"go"}}`,
			ToolCall{Name: "web_search", Args: map[string]any{"q": "go"}},
		},
		{
			"tool result",
			`{"type":"tool_result","name":"web_search","result":["a","b"]}`,
			ToolResult{Name: "web_search", Result: []any{"a", "b"}},
		},
		{"error", `{"type":"error","content":"quota exceeded"}`, Error{Content: "quota exceeded"}},
		{"kind discriminator", `{"kind":"token","content":"x"}`, Token{Content: "x"}},
		{"type wins over kind", `{"type":"thought","kind":"token","content":"x"}`, Thought{Content: "x"}},
		{"surrounding whitespace", "  {\"type\":\"token\",\"content\":\"y\"}\r", Token{Content: "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Decode(tt.line))
		})
	}
}

func TestDecodeFallsBackToLiteral(t *testing.T) {
	t.Parallel()

	lines := []string{
		"plain text from a misbehaving backend",
		`{"type":"token","content":`,
		`{"type":"usage","tokens":12}`,
		`{"content":"no discriminator"}`,
		`["not","an","object"]`,
		`42`,
		`{"type":7}`,
	}

	for _, line := range lines {
		ev := Decode(line)
		lit, ok := ev.(Literal)
		require.True(t, ok, "line %q decoded as %T", line, ev)
		assert.Equal(t, line, lit.Text)
		assert.Equal(t, KindLiteral, ev.Kind())
	}
}

func TestEncodeDecodeAgree(t *testing.T) {
	t.Parallel()

	events := []Event{
		Token{Content: "chunk with \"quotes\"\nand newline"},
		Thought{Content: "hmm"},
		ToolCall{Name: "calc", Args: map[string]any{"x": 1.5}},
		ToolResult{Name: "calc", Result: "3"},
		Error{Content: "bad"},
	}
	for _, ev := range events {
		line, err := Encode(ev)
		require.NoError(t, err)
		assert.NotContains(t, string(line), "\n")
		assert.Equal(t, ev, Decode(string(line)))
	}

	line, err := Encode(Literal{Text: "raw"})
	require.NoError(t, err)
	assert.Equal(t, "raw", string(line))
}
