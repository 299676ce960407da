package render

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/agent-studio/internal/markdown"
)

func TestTerminalRendersEveryBlock(t *testing.T) {
	t.Parallel()

	text := strings.Join([]string{
		"# Weekly report",
		"## Highlights",
		"### Details",
		"Shipped **streaming** with *care* and `ndjson`.",
		"",
		"- first bullet",
		"- second bullet",
		"9. step one",
		"9. step two",
		"| Name | Qty |",
		"|---|---|",
		"| tea | 2 |",
		"```",
		"plain code line",
		"```",
	}, "\n")

	out := Terminal(markdown.Build(text), 60)

	for _, want := range []string{
		"WEEKLY REPORT", "Highlights", "Details",
		"streaming", "care", "ndjson",
		"•", "first bullet", "second bullet",
		"1.", "2.", "step one", "step two",
		"Name", "Qty", "tea",
		"│ plain code line",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "9.")
}

func TestTerminalWrapsToWidth(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 40)
	out := Terminal(markdown.Build(long+"\n- "+long), 30)

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), 30, "line %q", line)
	}
}

func TestHighlightKeepsLines(t *testing.T) {
	t.Parallel()

	r := New(80)
	src := "package main\n\nfunc main() {}"

	lines := r.highlight(src, "go")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "package")
	assert.Contains(t, lines[2], "main")

	plain := r.highlight(src, "no-such-language")
	assert.Equal(t, strings.Split(src, "\n"), plain)
}

func TestCodeBlockShowsLanguage(t *testing.T) {
	t.Parallel()

	out := Terminal([]markdown.Block{markdown.CodeBlock{Language: "python", Lines: []string{"print(1)"}}}, 40)
	assert.Contains(t, out, "python")
	assert.Contains(t, out, "print")
}

func TestNewClampsWidth(t *testing.T) {
	t.Parallel()

	assert.Equal(t, defaultWidth, New(0).width)
	assert.Equal(t, minWidth, New(5).width)
	assert.Equal(t, 120, New(120).width)
}
