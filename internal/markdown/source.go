package markdown

import (
	"strconv"
	"strings"
)

// Source writes blocks back out as markdown text. Building the result again
// yields the same headings, lists and paragraphs.
func Source(blocks []Block) string {
	var lines []string
	for _, b := range blocks {
		switch b := b.(type) {
		case Heading:
			lines = append(lines, strings.Repeat("#", b.Level)+" "+SpanSource(b.Spans))
		case Paragraph:
			lines = append(lines, SpanSource(b.Spans))
		case UnorderedList:
			for _, item := range b.Items {
				lines = append(lines, "- "+SpanSource(item))
			}
		case OrderedList:
			for i, item := range b.Items {
				lines = append(lines, strconv.Itoa(i+1)+". "+SpanSource(item))
			}
		case Table:
			lines = append(lines, rowSource(b.Header))
			seps := make([]string, len(b.Header))
			for i := range seps {
				seps[i] = "---"
			}
			lines = append(lines, "| "+strings.Join(seps, " | ")+" |")
			for _, r := range b.Rows {
				lines = append(lines, rowSource(r))
			}
		case CodeBlock:
			lines = append(lines, fence+b.Language)
			lines = append(lines, b.Lines...)
			lines = append(lines, fence)
		case Spacer:
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n")
}

// SpanSource writes spans back out with their delimiters.
func SpanSource(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		switch s.Kind {
		case SpanBold:
			b.WriteString("**" + s.Text + "**")
		case SpanItalic:
			b.WriteString("*" + s.Text + "*")
		case SpanCode:
			b.WriteString("`" + s.Text + "`")
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

func rowSource(row [][]Span) string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = SpanSource(c)
	}
	return "| " + strings.Join(out, " | ") + " |"
}
