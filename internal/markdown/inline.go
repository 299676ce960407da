package markdown

import "regexp"

// SpanKind identifies the inline formatting of a Span.
type SpanKind string

const (
	SpanLiteral SpanKind = "literal"
	SpanBold    SpanKind = "bold"
	SpanItalic  SpanKind = "italic"
	SpanCode    SpanKind = "code"
)

// Span is one inline fragment. Text never includes the delimiters.
type Span struct {
	Kind SpanKind `json:"kind"`
	Text string   `json:"text"`
}

// Literal, Bold, Italic and Code build spans.
func Literal(text string) Span { return Span{Kind: SpanLiteral, Text: text} }
func Bold(text string) Span    { return Span{Kind: SpanBold, Text: text} }
func Italic(text string) Span  { return Span{Kind: SpanItalic, Text: text} }
func Code(text string) Span    { return Span{Kind: SpanCode, Text: text} }

// inlinePattern matches one formatted token. Alternation order gives bold
// priority over italic at the same position.
var inlinePattern = regexp.MustCompile(`\*\*([^*]+)\*\*|` + "`([^`]+)`" + `|\*([^*]+)\*`)

// Tokenize splits line into spans. Formatted tokens are indivisible and are
// never scanned again, so spans do not nest. Unterminated delimiters are
// kept as literal text.
func Tokenize(line string) []Span {
	if line == "" {
		return nil
	}

	var spans []Span
	last := 0
	for _, m := range inlinePattern.FindAllStringSubmatchIndex(line, -1) {
		if m[0] > last {
			spans = append(spans, Literal(line[last:m[0]]))
		}
		switch {
		case m[2] >= 0:
			spans = append(spans, Bold(line[m[2]:m[3]]))
		case m[4] >= 0:
			spans = append(spans, Code(line[m[4]:m[5]]))
		default:
			spans = append(spans, Italic(line[m[6]:m[7]]))
		}
		last = m[1]
	}
	if last < len(line) {
		spans = append(spans, Literal(line[last:]))
	}
	return spans
}

// PlainText concatenates the text of spans without delimiters.
func PlainText(spans []Span) string {
	n := 0
	for _, s := range spans {
		n += len(s.Text)
	}
	buf := make([]byte, 0, n)
	for _, s := range spans {
		buf = append(buf, s.Text...)
	}
	return string(buf)
}
