// Package markdown derives a block document from chat reply text. The
// document is rebuilt from scratch on every change of the text; blocks carry
// no identity across builds.
package markdown

import "encoding/json"

// BlockType is the JSON tag of a block.
type BlockType string

const (
	TypeHeading       BlockType = "heading"
	TypeParagraph     BlockType = "paragraph"
	TypeUnorderedList BlockType = "unordered_list"
	TypeOrderedList   BlockType = "ordered_list"
	TypeTable         BlockType = "table"
	TypeCode          BlockType = "code"
	TypeSpacer        BlockType = "spacer"
)

// Block is one structural unit of a document. The set of implementations is
// closed; renderers switch over the concrete types below.
type Block interface {
	Type() BlockType
	isBlock()
}

// Heading is a title line. Level is 1 to 3.
type Heading struct {
	Level int
	Spans []Span
}

// Paragraph is a single line of running text.
type Paragraph struct {
	Spans []Span
}

// UnorderedList groups consecutive bullet lines.
type UnorderedList struct {
	Items [][]Span
}

// OrderedList groups consecutive numbered lines. An item's number is its
// 1-based position; the numbers written in the source are ignored.
type OrderedList struct {
	Items [][]Span
}

// Table groups consecutive pipe-delimited lines.
type Table struct {
	Header [][]Span
	Rows   [][][]Span
}

// CodeBlock holds the verbatim lines of a fenced block.
type CodeBlock struct {
	Language string
	Lines    []string
}

// Spacer stands for a blank line.
type Spacer struct{}

func (Heading) Type() BlockType       { return TypeHeading }
func (Paragraph) Type() BlockType     { return TypeParagraph }
func (UnorderedList) Type() BlockType { return TypeUnorderedList }
func (OrderedList) Type() BlockType   { return TypeOrderedList }
func (Table) Type() BlockType         { return TypeTable }
func (CodeBlock) Type() BlockType     { return TypeCode }
func (Spacer) Type() BlockType        { return TypeSpacer }

func (Heading) isBlock()       {}
func (Paragraph) isBlock()     {}
func (UnorderedList) isBlock() {}
func (OrderedList) isBlock()   {}
func (Table) isBlock()         {}
func (CodeBlock) isBlock()     {}
func (Spacer) isBlock()        {}

var (
	_ Block = Heading{}
	_ Block = Paragraph{}
	_ Block = UnorderedList{}
	_ Block = OrderedList{}
	_ Block = Table{}
	_ Block = CodeBlock{}
	_ Block = Spacer{}
)

// Size and Weight describe how a heading level is displayed.
type (
	Size   string
	Weight string
)

const (
	SizeLarge  Size = "large"
	SizeMedium Size = "medium"
	SizeSmall  Size = "small"

	WeightBold     Weight = "bold"
	WeightSemibold Weight = "semibold"
)

// HeadingStyle is the fixed display style of a heading level.
type HeadingStyle struct {
	Size   Size   `json:"size"`
	Weight Weight `json:"weight"`
}

// Style maps the heading level to its display style.
func (h Heading) Style() HeadingStyle {
	switch h.Level {
	case 1:
		return HeadingStyle{Size: SizeLarge, Weight: WeightBold}
	case 2:
		return HeadingStyle{Size: SizeMedium, Weight: WeightSemibold}
	default:
		return HeadingStyle{Size: SizeSmall, Weight: WeightSemibold}
	}
}

func (h Heading) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  BlockType    `json:"type"`
		Level int          `json:"level"`
		Style HeadingStyle `json:"style"`
		Spans []Span       `json:"spans"`
	}{TypeHeading, h.Level, h.Style(), nonNil(h.Spans)})
}

func (p Paragraph) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  BlockType `json:"type"`
		Spans []Span    `json:"spans"`
	}{TypeParagraph, nonNil(p.Spans)})
}

func (l UnorderedList) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  BlockType `json:"type"`
		Items [][]Span  `json:"items"`
	}{TypeUnorderedList, nonNilItems(l.Items)})
}

func (l OrderedList) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  BlockType `json:"type"`
		Items [][]Span  `json:"items"`
	}{TypeOrderedList, nonNilItems(l.Items)})
}

func (t Table) MarshalJSON() ([]byte, error) {
	rows := make([][][]Span, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = nonNilItems(r)
	}
	return json.Marshal(struct {
		Type   BlockType  `json:"type"`
		Header [][]Span   `json:"header"`
		Rows   [][][]Span `json:"rows"`
	}{TypeTable, nonNilItems(t.Header), rows})
}

func (c CodeBlock) MarshalJSON() ([]byte, error) {
	lines := c.Lines
	if lines == nil {
		lines = []string{}
	}
	return json.Marshal(struct {
		Type     BlockType `json:"type"`
		Language string    `json:"language,omitempty"`
		Lines    []string  `json:"lines"`
	}{TypeCode, c.Language, lines})
}

func (Spacer) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"spacer"}`), nil
}

func nonNil(spans []Span) []Span {
	if spans == nil {
		return []Span{}
	}
	return spans
}

func nonNilItems(items [][]Span) [][]Span {
	out := make([][]Span, len(items))
	for i, item := range items {
		out[i] = nonNil(item)
	}
	return out
}
