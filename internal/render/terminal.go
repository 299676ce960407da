// Package render draws markdown blocks for a terminal.
package render

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ashureev/agent-studio/internal/markdown"
)

const (
	defaultWidth = 80
	minWidth     = 20
	codeTheme    = "monokai"
)

var (
	colorAccent = lipgloss.Color("#eb8755")
	colorTitle  = lipgloss.Color("#f5b761")
	colorMuted  = lipgloss.Color("#83715f")
	colorCode   = lipgloss.Color("#93b56b")
	colorBorder = lipgloss.Color("#5c5044")
)

// Styles holds the lipgloss styles used by a Renderer.
type Styles struct {
	HeadingLarge  lipgloss.Style
	HeadingMedium lipgloss.Style
	HeadingSmall  lipgloss.Style
	Bold          lipgloss.Style
	Italic        lipgloss.Style
	InlineCode    lipgloss.Style
	Bullet        lipgloss.Style
	Number        lipgloss.Style
	CodeGutter    lipgloss.Style
	CodeLanguage  lipgloss.Style
	TableBorder   lipgloss.Style
	TableHeader   lipgloss.Style
}

// DefaultStyles returns the built-in palette.
func DefaultStyles() Styles {
	return Styles{
		HeadingLarge:  lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorTitle),
		HeadingMedium: lipgloss.NewStyle().Bold(true).Foreground(colorTitle),
		HeadingSmall:  lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Bold:          lipgloss.NewStyle().Bold(true),
		Italic:        lipgloss.NewStyle().Italic(true),
		InlineCode:    lipgloss.NewStyle().Foreground(colorCode),
		Bullet:        lipgloss.NewStyle().Foreground(colorAccent),
		Number:        lipgloss.NewStyle().Foreground(colorAccent),
		CodeGutter:    lipgloss.NewStyle().Foreground(colorBorder),
		CodeLanguage:  lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
		TableBorder:   lipgloss.NewStyle().Foreground(colorBorder),
		TableHeader:   lipgloss.NewStyle().Bold(true).Padding(0, 1),
	}
}

// Renderer turns blocks into styled terminal text wrapped at a fixed width.
type Renderer struct {
	width  int
	styles Styles
	theme  *chroma.Style
}

// New creates a renderer for the given terminal width.
func New(width int) *Renderer {
	if width <= 0 {
		width = defaultWidth
	}
	width = max(width, minWidth)
	return &Renderer{width: width, styles: DefaultStyles(), theme: styles.Get(codeTheme)}
}

// Terminal renders blocks at width with the default styles.
func Terminal(blocks []markdown.Block, width int) string {
	return New(width).Render(blocks)
}

// Render draws blocks one per line group, in order.
func (r *Renderer) Render(blocks []markdown.Block) string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, r.block(b))
	}
	return strings.Join(out, "\n")
}

func (r *Renderer) block(b markdown.Block) string {
	switch b := b.(type) {
	case markdown.Heading:
		return r.heading(b)
	case markdown.Paragraph:
		return r.wrap(r.Spans(b.Spans), 0)
	case markdown.UnorderedList:
		lines := make([]string, len(b.Items))
		for i, item := range b.Items {
			lines[i] = r.item(r.styles.Bullet.Render("•"), item)
		}
		return strings.Join(lines, "\n")
	case markdown.OrderedList:
		lines := make([]string, len(b.Items))
		for i, item := range b.Items {
			lines[i] = r.item(r.styles.Number.Render(strconv.Itoa(i+1)+"."), item)
		}
		return strings.Join(lines, "\n")
	case markdown.Table:
		return r.table(b)
	case markdown.CodeBlock:
		return r.code(b)
	case markdown.Spacer:
	}
	return ""
}

func (r *Renderer) heading(h markdown.Heading) string {
	text := r.Spans(h.Spans)
	style := h.Style()
	switch style.Size {
	case markdown.SizeLarge:
		return r.styles.HeadingLarge.Render(strings.ToUpper(markdown.PlainText(h.Spans)))
	case markdown.SizeMedium:
		return r.styles.HeadingMedium.Render(text)
	default:
		return r.styles.HeadingSmall.Render(text)
	}
}

func (r *Renderer) item(marker string, spans []markdown.Span) string {
	indent := lipgloss.Width(marker) + 1
	body := r.wrap(r.Spans(spans), indent+2)
	// Hang wrapped lines under the item text, not the marker.
	lines := strings.Split(body, "\n")
	for i := range lines {
		if i == 0 {
			lines[i] = "  " + marker + " " + lines[i]
			continue
		}
		lines[i] = strings.Repeat(" ", indent+2) + lines[i]
	}
	return strings.Join(lines, "\n")
}

// wrap word-wraps s to the renderer width minus indent, without the padding
// lipgloss adds to short lines.
func (r *Renderer) wrap(s string, indent int) string {
	lines := strings.Split(lipgloss.NewStyle().Width(r.width-indent).Render(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}

// Spans renders inline spans on one line.
func (r *Renderer) Spans(spans []markdown.Span) string {
	var b strings.Builder
	for _, s := range spans {
		switch s.Kind {
		case markdown.SpanBold:
			b.WriteString(r.styles.Bold.Render(s.Text))
		case markdown.SpanItalic:
			b.WriteString(r.styles.Italic.Render(s.Text))
		case markdown.SpanCode:
			b.WriteString(r.styles.InlineCode.Render(s.Text))
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

func (r *Renderer) table(t markdown.Table) string {
	header := make([]string, len(t.Header))
	for i, c := range t.Header {
		header[i] = r.Spans(c)
	}
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(header))
		for j := range cells {
			if j < len(row) {
				cells[j] = r.Spans(row[j])
			}
		}
		rows[i] = cells
	}

	cell := lipgloss.NewStyle().Padding(0, 1)
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.styles.TableBorder).
		Headers(header...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.styles.TableHeader
			}
			return cell
		})
	return tbl.String()
}

func (r *Renderer) code(c markdown.CodeBlock) string {
	gutter := r.styles.CodeGutter.Render("│ ")
	var lines []string
	if c.Language != "" {
		lines = append(lines, r.styles.CodeLanguage.Render(c.Language))
	}
	for _, line := range r.highlight(strings.Join(c.Lines, "\n"), c.Language) {
		lines = append(lines, gutter+line)
	}
	return strings.Join(lines, "\n")
}

// highlight colors source with chroma and returns it split into lines.
// Unknown languages are returned unstyled.
func (r *Renderer) highlight(source, language string) []string {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil || r.theme == nil {
		return strings.Split(source, "\n")
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return strings.Split(source, "\n")
	}

	var lines []string
	var current strings.Builder
	for _, tok := range iterator.Tokens() {
		style := tokenStyle(r.theme, tok.Type)
		parts := strings.Split(tok.Value, "\n")
		for i, part := range parts {
			if i > 0 {
				lines = append(lines, current.String())
				current.Reset()
			}
			if part != "" {
				current.WriteString(style.Render(part))
			}
		}
	}
	lines = append(lines, current.String())

	// chroma ensures a trailing newline, which leaves one empty line behind.
	if n := len(lines); n > 1 && lines[n-1] == "" && !strings.HasSuffix(source, "\n") {
		lines = lines[:n-1]
	}
	return lines
}

func tokenStyle(theme *chroma.Style, t chroma.TokenType) lipgloss.Style {
	entry := theme.Get(t)
	s := lipgloss.NewStyle()
	if entry.Colour.IsSet() {
		s = s.Foreground(lipgloss.Color(entry.Colour.String()))
	}
	if entry.Bold == chroma.Yes {
		s = s.Bold(true)
	}
	if entry.Italic == chroma.Yes {
		s = s.Italic(true)
	}
	if entry.Underline == chroma.Yes {
		s = s.Underline(true)
	}
	return s
}
