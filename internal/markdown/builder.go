package markdown

import (
	"regexp"
	"strings"
)

// maxHeadingLevel caps "####" and deeper.
const maxHeadingLevel = 3

var (
	headingLine   = regexp.MustCompile(`^(#+)\s+(.*)$`)
	bulletLine    = regexp.MustCompile(`^\s*[-*]\s+(.*)$`)
	numberedLine  = regexp.MustCompile(`^\s*\d+\.\s+(.*)$`)
	separatorLine = regexp.MustCompile(`^[\s|:-]*-[\s|:-]*$`)
)

const fence = "```"

// Build parses text into blocks in one left-to-right pass. At each line the
// first matching rule wins and consumes its lines: heading, bullet list,
// numbered list, table, fenced code, blank spacer, paragraph.
func Build(text string) []Block {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}

	var blocks []Block
	for i := 0; i < len(lines); {
		block, n := next(lines, i)
		blocks = append(blocks, block)
		i += n
	}
	return blocks
}

// next returns the block starting at lines[i] and how many lines it used.
// It always consumes at least one line.
func next(lines []string, i int) (Block, int) {
	line := lines[i]

	if m := headingLine.FindStringSubmatch(line); m != nil {
		return Heading{Level: min(len(m[1]), maxHeadingLevel), Spans: Tokenize(m[2])}, 1
	}

	if bulletLine.MatchString(line) {
		items, n := group(lines, i, bulletLine)
		return UnorderedList{Items: items}, n
	}

	if numberedLine.MatchString(line) {
		items, n := group(lines, i, numberedLine)
		return OrderedList{Items: items}, n
	}

	if isTableLine(line) {
		return table(lines, i)
	}

	if strings.HasPrefix(strings.TrimSpace(line), fence) {
		return code(lines, i)
	}

	if strings.TrimSpace(line) == "" {
		return Spacer{}, 1
	}

	return Paragraph{Spans: Tokenize(line)}, 1
}

// group collects consecutive lines matching re, tokenizing the first
// submatch of each as an item.
func group(lines []string, i int, re *regexp.Regexp) ([][]Span, int) {
	var items [][]Span
	j := i
	for ; j < len(lines); j++ {
		m := re.FindStringSubmatch(lines[j])
		if m == nil {
			break
		}
		items = append(items, Tokenize(m[1]))
	}
	return items, j - i
}

func isTableLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

func table(lines []string, i int) (Block, int) {
	j := i
	for j < len(lines) && isTableLine(lines[j]) {
		j++
	}
	rows := lines[i:j]

	t := Table{Header: cells(rows[0])}
	body := rows[1:]
	if len(body) > 0 && separatorLine.MatchString(body[0]) {
		body = body[1:]
	}
	for _, r := range body {
		t.Rows = append(t.Rows, cells(r))
	}
	return t, j - i
}

// cells splits a table row on pipes, dropping the empty segments produced
// by the leading and trailing pipe.
func cells(row string) [][]Span {
	parts := strings.Split(strings.TrimSpace(row), "|")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([][]Span, len(parts))
	for k, p := range parts {
		out[k] = Tokenize(strings.TrimSpace(p))
	}
	return out
}

// code captures lines verbatim up to the closing fence or end of input.
func code(lines []string, i int) (Block, int) {
	open := strings.TrimSpace(lines[i])
	block := CodeBlock{Language: strings.TrimSpace(strings.TrimPrefix(open, fence))}

	j := i + 1
	for ; j < len(lines); j++ {
		if strings.HasPrefix(strings.TrimSpace(lines[j]), fence) {
			return block, j - i + 1
		}
		block.Lines = append(block.Lines, lines[j])
	}
	return block, j - i
}
